package http

import (
	"encoding/json"
	"net/http"
)

// MessageResponse carries a human-readable confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// The header has already been sent
		return
	}
}

// WriteJSONWithHeaders writes a JSON response with custom headers
func WriteJSONWithHeaders(w http.ResponseWriter, status int, v any, headers map[string]string) {
	for key, value := range headers {
		w.Header().Set(key, value)
	}
	WriteJSON(w, status, v)
}

// WriteCreated writes a created response
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// WriteMessage writes a 200 response with a confirmation message
func WriteMessage(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusOK, MessageResponse{Message: message})
}

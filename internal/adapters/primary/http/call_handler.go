package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/clinic-queue/internal/adapters/primary/validation"
	"github.com/lorrc/clinic-queue/internal/core/domain"
	"github.com/lorrc/clinic-queue/internal/core/ports"
)

// CallHandler handles the operator console: calling and recalling tickets
type CallHandler struct {
	queueService ports.QueueService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewCallHandler creates a new call handler
func NewCallHandler(
	queueService ports.QueueService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *CallHandler {
	return &CallHandler{
		queueService: queueService,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "call"),
	}
}

// RegisterRoutes sets up the routing for call endpoints.
func (h *CallHandler) RegisterRoutes(r chi.Router) {
	r.Post("/next", h.HandleCallNext)
	r.Post("/recall", h.HandleRecall)
}

// --- Request/Response DTOs ---

// CallNextRequest defines the expected JSON body for calling the next ticket
type CallNextRequest struct {
	ScreeningLabel string `json:"screeningLabel"`
}

// Validate validates the call next request
func (r *CallNextRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("screeningLabel", r.ScreeningLabel).
		MaxLength("screeningLabel", r.ScreeningLabel, domain.MaxScreeningLabelLength)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// RecallRequest defines the expected JSON body for a recall. A label that
// does not match the current call is reported as NOTHING_TO_RECALL.
type RecallRequest struct {
	ScreeningLabel string `json:"screeningLabel"`
}

// CalledTicketDTO defines the JSON response for a called ticket
type CalledTicketDTO struct {
	DisplayCode    string `json:"displayCode"`
	ScreeningLabel string `json:"screeningLabel"`
}

// --- Handlers ---

// HandleCallNext serves the next ticket at the given screening.
func (h *CallHandler) HandleCallNext(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[CallNextRequest](w, r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	entry, err := h.queueService.CallNext(r.Context(), req.ScreeningLabel)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteJSON(w, http.StatusOK, CalledTicketDTO{
		DisplayCode:    entry.Ticket.DisplayCode,
		ScreeningLabel: entry.ScreeningLabel,
	})
}

// HandleRecall re-announces the current call.
func (h *CallHandler) HandleRecall(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[RecallRequest](w, r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	entry, err := h.queueService.Recall(r.Context(), req.ScreeningLabel)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteMessage(w, fmt.Sprintf("Recalling ticket %s at %s", entry.Ticket.DisplayCode, entry.ScreeningLabel))
}

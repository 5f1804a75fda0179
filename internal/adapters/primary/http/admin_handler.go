package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/clinic-queue/internal/core/ports"
)

const resetMessage = "Tickets have been reset. The total counter was not affected."

// AdminHandler handles administrative operations
type AdminHandler struct {
	queueService ports.QueueService
	logger       *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(queueService ports.QueueService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		queueService: queueService,
		logger:       logger.With("handler", "admin"),
	}
}

// RegisterRoutes sets up the routing for admin endpoints.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Post("/reset", h.HandleReset)
}

// HandleReset restarts numbering and clears the call state.
func (h *AdminHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.queueService.Reset(r.Context())
	WriteMessage(w, resetMessage)
}

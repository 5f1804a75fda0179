package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/clinic-queue/internal/adapters/primary/validation"
	"github.com/lorrc/clinic-queue/internal/core/domain"
	"github.com/lorrc/clinic-queue/internal/core/ports"
)

// TicketHandler handles ticket issuance from the kiosk
type TicketHandler struct {
	queueService ports.QueueService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(
	queueService ports.QueueService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *TicketHandler {
	return &TicketHandler{
		queueService: queueService,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "ticket"),
	}
}

// RegisterRoutes sets up the routing for ticket endpoints.
func (h *TicketHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleIssueTicket)
}

// --- Request/Response DTOs ---

// IssueTicketRequest defines the expected JSON body for issuing a ticket.
// The category is checked by the domain so that an unknown value maps to
// INVALID_CATEGORY rather than a generic validation error.
type IssueTicketRequest struct {
	Category string `json:"category"`
}

// TicketDTO defines the JSON response for an issued ticket.
type TicketDTO struct {
	DisplayCode string `json:"displayCode"`
	Category    string `json:"category"`
}

func toTicketDTO(t domain.Ticket) TicketDTO {
	return TicketDTO{
		DisplayCode: t.DisplayCode,
		Category:    string(t.Category),
	}
}

// --- Handlers ---

// HandleIssueTicket issues the next ticket for the requested category.
func (h *TicketHandler) HandleIssueTicket(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[IssueTicketRequest](w, r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	category, err := domain.ParseCategory(req.Category)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	ticket, err := h.queueService.IssueTicket(r.Context(), category)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteCreated(w, toTicketDTO(ticket))
}

package http

import (
	"net/http"

	"github.com/lorrc/clinic-queue/internal/core/ports"
)

// StatsHandler serves the snapshot polled by public displays
type StatsHandler struct {
	queueService ports.QueueService
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(queueService ports.QueueService) *StatsHandler {
	return &StatsHandler{queueService: queueService}
}

// HandleStats writes the current snapshot. Displays poll this, so it must
// never be cached by intermediaries.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	WriteJSONWithHeaders(w, http.StatusOK, h.queueService.Snapshot(r.Context()), map[string]string{
		"Cache-Control": "no-store",
	})
}

package http

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/clinic-queue/internal/core/domain"
	apperrors "github.com/lorrc/clinic-queue/internal/core/errors"
)

// SegmentExtension is the file extension of recorded announcement segments.
const SegmentExtension = ".wav"

// AudioHandler serves the recorded announcement segments to displays
type AudioHandler struct {
	segments     fs.FS
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewAudioHandler creates a handler serving <segment>.wav files from segments.
func NewAudioHandler(segments fs.FS, errorHandler *ErrorHandler, logger *slog.Logger) *AudioHandler {
	return &AudioHandler{
		segments:     segments,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "audio"),
	}
}

// RegisterRoutes sets up the routing for audio endpoints.
func (h *AudioHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{segment}"+SegmentExtension, h.HandleSegment)
}

// HandleSegment streams a single segment. Only known segment names are
// served, so the path can never escape the segment directory.
func (h *AudioHandler) HandleSegment(w http.ResponseWriter, r *http.Request) {
	segment := chi.URLParam(r, "segment")
	if !domain.IsAnnouncementSegment(segment) {
		h.errorHandler.Handle(w, r, apperrors.ErrNotFound)
		return
	}

	name := segment + SegmentExtension
	if _, err := fs.Stat(h.segments, name); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.logger.ErrorContext(r.Context(), "failed to stat segment", "segment", segment, "error", err)
		}
		h.errorHandler.Handle(w, r, apperrors.ErrNotFound)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFileFS(w, r, h.segments, name)
}

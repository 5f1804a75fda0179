package http

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"
	mw "github.com/lorrc/clinic-queue/internal/adapters/primary/http/middleware"
	wsAdapter "github.com/lorrc/clinic-queue/internal/adapters/primary/websocket"
	"github.com/lorrc/clinic-queue/internal/core/ports"
)

// RouterDeps collects everything the HTTP surface is built from.
type RouterDeps struct {
	Logger       *slog.Logger
	QueueService ports.QueueService
	Store        ports.HealthChecker
	StoreName    string
	Hub          *wsAdapter.Hub
	// Segments holds <segment>.wav files. Audio routes are skipped when nil.
	Segments    fs.FS
	RateLimiter *mw.RateLimiter
	CORSOrigins []string
	WebSocket   WebSocketConfig
	Version     string
}

// NewRouter wires middleware and handlers into a chi router.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	errorHandler := NewErrorHandler(logger)

	ticketHandler := NewTicketHandler(deps.QueueService, errorHandler, logger)
	callHandler := NewCallHandler(deps.QueueService, errorHandler, logger)
	adminHandler := NewAdminHandler(deps.QueueService, logger)
	statsHandler := NewStatsHandler(deps.QueueService)
	healthHandler := NewHealthHandler(deps.Store, deps.StoreName, deps.Version)

	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(deps.CORSOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", mw.RequestIDHeader},
		ExposedHeaders: []string{mw.RequestIDHeader},
		MaxAge:         300,
	}))

	// Health check endpoints stay outside rate limiting for probes
	healthHandler.RegisterRoutes(r)

	// WebSocket upgrades must not go through the gzip writer
	if deps.Hub != nil {
		wsHandler := NewWebSocketHandler(deps.Hub, deps.QueueService, deps.WebSocket, logger)
		r.Get("/ws", wsHandler.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware)
		}
		r.Use(gzipMiddleware)

		r.Route("/tickets", ticketHandler.RegisterRoutes)
		r.Route("/calls", callHandler.RegisterRoutes)
		r.Route("/admin", adminHandler.RegisterRoutes)
		r.Get("/stats", statsHandler.HandleStats)

		if deps.Segments != nil {
			audioHandler := NewAudioHandler(deps.Segments, errorHandler, logger)
			r.Route("/audio", audioHandler.RegisterRoutes)
		}
	})

	return r
}

func gzipMiddleware(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

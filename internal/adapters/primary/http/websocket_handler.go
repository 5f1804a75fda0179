package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	wsAdapter "github.com/lorrc/clinic-queue/internal/adapters/primary/websocket"
	"github.com/lorrc/clinic-queue/internal/core/domain"
	"github.com/lorrc/clinic-queue/internal/core/ports"
	"github.com/lorrc/clinic-queue/internal/infrastructure/logging"
)

// WebSocketHandler handles WebSocket connection upgrades from displays
type WebSocketHandler struct {
	hub          *wsAdapter.Hub
	queueService ports.QueueService
	upgrader     websocket.Upgrader
	logger       *slog.Logger
}

// WebSocketConfig holds configuration for the WebSocket handler
type WebSocketConfig struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
	IsDevelopment   bool
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *wsAdapter.Hub,
	queueService ports.QueueService,
	cfg WebSocketConfig,
	logger *slog.Logger,
) *WebSocketHandler {
	handler := &WebSocketHandler{
		hub:          hub,
		queueService: queueService,
		logger:       logger.With("handler", "websocket"),
	}

	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     handler.makeOriginChecker(cfg),
	}

	return handler
}

// makeOriginChecker creates an origin checking function based on configuration
func (h *WebSocketHandler) makeOriginChecker(cfg WebSocketConfig) func(r *http.Request) bool {
	allowedOrigins := cfg.AllowedOrigins

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// In development mode, allow all origins (but log a warning)
		if cfg.IsDevelopment {
			if origin != "" {
				h.logger.Warn("allowing websocket connection in development mode",
					"origin", origin,
					"remote_addr", r.RemoteAddr,
				)
			}
			return true
		}

		// No origin header (same-origin request or non-browser client)
		if origin == "" {
			return true
		}

		parsedOrigin, err := url.Parse(origin)
		if err != nil {
			h.logger.Warn("failed to parse websocket origin",
				"origin", origin,
				"error", err,
			)
			return false
		}

		originHost := parsedOrigin.Host

		for _, allowed := range allowedOrigins {
			// Support wildcard subdomains like "*.example.com"
			if strings.HasPrefix(allowed, "*.") {
				suffix := allowed[1:]
				if strings.HasSuffix(originHost, suffix) || originHost == allowed[2:] {
					return true
				}
			} else if originHost == allowed {
				return true
			}
		}

		h.logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
			"allowed_origins", allowedOrigins,
		)
		return false
	}
}

// ServeHTTP upgrades the connection and registers the display with the hub.
// The current snapshot is queued first so a new display is in sync before
// the next state change.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written a 4xx response
		h.logger.WarnContext(ctx, "failed to upgrade websocket connection", "error", err)
		return
	}

	client := wsAdapter.NewClient(h.hub, conn, h.logger)
	client.Enqueue(domain.Event{
		Type:    domain.EventStateChanged,
		Payload: h.queueService.Snapshot(ctx),
	})

	if !h.hub.Register(client) {
		h.logger.WarnContext(ctx, "hub stopped, closing websocket connection")
		_ = conn.Close()
		return
	}

	ctx = logging.WithClientID(ctx, client.ID)
	h.logger.InfoContext(ctx, "websocket connection established",
		"remote_addr", r.RemoteAddr,
	)

	go client.WritePump()
	go client.ReadPump()
}

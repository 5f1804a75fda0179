package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lorrc/clinic-queue/internal/core/domain"
	"github.com/lorrc/clinic-queue/internal/core/ports"
)

// Hub maintains the set of connected displays and broadcasts state changes
// to all of them.
type Hub struct {
	clients map[*Client]bool

	// Broadcast channel for events
	broadcast chan domain.Event

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// done is closed when Run returns
	done chan struct{}

	// mu protects the clients map
	mu sync.RWMutex

	logger *slog.Logger
}

// Ensure Hub implements the EventBroadcaster interface.
var _ ports.EventBroadcaster = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan domain.Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With("component", "websocket_hub"),
	}
}

// Broadcast queues an event for every connected client. It never blocks;
// when the channel is full the event is dropped.
func (h *Hub) Broadcast(event domain.Event) error {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast channel full, dropping event",
			"event_type", event.Type,
		)
	}
	return nil
}

// Run starts the hub's event loop until ctx is cancelled. This MUST be run
// as a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// Register hands a new client to the hub. It returns false once the hub
// has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client registered",
		"client_id", client.ID,
		"total_connections", total,
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	client.CloseSend()

	h.logger.Info("client unregistered",
		"client_id", client.ID,
		"total_connections", total,
	)
}

// broadcastEvent runs on the hub goroutine, so slow clients are dropped
// directly instead of through the unregister channel.
func (h *Hub) broadcastEvent(event domain.Event) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	h.logger.Debug("broadcasting event",
		"event_type", event.Type,
		"client_count", len(clients),
	)

	for _, client := range clients {
		if !client.Enqueue(event) {
			h.logger.Warn("client send buffer full, unregistering",
				"client_id", client.ID,
			)
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	for client := range clients {
		client.CloseSend()
	}
}

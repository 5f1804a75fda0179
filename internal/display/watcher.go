package display

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lorrc/clinic-queue/internal/core/domain"
)

const (
	minReconnectDelay = time.Second
	maxReconnectDelay = 30 * time.Second

	// Time allowed to write a control message to the server.
	writeWait = 10 * time.Second

	// Time allowed between messages from the server before the
	// connection is considered dead.
	defaultPongWait = 60 * time.Second
)

// StateWatcher listens on the server's websocket and signals every
// STATE_CHANGED event. It only wakes the scheduler; the scheduler still
// fetches the snapshot itself, so a missed event costs at most one poll
// interval.
type StateWatcher struct {
	wsURL    string
	dialer   *websocket.Dialer
	pongWait time.Duration
	logger   *slog.Logger
}

// NewStateWatcher creates a watcher for the server at serverURL.
func NewStateWatcher(serverURL string, logger *slog.Logger) (*StateWatcher, error) {
	wsURL, err := WebSocketURL(serverURL)
	if err != nil {
		return nil, err
	}
	return &StateWatcher{
		wsURL:    wsURL,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		pongWait: defaultPongWait,
		logger:   logger.With("component", "state_watcher"),
	}, nil
}

// WebSocketURL maps an http(s) server URL to its /ws endpoint.
func WebSocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Run keeps a connection open until ctx is done, reconnecting with
// exponential backoff. Signals are dropped when triggers is full.
func (w *StateWatcher) Run(ctx context.Context, triggers chan<- struct{}) error {
	delay := minReconnectDelay

	for {
		connected, err := w.listen(ctx, triggers)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			delay = minReconnectDelay
		}
		w.logger.Warn("websocket disconnected, retrying", "error", err, "retry_in", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		delay = min(delay*2, maxReconnectDelay)
	}
}

// listen reads events from one connection. It reports whether the dial
// succeeded.
func (w *StateWatcher) listen(ctx context.Context, triggers chan<- struct{}) (bool, error) {
	conn, resp, err := w.dialer.DialContext(ctx, w.wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", w.wsURL, err)
	}
	w.logger.Info("websocket connected", "url", w.wsURL)

	// Unblock ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		_ = conn.Close()
	}()

	// Every frame from the server, including pings and pongs, pushes the
	// read deadline out. A half-open connection fails the next read.
	extend := func() error {
		return conn.SetReadDeadline(time.Now().Add(w.pongWait))
	}
	if err := extend(); err != nil {
		return true, err
	}
	conn.SetPongHandler(func(string) error { return extend() })
	conn.SetPingHandler(func(data string) error {
		if err := extend(); err != nil {
			return err
		}
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	done := make(chan struct{})
	defer close(done)
	go w.pingLoop(conn, done)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}

		if err := extend(); err != nil {
			return true, err
		}

		var event struct {
			Type domain.EventType `json:"type"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			w.logger.Debug("ignoring malformed event", "error", err)
			continue
		}
		if event.Type != domain.EventStateChanged {
			continue
		}

		select {
		case triggers <- struct{}{}:
		default:
		}
	}
}

// pingLoop keeps the server answering with pongs while no state changes
// are pushed. It returns when done is closed or a write fails.
func (w *StateWatcher) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(w.pongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

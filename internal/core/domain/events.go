package domain

// EventType defines the type of real-time event.
type EventType string

const (
	EventStateChanged EventType = "STATE_CHANGED"
	EventPong         EventType = "PONG"
)

// Event is the payload sent over WebSocket.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

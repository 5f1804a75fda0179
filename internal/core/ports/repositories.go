package ports

import (
	"context"

	"github.com/lorrc/clinic-queue/internal/core/domain"
)

// CounterStore persists the sequence counters and the call history.
// Missing counter keys load as domain.DefaultCounters values.
type CounterStore interface {
	LoadCounters(ctx context.Context) (domain.Counters, error)
	SaveCounters(ctx context.Context, counters domain.Counters) error
	AppendCall(ctx context.Context, entry domain.CallEntry) error
	// RecentCalls returns at most limit calls, most recent first.
	RecentCalls(ctx context.Context, limit int) ([]domain.CallEntry, error)
	Ping(ctx context.Context) error
	Close()
}

// EventBroadcaster defines the port for broadcasting real-time events.
type EventBroadcaster interface {
	Broadcast(event domain.Event) error
}

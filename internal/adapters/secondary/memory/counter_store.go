package memory

import (
	"context"
	"sync"

	"github.com/lorrc/clinic-queue/internal/core/domain"
	"github.com/lorrc/clinic-queue/internal/core/ports"
)

// CounterStore keeps counters and call history in process memory. Nothing
// survives a restart; it backs tests and local development.
type CounterStore struct {
	mu       sync.RWMutex
	counters domain.Counters
	calls    []domain.CallEntry
}

var _ ports.CounterStore = (*CounterStore)(nil)

// NewCounterStore creates an empty store that loads default counters.
func NewCounterStore() *CounterStore {
	return &CounterStore{counters: domain.DefaultCounters()}
}

func (s *CounterStore) LoadCounters(ctx context.Context) (domain.Counters, error) {
	if err := ctx.Err(); err != nil {
		return domain.Counters{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters, nil
}

func (s *CounterStore) SaveCounters(ctx context.Context, counters domain.Counters) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = counters
	return nil
}

func (s *CounterStore) AppendCall(ctx context.Context, entry domain.CallEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, entry)
	return nil
}

func (s *CounterStore) RecentCalls(ctx context.Context, limit int) ([]domain.CallEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := min(limit, len(s.calls))
	recent := make([]domain.CallEntry, 0, n)
	for i := len(s.calls) - 1; i >= 0 && len(recent) < n; i-- {
		recent = append(recent, s.calls[i])
	}
	return recent, nil
}

func (s *CounterStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *CounterStore) Close() {}

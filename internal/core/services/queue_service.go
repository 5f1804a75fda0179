package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/clinic-queue/internal/core/domain"
	apperrors "github.com/lorrc/clinic-queue/internal/core/errors"
	"github.com/lorrc/clinic-queue/internal/core/ports"
)

const (
	defaultPersistBuffer  = 64
	defaultPersistTimeout = 5 * time.Second
)

// persistJob is one write handed to the persistence goroutine. Exactly one
// of counters or call is set.
type persistJob struct {
	op       string
	counters *domain.Counters
	call     *domain.CallEntry
}

// QueueService implements ticket issuance, calling, recall and reset.
type QueueService struct {
	mu        sync.Mutex
	sequencer *domain.TicketSequencer
	arbiter   *domain.QueueArbiter
	calls     *domain.CallState
	epoch     string
	closed    bool

	store       ports.CounterStore
	broadcaster ports.EventBroadcaster
	logger      *slog.Logger

	now            func() time.Time
	newEpoch       func() string
	persistBuffer  int
	persistTimeout time.Duration

	jobs chan persistJob
	wg   sync.WaitGroup
}

var _ ports.QueueService = (*QueueService)(nil)

// Option configures a QueueService.
type Option func(*QueueService)

// WithClock overrides the time source used to stamp calls.
func WithClock(now func() time.Time) Option {
	return func(s *QueueService) { s.now = now }
}

// WithEpochSource overrides the epoch generator.
func WithEpochSource(newEpoch func() string) Option {
	return func(s *QueueService) { s.newEpoch = newEpoch }
}

// WithPersistBuffer sets how many pending writes may queue before new ones
// are dropped.
func WithPersistBuffer(size int) Option {
	return func(s *QueueService) {
		if size >= 0 {
			s.persistBuffer = size
		}
	}
}

// WithPersistTimeout bounds a single store write.
func WithPersistTimeout(timeout time.Duration) Option {
	return func(s *QueueService) {
		if timeout > 0 {
			s.persistTimeout = timeout
		}
	}
}

// NewQueueService loads the persisted counters and recent calls and starts
// the persistence writer. Failing to load the counters is fatal; failing to
// load the history only costs the display its previous calls.
func NewQueueService(
	ctx context.Context,
	store ports.CounterStore,
	broadcaster ports.EventBroadcaster,
	logger *slog.Logger,
	opts ...Option,
) (*QueueService, error) {
	s := &QueueService{
		store:          store,
		broadcaster:    broadcaster,
		logger:         logger.With("component", "queue_service"),
		now:            time.Now,
		newEpoch:       uuid.NewString,
		persistBuffer:  defaultPersistBuffer,
		persistTimeout: defaultPersistTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	counters, err := store.LoadCounters(ctx)
	if err != nil {
		return nil, fmt.Errorf("load counters: %w", apperrors.NewPersistenceError("load_counters", err))
	}

	history, err := store.RecentCalls(ctx, domain.HistoryLimit)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load call history, starting empty",
			"error", apperrors.NewPersistenceError("recent_calls", err),
		)
		history = nil
	}

	s.sequencer = domain.NewTicketSequencer(counters)
	s.arbiter = domain.NewQueueArbiter()
	s.calls = domain.NewCallState()
	s.calls.Restore(history)
	s.epoch = s.newEpoch()

	s.jobs = make(chan persistJob, s.persistBuffer)
	s.wg.Add(1)
	go s.runPersister()

	loaded := s.sequencer.Counters()
	s.logger.InfoContext(ctx, "queue service started",
		"total_served", loaded.TotalServed,
		"next_normal", loaded.NextNormal,
		"next_priority", loaded.NextPriority,
		"history", len(history),
		"epoch", s.epoch,
	)

	return s, nil
}

// IssueTicket allocates the next number for the category and enqueues the ticket.
func (s *QueueService) IssueTicket(ctx context.Context, category domain.Category) (domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, err := s.sequencer.Issue(category)
	if err != nil {
		return domain.Ticket{}, err
	}
	if err := s.arbiter.Enqueue(ticket); err != nil {
		return domain.Ticket{}, err
	}

	s.persistCountersLocked(ctx, "issue_ticket")
	s.broadcastLocked(ctx)

	normal, priority := s.arbiter.Lengths()
	s.logger.InfoContext(ctx, "ticket issued",
		"display_code", ticket.DisplayCode,
		"category", ticket.Category,
		"normal_waiting", normal,
		"priority_waiting", priority,
	)

	return ticket, nil
}

// CallNext serves the next ticket according to the bounded-priority rule
// and makes it the current call.
func (s *QueueService) CallNext(ctx context.Context, screeningLabel string) (domain.CallEntry, error) {
	if err := domain.ValidateScreeningLabel(screeningLabel); err != nil {
		return domain.CallEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, err := s.arbiter.Next()
	if err != nil {
		return domain.CallEntry{}, err
	}
	entry := s.calls.SetCurrent(ticket, screeningLabel, s.now())

	s.persistCallLocked(ctx, entry)
	s.broadcastLocked(ctx)

	s.logger.InfoContext(ctx, "ticket called",
		"display_code", ticket.DisplayCode,
		"screening", screeningLabel,
		"priority_budget", s.arbiter.Budget(),
		"announcement_version", s.calls.Version(),
	)

	return entry, nil
}

// Recall re-announces the current call when it was made at the same screening.
func (s *QueueService) Recall(ctx context.Context, screeningLabel string) (domain.CallEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.calls.Recall(screeningLabel)
	if err != nil {
		return domain.CallEntry{}, err
	}

	s.broadcastLocked(ctx)

	s.logger.InfoContext(ctx, "ticket recalled",
		"display_code", entry.Ticket.DisplayCode,
		"screening", screeningLabel,
		"announcement_version", s.calls.Version(),
	)

	return entry, nil
}

// Reset clears the call state, restarts both sequences at 1 and starts a new
// epoch. Waiting tickets and the total counter are kept.
func (s *QueueService) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls.Reset()
	s.arbiter.ResetBudget()
	s.sequencer.ResetSequences()
	s.epoch = s.newEpoch()

	s.persistCountersLocked(ctx, "reset")
	s.broadcastLocked(ctx)

	s.logger.InfoContext(ctx, "tickets reset",
		"total_served", s.sequencer.Counters().TotalServed,
		"waiting", s.arbiter.Len(),
		"epoch", s.epoch,
	)
}

// Snapshot returns the read-only projection polled by displays.
func (s *QueueService) Snapshot(_ context.Context) domain.StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Shutdown stops accepting writes and waits for queued writes to finish.
func (s *QueueService) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *QueueService) snapshotLocked() domain.StatsSnapshot {
	return domain.NewStatsSnapshot(s.arbiter, s.calls, s.sequencer.Counters().TotalServed, s.epoch)
}

// broadcastLocked is called with mu held so events leave in mutation order.
// The broadcaster never blocks.
func (s *QueueService) broadcastLocked(ctx context.Context) {
	if s.broadcaster == nil {
		return
	}
	event := domain.Event{
		Type:    domain.EventStateChanged,
		Payload: s.snapshotLocked(),
	}
	if err := s.broadcaster.Broadcast(event); err != nil {
		s.logger.WarnContext(ctx, "failed to broadcast state change", "error", err)
	}
}

func (s *QueueService) persistCountersLocked(ctx context.Context, op string) {
	counters := s.sequencer.Counters()
	s.enqueueLocked(ctx, persistJob{op: op, counters: &counters})
}

func (s *QueueService) persistCallLocked(ctx context.Context, entry domain.CallEntry) {
	s.enqueueLocked(ctx, persistJob{op: "append_call", call: &entry})
}

// enqueueLocked hands the job to the writer without blocking. A full buffer
// drops the write.
func (s *QueueService) enqueueLocked(ctx context.Context, job persistJob) {
	if s.closed {
		s.logger.WarnContext(ctx, "persistence writer stopped, dropping write", "op", job.op)
		return
	}
	select {
	case s.jobs <- job:
	default:
		s.logger.ErrorContext(ctx, "persistence queue full, dropping write",
			"op", job.op,
			"error", apperrors.NewPersistenceError(job.op, fmt.Errorf("queue full (%d pending)", len(s.jobs))),
		)
	}
}

// runPersister applies writes in the order they were queued.
func (s *QueueService) runPersister() {
	defer s.wg.Done()

	for job := range s.jobs {
		// Use background context since the HTTP request may be done
		ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
		err := s.apply(ctx, job)
		cancel()

		if err != nil {
			s.logger.Error("persistence failure",
				"op", job.op,
				"error", apperrors.NewPersistenceError(job.op, err),
			)
		}
	}
}

func (s *QueueService) apply(ctx context.Context, job persistJob) error {
	switch {
	case job.counters != nil:
		return s.store.SaveCounters(ctx, *job.counters)
	case job.call != nil:
		return s.store.AppendCall(ctx, *job.call)
	}
	return nil
}

package services_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/lorrc/clinic-queue/internal/core/domain"
	apperrors "github.com/lorrc/clinic-queue/internal/core/errors"
	"github.com/lorrc/clinic-queue/internal/core/mocks"
	"github.com/lorrc/clinic-queue/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func epochSequence() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("epoch-%d", n)
	}
}

func newMockedService(t *testing.T, store *mocks.MockCounterStore, broadcaster *mocks.MockEventBroadcaster) *services.QueueService {
	t.Helper()
	svc, err := services.NewQueueService(context.Background(), store, broadcaster, discardLogger(),
		services.WithClock(func() time.Time { return fixedNow }),
		services.WithEpochSource(epochSequence()),
	)
	require.NoError(t, err)
	return svc
}

func defaultStore() *mocks.MockCounterStore {
	store := mocks.NewMockCounterStore()
	store.On("LoadCounters", mock.Anything).Return(domain.DefaultCounters(), nil)
	store.On("RecentCalls", mock.Anything, domain.HistoryLimit).Return([]domain.CallEntry{}, nil)
	store.On("SaveCounters", mock.Anything, mock.Anything).Return(nil)
	store.On("AppendCall", mock.Anything, mock.Anything).Return(nil)
	return store
}

func quietBroadcaster() *mocks.MockEventBroadcaster {
	broadcaster := mocks.NewMockEventBroadcaster()
	broadcaster.On("Broadcast", mock.Anything).Return(nil)
	return broadcaster
}

func TestQueueService_KioskScenario(t *testing.T) {
	ctx := context.Background()
	store := defaultStore()
	svc := newMockedService(t, store, quietBroadcaster())

	for _, c := range []domain.Category{domain.CategoryNormal, domain.CategoryPriority, domain.CategoryPriority} {
		_, err := svc.IssueTicket(ctx, c)
		require.NoError(t, err)
	}

	for _, want := range []string{"P001", "P002", "N001"} {
		entry, err := svc.CallNext(ctx, "Screening 1")
		require.NoError(t, err)
		assert.Equal(t, want, entry.Ticket.DisplayCode)
		assert.Equal(t, "Screening 1", entry.ScreeningLabel)
		assert.Equal(t, fixedNow, entry.CalledAt)
	}

	_, err := svc.CallNext(ctx, "Screening 1")
	assert.ErrorIs(t, err, apperrors.ErrEmptyQueue)

	snapshot := svc.Snapshot(ctx)
	assert.Equal(t, int64(3), snapshot.TotalServed)
	assert.Equal(t, 0, snapshot.QueueLength)
	assert.Equal(t, uint64(3), snapshot.AnnouncementVersion)
	require.NotNil(t, snapshot.Current)
	assert.Equal(t, "N001", snapshot.Current.DisplayCode)

	svc.Shutdown()
	store.AssertNumberOfCalls(t, "SaveCounters", 3)
	store.AssertNumberOfCalls(t, "AppendCall", 3)
}

func TestQueueService_IssueTicket(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the advanced counters", func(t *testing.T) {
		store := defaultStore()
		svc := newMockedService(t, store, quietBroadcaster())

		ticket, err := svc.IssueTicket(ctx, domain.CategoryPriority)
		require.NoError(t, err)
		assert.Equal(t, "P001", ticket.DisplayCode)

		svc.Shutdown()
		store.AssertCalled(t, "SaveCounters", mock.Anything, domain.Counters{
			TotalServed:  1,
			NextNormal:   1,
			NextPriority: 2,
		})
	})

	t.Run("invalid category", func(t *testing.T) {
		store := defaultStore()
		broadcaster := quietBroadcaster()
		svc := newMockedService(t, store, broadcaster)

		_, err := svc.IssueTicket(ctx, domain.Category("VIP"))
		assert.ErrorIs(t, err, apperrors.ErrInvalidCategory)

		svc.Shutdown()
		store.AssertNotCalled(t, "SaveCounters", mock.Anything, mock.Anything)
		broadcaster.AssertNotCalled(t, "Broadcast", mock.Anything)
		assert.Equal(t, int64(0), svc.Snapshot(ctx).TotalServed)
	})

	t.Run("store failure does not fail the request", func(t *testing.T) {
		store := mocks.NewMockCounterStore()
		store.On("LoadCounters", mock.Anything).Return(domain.DefaultCounters(), nil)
		store.On("RecentCalls", mock.Anything, domain.HistoryLimit).Return(nil, nil)
		store.On("SaveCounters", mock.Anything, mock.Anything).Return(errors.New("disk full"))
		svc := newMockedService(t, store, quietBroadcaster())

		ticket, err := svc.IssueTicket(ctx, domain.CategoryNormal)
		require.NoError(t, err)
		assert.Equal(t, "N001", ticket.DisplayCode)

		svc.Shutdown()
		store.AssertExpectations(t)
	})

	t.Run("resumes numbering from the store", func(t *testing.T) {
		store := mocks.NewMockCounterStore()
		store.On("LoadCounters", mock.Anything).Return(domain.Counters{TotalServed: 120, NextNormal: 41, NextPriority: 7}, nil)
		store.On("RecentCalls", mock.Anything, domain.HistoryLimit).Return(nil, nil)
		store.On("SaveCounters", mock.Anything, mock.Anything).Return(nil)
		svc := newMockedService(t, store, quietBroadcaster())

		ticket, err := svc.IssueTicket(ctx, domain.CategoryNormal)
		require.NoError(t, err)
		assert.Equal(t, "N041", ticket.DisplayCode)
		assert.Equal(t, int64(121), svc.Snapshot(ctx).TotalServed)
		svc.Shutdown()
	})
}

func TestQueueService_CallNext(t *testing.T) {
	ctx := context.Background()

	t.Run("label is required before touching the queue", func(t *testing.T) {
		store := defaultStore()
		svc := newMockedService(t, store, quietBroadcaster())

		_, err := svc.IssueTicket(ctx, domain.CategoryNormal)
		require.NoError(t, err)

		_, err = svc.CallNext(ctx, "  ")
		assert.ErrorIs(t, err, apperrors.ErrScreeningRequired)
		assert.Equal(t, 1, svc.Snapshot(ctx).QueueLength)
		assert.Equal(t, uint64(0), svc.Snapshot(ctx).AnnouncementVersion)

		svc.Shutdown()
		store.AssertNotCalled(t, "AppendCall", mock.Anything, mock.Anything)
	})

	t.Run("appends the call to history storage", func(t *testing.T) {
		store := defaultStore()
		svc := newMockedService(t, store, quietBroadcaster())

		_, err := svc.IssueTicket(ctx, domain.CategoryNormal)
		require.NoError(t, err)
		_, err = svc.CallNext(ctx, "Screening 2")
		require.NoError(t, err)

		svc.Shutdown()
		store.AssertCalled(t, "AppendCall", mock.Anything, mock.MatchedBy(func(entry domain.CallEntry) bool {
			return entry.Ticket.DisplayCode == "N001" && entry.ScreeningLabel == "Screening 2"
		}))
	})

	t.Run("broadcasts the new snapshot", func(t *testing.T) {
		broadcaster := mocks.NewMockEventBroadcaster()
		broadcaster.On("Broadcast", mock.Anything).Return(nil)
		svc := newMockedService(t, defaultStore(), broadcaster)

		_, err := svc.IssueTicket(ctx, domain.CategoryNormal)
		require.NoError(t, err)
		_, err = svc.CallNext(ctx, "Screening 1")
		require.NoError(t, err)
		svc.Shutdown()

		broadcaster.AssertCalled(t, "Broadcast", mock.MatchedBy(func(event domain.Event) bool {
			snapshot, ok := event.Payload.(domain.StatsSnapshot)
			return ok &&
				event.Type == domain.EventStateChanged &&
				snapshot.AnnouncementVersion == 1 &&
				snapshot.Current != nil &&
				snapshot.Current.DisplayCode == "N001"
		}))
	})
}

func TestQueueService_Recall(t *testing.T) {
	ctx := context.Background()
	store := defaultStore()
	svc := newMockedService(t, store, quietBroadcaster())
	defer svc.Shutdown()

	_, err := svc.Recall(ctx, "Screening 1")
	assert.ErrorIs(t, err, apperrors.ErrNothingToRecall)

	_, err = svc.IssueTicket(ctx, domain.CategoryNormal)
	require.NoError(t, err)
	_, err = svc.IssueTicket(ctx, domain.CategoryNormal)
	require.NoError(t, err)
	_, err = svc.CallNext(ctx, "Screening 1")
	require.NoError(t, err)

	before := svc.Snapshot(ctx)

	_, err = svc.Recall(ctx, "Screening 9")
	assert.ErrorIs(t, err, apperrors.ErrNothingToRecall)

	entry, err := svc.Recall(ctx, "Screening 1")
	require.NoError(t, err)
	assert.Equal(t, "N001", entry.Ticket.DisplayCode)

	after := svc.Snapshot(ctx)
	assert.Equal(t, before.AnnouncementVersion+1, after.AnnouncementVersion)
	assert.Equal(t, before.Current, after.Current)
	assert.Equal(t, before.History, after.History)
	assert.Equal(t, before.QueueLength, after.QueueLength)
	assert.Equal(t, before.TotalServed, after.TotalServed)
}

func TestQueueService_SnapshotIsIdempotent(t *testing.T) {
	ctx := context.Background()
	broadcaster := quietBroadcaster()
	svc := newMockedService(t, defaultStore(), broadcaster)
	defer svc.Shutdown()

	for _, c := range []domain.Category{domain.CategoryPriority, domain.CategoryNormal, domain.CategoryNormal} {
		_, err := svc.IssueTicket(ctx, c)
		require.NoError(t, err)
	}
	_, err := svc.CallNext(ctx, "Screening 2")
	require.NoError(t, err)
	broadcasts := len(broadcaster.Calls)

	first := svc.Snapshot(ctx)
	second := svc.Snapshot(ctx)

	assert.Equal(t, first, second)
	assert.Equal(t, uint64(1), second.AnnouncementVersion)
	assert.Equal(t, 2, second.QueueLength)
	require.NotNil(t, second.Current)
	assert.Equal(t, "P001", second.Current.DisplayCode)
	assert.Len(t, broadcaster.Calls, broadcasts, "reads must not broadcast")
}

func TestQueueService_Reset(t *testing.T) {
	ctx := context.Background()
	store := defaultStore()
	svc := newMockedService(t, store, quietBroadcaster())

	for i := 0; i < 3; i++ {
		_, err := svc.IssueTicket(ctx, domain.CategoryPriority)
		require.NoError(t, err)
	}
	_, err := svc.IssueTicket(ctx, domain.CategoryNormal)
	require.NoError(t, err)
	_, err = svc.CallNext(ctx, "Screening 1")
	require.NoError(t, err)
	_, err = svc.CallNext(ctx, "Screening 1")
	require.NoError(t, err)

	before := svc.Snapshot(ctx)
	assert.Equal(t, "epoch-1", before.Epoch)

	svc.Reset(ctx)

	after := svc.Snapshot(ctx)
	assert.Nil(t, after.Current)
	assert.Empty(t, after.History)
	assert.Equal(t, uint64(0), after.AnnouncementVersion)
	assert.Equal(t, before.TotalServed, after.TotalServed)
	assert.Equal(t, before.QueueLength, after.QueueLength, "waiting tickets survive a reset")
	assert.Equal(t, "epoch-2", after.Epoch)

	// Budget was reset, so the waiting Priority is served first.
	entry, err := svc.CallNext(ctx, "Screening 1")
	require.NoError(t, err)
	assert.Equal(t, "P003", entry.Ticket.DisplayCode)

	ticket, err := svc.IssueTicket(ctx, domain.CategoryNormal)
	require.NoError(t, err)
	assert.Equal(t, "N001", ticket.DisplayCode)

	svc.Shutdown()
	store.AssertCalled(t, "SaveCounters", mock.Anything, domain.Counters{
		TotalServed:  4,
		NextNormal:   1,
		NextPriority: 1,
	})
}

func TestQueueService_Startup(t *testing.T) {
	ctx := context.Background()

	t.Run("counter load failure is fatal", func(t *testing.T) {
		store := mocks.NewMockCounterStore()
		store.On("LoadCounters", mock.Anything).Return(domain.Counters{}, errors.New("connection refused"))

		svc, err := services.NewQueueService(ctx, store, quietBroadcaster(), discardLogger())
		assert.Nil(t, svc)
		assert.ErrorIs(t, err, apperrors.ErrPersistence)
	})

	t.Run("history load failure starts empty", func(t *testing.T) {
		store := mocks.NewMockCounterStore()
		store.On("LoadCounters", mock.Anything).Return(domain.DefaultCounters(), nil)
		store.On("RecentCalls", mock.Anything, domain.HistoryLimit).Return(nil, errors.New("no such table"))

		svc, err := services.NewQueueService(ctx, store, quietBroadcaster(), discardLogger())
		require.NoError(t, err)
		defer svc.Shutdown()
		assert.Empty(t, svc.Snapshot(ctx).History)
	})

	t.Run("restores recent calls", func(t *testing.T) {
		ticket, err := domain.NewTicket(domain.CategoryPriority, 4)
		require.NoError(t, err)

		store := mocks.NewMockCounterStore()
		store.On("LoadCounters", mock.Anything).Return(domain.DefaultCounters(), nil)
		store.On("RecentCalls", mock.Anything, domain.HistoryLimit).Return([]domain.CallEntry{
			{Ticket: ticket, ScreeningLabel: "Screening 3", CalledAt: fixedNow},
		}, nil)

		svc := newMockedService(t, store, quietBroadcaster())
		defer svc.Shutdown()

		snapshot := svc.Snapshot(ctx)
		assert.Nil(t, snapshot.Current)
		require.Len(t, snapshot.History, 1)
		assert.Equal(t, "P004", snapshot.History[0].DisplayCode)
		assert.Equal(t, uint64(0), snapshot.AnnouncementVersion)
	})
}

// gatedStore blocks the first SaveCounters call until released so the
// persistence buffer can be filled deterministically.
type gatedStore struct {
	mu      sync.Mutex
	saved   []domain.Counters
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedStore) LoadCounters(context.Context) (domain.Counters, error) {
	return domain.DefaultCounters(), nil
}

func (g *gatedStore) SaveCounters(_ context.Context, counters domain.Counters) error {
	g.once.Do(func() {
		close(g.started)
		<-g.release
	})
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saved = append(g.saved, counters)
	return nil
}

func (g *gatedStore) AppendCall(context.Context, domain.CallEntry) error { return nil }

func (g *gatedStore) RecentCalls(context.Context, int) ([]domain.CallEntry, error) {
	return nil, nil
}

func (g *gatedStore) Ping(context.Context) error { return nil }

func (g *gatedStore) Close() {}

func TestQueueService_PersistenceOrderingAndBackpressure(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()

	svc, err := services.NewQueueService(ctx, store, quietBroadcaster(), discardLogger(),
		services.WithPersistBuffer(1),
	)
	require.NoError(t, err)

	_, err = svc.IssueTicket(ctx, domain.CategoryNormal)
	require.NoError(t, err)
	<-store.started

	// The writer is blocked on the first save: one more fits in the buffer,
	// the third is dropped. Issuing never blocks.
	_, err = svc.IssueTicket(ctx, domain.CategoryNormal)
	require.NoError(t, err)
	_, err = svc.IssueTicket(ctx, domain.CategoryNormal)
	require.NoError(t, err)

	close(store.release)
	svc.Shutdown()

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.saved, 2)
	assert.Equal(t, int64(1), store.saved[0].TotalServed)
	assert.Equal(t, int64(2), store.saved[1].TotalServed)
	assert.Equal(t, int64(3), svc.Snapshot(ctx).TotalServed)
}

func TestQueueService_ShutdownIsIdempotent(t *testing.T) {
	svc := newMockedService(t, defaultStore(), quietBroadcaster())
	svc.Shutdown()
	svc.Shutdown()

	_, err := svc.IssueTicket(context.Background(), domain.CategoryNormal)
	assert.NoError(t, err, "writes after shutdown are dropped, not failed")
}

func TestQueueService_ConcurrentIssuesAreUnique(t *testing.T) {
	ctx := context.Background()
	svc := newMockedService(t, defaultStore(), quietBroadcaster())
	defer svc.Shutdown()

	const workers = 20
	codes := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := svc.IssueTicket(ctx, domain.CategoryNormal)
			if err == nil {
				codes <- ticket.DisplayCode
			}
		}()
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]bool)
	for code := range codes {
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
	assert.Len(t, seen, workers)
	assert.Equal(t, int64(workers), svc.Snapshot(ctx).TotalServed)
}

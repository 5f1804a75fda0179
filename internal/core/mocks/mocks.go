package mocks

import (
	"context"

	"github.com/lorrc/clinic-queue/internal/core/domain"
	"github.com/lorrc/clinic-queue/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockCounterStore is a mock implementation of ports.CounterStore
type MockCounterStore struct {
	mock.Mock
}

var _ ports.CounterStore = (*MockCounterStore)(nil)

func NewMockCounterStore() *MockCounterStore {
	return &MockCounterStore{}
}

func (m *MockCounterStore) LoadCounters(ctx context.Context) (domain.Counters, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Counters), args.Error(1)
}

func (m *MockCounterStore) SaveCounters(ctx context.Context, counters domain.Counters) error {
	args := m.Called(ctx, counters)
	return args.Error(0)
}

func (m *MockCounterStore) AppendCall(ctx context.Context, entry domain.CallEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockCounterStore) RecentCalls(ctx context.Context, limit int) ([]domain.CallEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CallEntry), args.Error(1)
}

func (m *MockCounterStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCounterStore) Close() {
	m.Called()
}

// MockEventBroadcaster is a mock implementation of ports.EventBroadcaster
type MockEventBroadcaster struct {
	mock.Mock
}

var _ ports.EventBroadcaster = (*MockEventBroadcaster)(nil)

func NewMockEventBroadcaster() *MockEventBroadcaster {
	return &MockEventBroadcaster{}
}

func (m *MockEventBroadcaster) Broadcast(event domain.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockQueueService is a mock implementation of ports.QueueService
type MockQueueService struct {
	mock.Mock
}

var _ ports.QueueService = (*MockQueueService)(nil)

func NewMockQueueService() *MockQueueService {
	return &MockQueueService{}
}

func (m *MockQueueService) IssueTicket(ctx context.Context, category domain.Category) (domain.Ticket, error) {
	args := m.Called(ctx, category)
	return args.Get(0).(domain.Ticket), args.Error(1)
}

func (m *MockQueueService) CallNext(ctx context.Context, screeningLabel string) (domain.CallEntry, error) {
	args := m.Called(ctx, screeningLabel)
	return args.Get(0).(domain.CallEntry), args.Error(1)
}

func (m *MockQueueService) Recall(ctx context.Context, screeningLabel string) (domain.CallEntry, error) {
	args := m.Called(ctx, screeningLabel)
	return args.Get(0).(domain.CallEntry), args.Error(1)
}

func (m *MockQueueService) Reset(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockQueueService) Snapshot(ctx context.Context) domain.StatsSnapshot {
	args := m.Called(ctx)
	return args.Get(0).(domain.StatsSnapshot)
}

func (m *MockQueueService) Shutdown() {
	m.Called()
}

// MockHealthChecker is a mock implementation of ports.HealthChecker
type MockHealthChecker struct {
	mock.Mock
}

var _ ports.HealthChecker = (*MockHealthChecker)(nil)

func NewMockHealthChecker() *MockHealthChecker {
	return &MockHealthChecker{}
}

func (m *MockHealthChecker) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

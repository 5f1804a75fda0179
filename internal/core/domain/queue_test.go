package domain_test

import (
	"testing"

	"github.com/lorrc/clinic-queue/internal/core/domain"
	apperrors "github.com/lorrc/clinic-queue/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTicket(t *testing.T, category domain.Category, n int) domain.Ticket {
	t.Helper()
	ticket, err := domain.NewTicket(category, n)
	require.NoError(t, err)
	return ticket
}

func enqueueAll(t *testing.T, q *domain.QueueArbiter, tickets ...domain.Ticket) {
	t.Helper()
	for _, ticket := range tickets {
		require.NoError(t, q.Enqueue(ticket))
	}
}

func TestQueueArbiter_ScenarioFromKiosk(t *testing.T) {
	q := domain.NewQueueArbiter()
	enqueueAll(t, q,
		mustTicket(t, domain.CategoryNormal, 1),
		mustTicket(t, domain.CategoryPriority, 1),
		mustTicket(t, domain.CategoryPriority, 2),
	)

	steps := []struct {
		code   string
		budget int
	}{
		{"P001", 1},
		{"P002", 2},
		{"N001", 0},
	}

	for _, step := range steps {
		ticket, err := q.Next()
		require.NoError(t, err)
		assert.Equal(t, step.code, ticket.DisplayCode)
		assert.Equal(t, step.budget, q.Budget())
	}

	_, err := q.Next()
	assert.ErrorIs(t, err, apperrors.ErrEmptyQueue)
	assert.Equal(t, 0, q.Len())
}

func TestQueueArbiter_BoundedPriority(t *testing.T) {
	q := domain.NewQueueArbiter()
	for i := 1; i <= 10; i++ {
		enqueueAll(t, q, mustTicket(t, domain.CategoryPriority, i))
	}
	for i := 1; i <= 10; i++ {
		enqueueAll(t, q, mustTicket(t, domain.CategoryNormal, i))
	}

	// Both queues stay non-empty for the first 12 calls.
	var served []domain.Category
	for i := 0; i < 12; i++ {
		ticket, err := q.Next()
		require.NoError(t, err)
		served = append(served, ticket.Category)
	}

	for i := 0; i+3 <= len(served); i++ {
		priorities := 0
		for _, c := range served[i : i+3] {
			if c == domain.CategoryPriority {
				priorities++
			}
		}
		assert.LessOrEqual(t, priorities, 2, "window starting at %d", i)
	}
}

func TestQueueArbiter_OverflowKeepsBudget(t *testing.T) {
	q := domain.NewQueueArbiter()
	enqueueAll(t, q,
		mustTicket(t, domain.CategoryPriority, 1),
		mustTicket(t, domain.CategoryPriority, 2),
		mustTicket(t, domain.CategoryPriority, 3),
		mustTicket(t, domain.CategoryPriority, 4),
	)

	for _, want := range []string{"P001", "P002", "P003", "P004"} {
		ticket, err := q.Next()
		require.NoError(t, err)
		assert.Equal(t, want, ticket.DisplayCode)
	}
	assert.Equal(t, domain.MaxPriorityBudget, q.Budget(), "overflow path leaves the budget exhausted")

	// A Normal arriving now is served before the next Priority.
	enqueueAll(t, q,
		mustTicket(t, domain.CategoryPriority, 5),
		mustTicket(t, domain.CategoryNormal, 1),
	)
	ticket, err := q.Next()
	require.NoError(t, err)
	assert.Equal(t, "N001", ticket.DisplayCode)
	assert.Equal(t, 0, q.Budget())
}

func TestQueueArbiter_NormalOnly(t *testing.T) {
	q := domain.NewQueueArbiter()
	enqueueAll(t, q,
		mustTicket(t, domain.CategoryNormal, 1),
		mustTicket(t, domain.CategoryNormal, 2),
	)

	first, err := q.Next()
	require.NoError(t, err)
	second, err := q.Next()
	require.NoError(t, err)

	assert.Equal(t, "N001", first.DisplayCode)
	assert.Equal(t, "N002", second.DisplayCode)
}

func TestQueueArbiter_Lengths(t *testing.T) {
	q := domain.NewQueueArbiter()
	enqueueAll(t, q,
		mustTicket(t, domain.CategoryNormal, 1),
		mustTicket(t, domain.CategoryPriority, 1),
		mustTicket(t, domain.CategoryPriority, 2),
	)

	normal, priority := q.Lengths()
	assert.Equal(t, 1, normal)
	assert.Equal(t, 2, priority)
	assert.Equal(t, 3, q.Len())

	q.ResetBudget()
	assert.Equal(t, 3, q.Len(), "resetting the budget leaves the queues alone")
}

func TestQueueArbiter_EnqueueRejectsUnknownCategory(t *testing.T) {
	q := domain.NewQueueArbiter()
	err := q.Enqueue(domain.Ticket{Category: "Other", SequenceNumber: 1, DisplayCode: "X001"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCategory)
	assert.Equal(t, 0, q.Len())
}

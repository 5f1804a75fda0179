package domain

import apperrors "github.com/lorrc/clinic-queue/internal/core/errors"

// MaxPriorityBudget is how many Priority tickets may be served in a row
// while Normal tickets are waiting.
const MaxPriorityBudget = 2

// QueueArbiter holds the two waiting lines and decides who is served next.
// It is not safe for concurrent use.
type QueueArbiter struct {
	normal   []Ticket
	priority []Ticket
	budget   int
}

// NewQueueArbiter creates an arbiter with empty queues.
func NewQueueArbiter() *QueueArbiter {
	return &QueueArbiter{}
}

// Enqueue appends the ticket to the queue of its category.
func (q *QueueArbiter) Enqueue(ticket Ticket) error {
	switch ticket.Category {
	case CategoryNormal:
		q.normal = append(q.normal, ticket)
	case CategoryPriority:
		q.priority = append(q.priority, ticket)
	default:
		return apperrors.ErrInvalidCategory
	}
	return nil
}

// Next removes and returns the ticket to serve.
//
// Priority is served while the budget allows it. A Normal ticket resets the
// budget. When only Priority tickets remain they are served regardless of
// the budget, and the budget is left as is.
func (q *QueueArbiter) Next() (Ticket, error) {
	switch {
	case q.budget < MaxPriorityBudget && len(q.priority) > 0:
		q.budget++
		return popFront(&q.priority), nil
	case len(q.normal) > 0:
		q.budget = 0
		return popFront(&q.normal), nil
	case len(q.priority) > 0:
		return popFront(&q.priority), nil
	default:
		return Ticket{}, apperrors.ErrEmptyQueue
	}
}

// Len returns the combined number of waiting tickets.
func (q *QueueArbiter) Len() int {
	return len(q.normal) + len(q.priority)
}

// Lengths returns the number of waiting tickets per queue.
func (q *QueueArbiter) Lengths() (normal, priority int) {
	return len(q.normal), len(q.priority)
}

// Budget returns the number of consecutive Priority services so far.
func (q *QueueArbiter) Budget() int {
	return q.budget
}

// ResetBudget zeroes the priority budget without touching the queues.
func (q *QueueArbiter) ResetBudget() {
	q.budget = 0
}

func popFront(queue *[]Ticket) Ticket {
	head := (*queue)[0]
	(*queue)[0] = Ticket{}
	*queue = (*queue)[1:]
	if len(*queue) == 0 {
		*queue = nil
	}
	return head
}

package domain

import apperrors "github.com/lorrc/clinic-queue/internal/core/errors"

// Counters is the persisted numbering state.
type Counters struct {
	TotalServed  int64
	NextNormal   int
	NextPriority int
}

// DefaultCounters returns the counters of a fresh installation.
func DefaultCounters() Counters {
	return Counters{
		TotalServed:  0,
		NextNormal:   1,
		NextPriority: 1,
	}
}

// normalized replaces out-of-range sequence values with their starting value.
func (c Counters) normalized() Counters {
	if c.NextNormal < 1 {
		c.NextNormal = 1
	}
	if c.NextPriority < 1 {
		c.NextPriority = 1
	}
	if c.TotalServed < 0 {
		c.TotalServed = 0
	}
	return c
}

// TicketSequencer allocates sequence numbers per category. It is not safe
// for concurrent use; the owning service serializes access.
type TicketSequencer struct {
	counters Counters
}

// NewTicketSequencer creates a sequencer resuming from the given counters.
func NewTicketSequencer(counters Counters) *TicketSequencer {
	return &TicketSequencer{counters: counters.normalized()}
}

// Issue consumes the category counter and returns the new ticket. The
// total-issued counter advances once per ticket.
func (s *TicketSequencer) Issue(category Category) (Ticket, error) {
	var next *int
	switch category {
	case CategoryNormal:
		next = &s.counters.NextNormal
	case CategoryPriority:
		next = &s.counters.NextPriority
	default:
		return Ticket{}, apperrors.ErrInvalidCategory
	}

	ticket, err := NewTicket(category, *next)
	if err != nil {
		return Ticket{}, err
	}

	*next++
	s.counters.TotalServed++
	return ticket, nil
}

// ResetSequences sets both category counters back to 1. TotalServed is
// deliberately left untouched.
func (s *TicketSequencer) ResetSequences() {
	s.counters.NextNormal = 1
	s.counters.NextPriority = 1
}

// Counters returns a copy of the current counters.
func (s *TicketSequencer) Counters() Counters {
	return s.counters
}

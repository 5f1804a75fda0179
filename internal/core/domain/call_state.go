package domain

import (
	"strings"
	"time"

	apperrors "github.com/lorrc/clinic-queue/internal/core/errors"
)

const (
	// HistoryLimit is how many previous calls CallState keeps.
	HistoryLimit = 5
	// SnapshotHistoryLimit is how many previous calls a snapshot exposes.
	SnapshotHistoryLimit = 3
	// MaxScreeningLabelLength bounds operator-supplied labels.
	MaxScreeningLabelLength = 64
)

// CallEntry is a ticket that has been called to a screening station.
type CallEntry struct {
	Ticket         Ticket
	ScreeningLabel string
	CalledAt       time.Time
}

// ValidateScreeningLabel checks an operator-supplied label.
func ValidateScreeningLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return apperrors.ErrScreeningRequired
	}
	if len(label) > MaxScreeningLabelLength {
		return apperrors.ErrScreeningTooLong
	}
	return nil
}

// CallState tracks the ticket being announced, the previous calls and the
// announcement version displays use to decide when to play audio.
// It is not safe for concurrent use.
type CallState struct {
	current *CallEntry
	history []CallEntry
	version uint64
}

// NewCallState creates an empty call state with version 0.
func NewCallState() *CallState {
	return &CallState{}
}

// SetCurrent makes the ticket the current call. The previous current call
// moves to the front of the history.
func (s *CallState) SetCurrent(ticket Ticket, screeningLabel string, calledAt time.Time) CallEntry {
	if s.current != nil {
		s.pushHistory(*s.current)
	}

	entry := CallEntry{
		Ticket:         ticket,
		ScreeningLabel: screeningLabel,
		CalledAt:       calledAt.UTC(),
	}
	s.current = &entry
	s.version++
	return entry
}

func (s *CallState) pushHistory(entry CallEntry) {
	history := make([]CallEntry, 0, HistoryLimit)
	history = append(history, entry)
	history = append(history, s.history...)
	if len(history) > HistoryLimit {
		history = history[:HistoryLimit]
	}
	s.history = history
}

// Recall re-announces the current call. The label must match the one the
// ticket was called with. Only the version changes.
func (s *CallState) Recall(screeningLabel string) (CallEntry, error) {
	if s.current == nil || s.current.ScreeningLabel != screeningLabel {
		return CallEntry{}, apperrors.ErrNothingToRecall
	}
	s.version++
	return *s.current, nil
}

// Reset clears the current call and history and zeroes the version.
func (s *CallState) Reset() {
	s.current = nil
	s.history = nil
	s.version = 0
}

// Restore loads previously persisted calls, most recent first. The current
// call stays empty and the version is not changed.
func (s *CallState) Restore(history []CallEntry) {
	if len(history) > HistoryLimit {
		history = history[:HistoryLimit]
	}
	s.history = append([]CallEntry(nil), history...)
}

// Current returns the current call, if any.
func (s *CallState) Current() (CallEntry, bool) {
	if s.current == nil {
		return CallEntry{}, false
	}
	return *s.current, true
}

// History returns a copy of the previous calls, most recent first.
func (s *CallState) History() []CallEntry {
	return append([]CallEntry(nil), s.history...)
}

// Version returns the announcement version.
func (s *CallState) Version() uint64 {
	return s.version
}

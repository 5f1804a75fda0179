package domain

import "time"

// CallSnapshot matches the API response shape for a call.
type CallSnapshot struct {
	DisplayCode    string `json:"displayCode"`
	Category       string `json:"category"`
	ScreeningLabel string `json:"screeningLabel"`
	CalledAt       string `json:"calledAt"`
}

// StatsSnapshot is the read-only projection polled by displays.
type StatsSnapshot struct {
	TotalServed         int64          `json:"totalServed"`
	QueueLength         int            `json:"queueLength"`
	Current             *CallSnapshot  `json:"current"`
	History             []CallSnapshot `json:"history"`
	AnnouncementVersion uint64         `json:"announcementVersion"`
	Epoch               string         `json:"epoch"`
}

// NewCallSnapshot builds a call snapshot from a call entry.
func NewCallSnapshot(entry CallEntry) CallSnapshot {
	return CallSnapshot{
		DisplayCode:    entry.Ticket.DisplayCode,
		Category:       string(entry.Ticket.Category),
		ScreeningLabel: entry.ScreeningLabel,
		CalledAt:       entry.CalledAt.UTC().Format(time.RFC3339),
	}
}

// NewStatsSnapshot projects the queue and call state for polling consumers.
func NewStatsSnapshot(arbiter *QueueArbiter, state *CallState, totalServed int64, epoch string) StatsSnapshot {
	var current *CallSnapshot
	if entry, ok := state.Current(); ok {
		value := NewCallSnapshot(entry)
		current = &value
	}

	history := state.History()
	if len(history) > SnapshotHistoryLimit {
		history = history[:SnapshotHistoryLimit]
	}
	calls := make([]CallSnapshot, 0, len(history))
	for _, entry := range history {
		calls = append(calls, NewCallSnapshot(entry))
	}

	return StatsSnapshot{
		TotalServed:         totalServed,
		QueueLength:         arbiter.Len(),
		Current:             current,
		History:             calls,
		AnnouncementVersion: state.Version(),
		Epoch:               epoch,
	}
}

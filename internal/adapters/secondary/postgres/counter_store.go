package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/clinic-queue/internal/core/domain"
	"github.com/lorrc/clinic-queue/internal/core/ports"
)

// Counter keys in the counters table.
const (
	keyTotalServed  = "totalServed"
	keyNextNormal   = "nextNormal"
	keyNextPriority = "nextPriority"
)

const (
	selectCountersSQL = `SELECT key, value FROM counters`

	upsertCounterSQL = `
INSERT INTO counters (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	insertCallSQL = `
INSERT INTO call_history (display_code, category, sequence_number, screening_label, called_at)
VALUES ($1, $2, $3, $4, $5)`

	selectRecentCallsSQL = `
SELECT category, sequence_number, screening_label, called_at
FROM call_history
ORDER BY id DESC
LIMIT $1`
)

// CounterStore persists counters and call history in PostgreSQL.
type CounterStore struct {
	pool *pgxpool.Pool
	tm   *TransactionManager
}

var _ ports.CounterStore = (*CounterStore)(nil)

// NewCounterStore creates a store backed by an open pool. The store owns
// the pool and closes it on Close.
func NewCounterStore(pool *pgxpool.Pool) *CounterStore {
	return &CounterStore{
		pool: pool,
		tm:   NewTransactionManager(pool),
	}
}

// LoadCounters reads the counters. Missing keys keep their default values.
func (s *CounterStore) LoadCounters(ctx context.Context) (domain.Counters, error) {
	counters := domain.DefaultCounters()

	rows, err := GetDBTX(ctx, s.pool).Query(ctx, selectCountersSQL)
	if err != nil {
		return domain.Counters{}, fmt.Errorf("query counters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			value int64
		)
		if err := rows.Scan(&key, &value); err != nil {
			return domain.Counters{}, fmt.Errorf("scan counter: %w", err)
		}
		applyCounter(&counters, key, value)
	}
	if err := rows.Err(); err != nil {
		return domain.Counters{}, fmt.Errorf("iterate counters: %w", err)
	}

	return counters, nil
}

func applyCounter(counters *domain.Counters, key string, value int64) {
	switch key {
	case keyTotalServed:
		counters.TotalServed = value
	case keyNextNormal:
		counters.NextNormal = int(value)
	case keyNextPriority:
		counters.NextPriority = int(value)
	}
}

// SaveCounters upserts all three keys in one transaction.
func (s *CounterStore) SaveCounters(ctx context.Context, counters domain.Counters) error {
	return s.tm.WithTransaction(ctx, func(ctx context.Context) error {
		batch := &pgx.Batch{}
		batch.Queue(upsertCounterSQL, keyTotalServed, counters.TotalServed)
		batch.Queue(upsertCounterSQL, keyNextNormal, int64(counters.NextNormal))
		batch.Queue(upsertCounterSQL, keyNextPriority, int64(counters.NextPriority))

		results := GetDBTX(ctx, s.pool).SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("upsert counter: %w", err)
			}
		}
		return results.Close()
	})
}

// AppendCall records a call. History rows are never updated or deleted.
func (s *CounterStore) AppendCall(ctx context.Context, entry domain.CallEntry) error {
	_, err := GetDBTX(ctx, s.pool).Exec(ctx, insertCallSQL,
		entry.Ticket.DisplayCode,
		string(entry.Ticket.Category),
		entry.Ticket.SequenceNumber,
		entry.ScreeningLabel,
		entry.CalledAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

// RecentCalls returns up to limit calls, most recent first.
func (s *CounterStore) RecentCalls(ctx context.Context, limit int) ([]domain.CallEntry, error) {
	rows, err := GetDBTX(ctx, s.pool).Query(ctx, selectRecentCallsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent calls: %w", err)
	}
	defer rows.Close()

	calls := make([]domain.CallEntry, 0, limit)
	for rows.Next() {
		var (
			category       string
			sequenceNumber int
			label          string
			calledAt       time.Time
		)
		if err := rows.Scan(&category, &sequenceNumber, &label, &calledAt); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}

		ticket, err := domain.NewTicket(domain.Category(category), sequenceNumber)
		if err != nil {
			return nil, fmt.Errorf("rebuild ticket: %w", err)
		}
		calls = append(calls, domain.CallEntry{
			Ticket:         ticket,
			ScreeningLabel: label,
			CalledAt:       calledAt.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}

	return calls, nil
}

// Ping checks database connectivity for readiness probes.
func (s *CounterStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *CounterStore) Close() {
	s.pool.Close()
}

// Package sqlite implements the counter store on a local SQLite file. It is
// the single-machine deployment option: no database server, one file next
// to the binary.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/lorrc/clinic-queue/internal/core/domain"
	"github.com/lorrc/clinic-queue/internal/core/ports"
)

const defaultPoolSize = 4

const schema = `
CREATE TABLE IF NOT EXISTS counters (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS call_history (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	display_code    TEXT NOT NULL,
	category        TEXT NOT NULL,
	sequence_number INTEGER NOT NULL,
	screening_label TEXT NOT NULL,
	called_at       TEXT NOT NULL
);
`

const (
	keyTotalServed  = "totalServed"
	keyNextNormal   = "nextNormal"
	keyNextPriority = "nextPriority"
)

// Config holds the parameters for opening the store.
type Config struct {
	// Path is the database file. The parent directory must exist.
	// ":memory:" works with PoolSize 1.
	Path     string
	PoolSize int
	Logger   *slog.Logger
}

// CounterStore persists counters and call history in SQLite.
type CounterStore struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

var _ ports.CounterStore = (*CounterStore)(nil)

// Open creates the connection pool. Every connection gets WAL pragmas and
// the schema on first use.
func Open(cfg Config) (*CounterStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening %s: %w", cfg.Path, err)
	}

	logger.Info("sqlite store opened", "path", cfg.Path, "pool_size", poolSize)

	return &CounterStore{
		pool:   pool,
		logger: logger.With("component", "sqlite_store"),
		path:   cfg.Path,
	}, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqlite: schema: %w", err)
	}
	return nil
}

// withConn borrows a connection for the duration of fn.
func (s *CounterStore) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite: take: %w", err)
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

// LoadCounters reads the counters. Missing keys keep their default values.
func (s *CounterStore) LoadCounters(ctx context.Context) (domain.Counters, error) {
	counters := domain.DefaultCounters()

	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT key, value FROM counters`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value := stmt.ColumnInt64(1)
				switch stmt.ColumnText(0) {
				case keyTotalServed:
					counters.TotalServed = value
				case keyNextNormal:
					counters.NextNormal = int(value)
				case keyNextPriority:
					counters.NextPriority = int(value)
				}
				return nil
			},
		})
	})
	if err != nil {
		return domain.Counters{}, fmt.Errorf("load counters: %w", err)
	}
	return counters, nil
}

// SaveCounters upserts all three keys in one immediate transaction.
func (s *CounterStore) SaveCounters(ctx context.Context, counters domain.Counters) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		endFn, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer endFn(&err)

		values := []struct {
			key   string
			value int64
		}{
			{keyTotalServed, counters.TotalServed},
			{keyNextNormal, int64(counters.NextNormal)},
			{keyNextPriority, int64(counters.NextPriority)},
		}
		for _, v := range values {
			err = sqlitex.Execute(conn,
				`INSERT INTO counters (key, value) VALUES (?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
				&sqlitex.ExecOptions{Args: []any{v.key, v.value}},
			)
			if err != nil {
				return fmt.Errorf("upsert %s: %w", v.key, err)
			}
		}
		return nil
	})
}

// AppendCall records a call. History rows are never updated or deleted.
func (s *CounterStore) AppendCall(ctx context.Context, entry domain.CallEntry) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			`INSERT INTO call_history (display_code, category, sequence_number, screening_label, called_at)
			 VALUES (?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				entry.Ticket.DisplayCode,
				string(entry.Ticket.Category),
				entry.Ticket.SequenceNumber,
				entry.ScreeningLabel,
				entry.CalledAt.UTC().Format(time.RFC3339Nano),
			}},
		)
		if err != nil {
			return fmt.Errorf("insert call: %w", err)
		}
		return nil
	})
}

// RecentCalls returns up to limit calls, most recent first.
func (s *CounterStore) RecentCalls(ctx context.Context, limit int) ([]domain.CallEntry, error) {
	calls := make([]domain.CallEntry, 0, limit)

	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT category, sequence_number, screening_label, called_at
			 FROM call_history ORDER BY id DESC LIMIT ?`,
			&sqlitex.ExecOptions{
				Args: []any{limit},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					ticket, err := domain.NewTicket(domain.Category(stmt.ColumnText(0)), stmt.ColumnInt(1))
					if err != nil {
						return fmt.Errorf("rebuild ticket: %w", err)
					}
					calledAt, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(3))
					if err != nil {
						return fmt.Errorf("parse called_at: %w", err)
					}
					calls = append(calls, domain.CallEntry{
						Ticket:         ticket,
						ScreeningLabel: stmt.ColumnText(2),
						CalledAt:       calledAt,
					})
					return nil
				},
			},
		)
	})
	if err != nil {
		return nil, fmt.Errorf("recent calls: %w", err)
	}
	return calls, nil
}

// Ping borrows a connection and runs a trivial query.
func (s *CounterStore) Ping(ctx context.Context) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteTransient(conn, "SELECT 1", nil)
	})
}

// Close closes all connections. It blocks until borrowed connections are
// returned.
func (s *CounterStore) Close() {
	if err := s.pool.Close(); err != nil {
		s.logger.Error("sqlite store close error", "path", s.path, "error", err)
		return
	}
	s.logger.Info("sqlite store closed", "path", s.path)
}

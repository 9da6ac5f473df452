package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/onionrotate/internal/model"
)

// EventLog stores rotation events in an in-memory SQLite database.
// It is safe for concurrent use.
type EventLog struct {
	db *sql.DB
}

// Open creates an empty in-memory event log.
func Open(ctx context.Context) (*EventLog, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database, so the pool is
	// pinned to one connection that never expires.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	log := &EventLog{db: db}
	if err := log.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return log, nil
}

// Close releases the database. The recorded events are gone afterwards.
func (l *EventLog) Close() error {
	return l.db.Close()
}

func (l *EventLog) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rotation_events (
		sequence INTEGER PRIMARY KEY,
		previous TEXT NOT NULL,
		result TEXT NOT NULL,
		outcome TEXT NOT NULL,
		fallback INTEGER NOT NULL DEFAULT 0,
		occurred_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_result ON rotation_events(result);
	`

	_, err := l.db.ExecContext(ctx, schema)
	return err
}

// Record stores one event. Unknown addresses are stored as empty strings.
// Recording the same sequence twice replaces the earlier row.
func (l *EventLog) Record(ctx context.Context, ev model.RotationEvent) error {
	query := `
	INSERT INTO rotation_events (sequence, previous, result, outcome, fallback, occurred_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(sequence) DO UPDATE SET
		previous = excluded.previous,
		result = excluded.result,
		outcome = excluded.outcome,
		fallback = excluded.fallback,
		occurred_at = excluded.occurred_at
	`

	_, err := l.db.ExecContext(ctx, query,
		ev.Sequence,
		addressColumn(ev.Previous),
		addressColumn(ev.Result),
		ev.Outcome.String(),
		ev.Fallback,
		ev.Time.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert rotation event: %w", err)
	}
	return nil
}

// Addresses returns every address obtained by a rotation, most frequent
// first, ties broken by first appearance.
func (l *EventLog) Addresses(ctx context.Context) ([]model.AddressTally, error) {
	query := `
	SELECT result, COUNT(*) AS n, MIN(sequence) AS first
	FROM rotation_events
	WHERE result != ''
	GROUP BY result
	ORDER BY n DESC, first ASC
	`

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query addresses: %w", err)
	}
	defer rows.Close()

	var counts []model.AddressTally
	for rows.Next() {
		var (
			value string
			ac    model.AddressTally
		)
		if err := rows.Scan(&value, &ac.Count, &ac.FirstSeen); err != nil {
			return nil, fmt.Errorf("failed to scan address count: %w", err)
		}
		if ac.Address, err = addressFromColumn(value); err != nil {
			return nil, err
		}
		counts = append(counts, ac)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate addresses: %w", err)
	}

	return counts, nil
}

// Reused counts changed attempts whose result had already been obtained
// by an earlier attempt in the session.
func (l *EventLog) Reused(ctx context.Context) (int, error) {
	query := `
	SELECT COUNT(*)
	FROM rotation_events e
	WHERE e.outcome = 'changed' AND EXISTS (
		SELECT 1 FROM rotation_events earlier
		WHERE earlier.result = e.result AND earlier.sequence < e.sequence
	)
	`

	var n int
	if err := l.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count reused addresses: %w", err)
	}
	return n, nil
}

// Enrich fills the parts of summary that need the whole log: the address
// tally and the number of reused addresses.
func (l *EventLog) Enrich(ctx context.Context, summary *model.SessionSummary) error {
	reused, err := l.Reused(ctx)
	if err != nil {
		return err
	}
	addresses, err := l.Addresses(ctx)
	if err != nil {
		return err
	}
	summary.ReusedCount = reused
	summary.Addresses = addresses
	return nil
}

// Observer records every completed rotation into an EventLog. It
// implements the session observer hooks; write failures are logged and
// never reach the session.
type Observer struct {
	log    *EventLog
	logger *slog.Logger
}

// NewObserver wraps log. A nil logger uses slog.Default().
func NewObserver(log *EventLog, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{log: log, logger: logger}
}

// SessionStarted does nothing.
func (o *Observer) SessionStarted(model.SessionState) {}

// Countdown does nothing.
func (o *Observer) Countdown(time.Duration, model.SessionState) {}

// RotationCompleted stores the event.
func (o *Observer) RotationCompleted(event model.RotationEvent, _ model.SessionState) {
	// The session context may already be cancelled; the write is local and fast.
	if err := o.log.Record(context.Background(), event); err != nil {
		o.logger.Warn("could not record rotation event", "change", event.Sequence, "error", err)
	}
}

// SessionTerminated does nothing.
func (o *Observer) SessionTerminated(model.SessionState, error) {}

func addressColumn(a model.Address) string {
	if a.IsUnknown() {
		return ""
	}
	return a.String()
}

func addressFromColumn(s string) (model.Address, error) {
	if s == "" {
		return model.Address{}, nil
	}
	addr, err := model.ParseAddress(s)
	if err != nil {
		return model.Address{}, fmt.Errorf("corrupt address column %q: %w", s, err)
	}
	return addr, nil
}

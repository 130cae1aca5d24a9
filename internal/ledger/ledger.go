// Package ledger maintains the append-only set of user ids collected for
// later bulk messaging. Ids are appended opportunistically whenever an
// input-collection node is flagged to do so.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Ledger is a Postgres-backed append-only user-id set.
type Ledger struct {
	db  *sql.DB
	log *slog.Logger
}

// New creates a SQL-backed ledger.
func New(db *sql.DB, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{db: db, log: log}
}

// Add appends a user id. Re-adding an existing id is a no-op, preserving the
// append-only set semantics.
func (l *Ledger) Add(ctx context.Context, userID int64) error {
	const query = `
		INSERT INTO broadcast_ledger (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := l.db.ExecContext(ctx, query, userID); err != nil {
		l.log.Error("failed to append user to ledger",
			slog.Int64("user_id", userID), slog.Any("error", err))
		return fmt.Errorf("insert ledger entry: %w", err)
	}

	return nil
}

// All returns every recorded user id in insertion order.
func (l *Ledger) All(ctx context.Context) ([]int64, error) {
	const query = `
		SELECT user_id
		FROM broadcast_ledger
		ORDER BY added_at, user_id
	`

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select ledger entries: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}

	return ids, nil
}

// HealthCheck verifies database connectivity.
func (l *Ledger) HealthCheck(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

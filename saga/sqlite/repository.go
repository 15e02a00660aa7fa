// Package sqlite stores the saga log in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ecommerce-backend/saga"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS saga_logs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    saga_id         TEXT    NOT NULL,
    order_id        INTEGER NOT NULL DEFAULT 0,
    status          TEXT    NOT NULL,
    current_step    TEXT    NOT NULL DEFAULT '',
    payload         TEXT,
    error_messages  TEXT    NOT NULL DEFAULT '[]',
    updated_at      TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_saga_logs_saga_id ON saga_logs(saga_id, id);
CREATE INDEX IF NOT EXISTS idx_saga_logs_status ON saga_logs(status);
`

type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path with WAL enabled.
func Open(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir for %q: %w", path, err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Save(ctx context.Context, e *saga.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO saga_logs (saga_id, order_id, status, current_step, payload, error_messages, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SagaID, e.OrderID, string(e.Status), e.CurrentStep, nullableString(e.Payload),
		e.ErrorMessages, e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save saga log for %q: %w", e.SagaID, err)
	}
	return nil
}

// ListFailed returns the final entries of sagas whose compensation failed,
// i.e. orders that were left partially committed.
func (r *Repository) ListFailed(ctx context.Context) ([]saga.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT saga_id, order_id, status, current_step, COALESCE(payload, ''), error_messages, updated_at
		FROM saga_logs WHERE status = ? ORDER BY id`, string(saga.StatusFailed))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list failed sagas: %w", err)
	}
	defer rows.Close()

	var out []saga.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*saga.Entry, error) {
	var (
		e         saga.Entry
		status    string
		updatedAt string
	)
	if err := s.Scan(&e.SagaID, &e.OrderID, &status, &e.CurrentStep, &e.Payload, &e.ErrorMessages, &updatedAt); err != nil {
		return nil, err
	}
	e.Status = saga.Status(status)
	t, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("sqlite: parse time %q: %w", updatedAt, err)
	}
	e.UpdatedAt = t
	return &e, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

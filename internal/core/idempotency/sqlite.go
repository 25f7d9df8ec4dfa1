package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS idempotency (
	key        TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	route      TEXT NOT NULL,
	status     INTEGER NOT NULL,
	payload    BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idempotency_expires ON idempotency(expires_at);
`

// SQLiteDurable keeps records in an embedded database file, for deployments
// that want replay to survive restarts without a graph-side label.
type SQLiteDurable struct {
	db *sql.DB
}

// OpenSQLite opens dsn, e.g. a file path or "file::memory:".
func OpenSQLite(dsn string) (*SQLiteDurable, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps in-memory databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply idempotency schema: %w", err)
	}
	return &SQLiteDurable{db: db}, nil
}

func (d *SQLiteDurable) Close() error {
	return d.db.Close()
}

func (d *SQLiteDurable) Get(ctx context.Context, key string, now time.Time) (*Record, error) {
	var rec Record
	err := d.db.QueryRowContext(ctx,
		"SELECT status, payload FROM idempotency WHERE key = ? AND expires_at > ?",
		key, now.UnixMilli(),
	).Scan(&rec.Status, &rec.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	return &rec, nil
}

func (d *SQLiteDurable) Put(ctx context.Context, key, userID string, rec Record, now, expiresAt time.Time) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM idempotency WHERE expires_at <= ?", now.UnixMilli()); err != nil {
		return fmt.Errorf("purge idempotency records: %w", err)
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO idempotency (key, user_id, route, status, payload, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO NOTHING`,
		key, userID, Route, rec.Status, rec.Payload, now.UnixMilli(), expiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put idempotency record: %w", err)
	}
	return nil
}

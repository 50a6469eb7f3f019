// Package sqlite provides the SQLite-backed order record store for the
// fulfillment service.
//
// The correlation id carries a UNIQUE constraint and Upsert is an
// INSERT ... ON CONFLICT DO NOTHING: replaying the same order request
// after a crash-before-ack can never produce a second record.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopmesh/orderflow/internal/fulfillment"

	// Pure-Go SQLite driver; no CGO so the service builds in a scratch
	// container.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS order_records (
    id              TEXT PRIMARY KEY,
    correlation_id  TEXT NOT NULL UNIQUE,
    requester       TEXT NOT NULL,
    items           TEXT NOT NULL,
    total_price     REAL NOT NULL CHECK (total_price >= 0),
    created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_records_requester ON order_records(requester, created_at);
`

// Repository is the SQLite implementation of fulfillment.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// WAL mode keeps concurrent message handlers from blocking each other.
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply orders schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Upsert stores the record unless one already exists for the same
// correlation id. Reports whether a new row was written.
func (r *Repository) Upsert(ctx context.Context, rec *fulfillment.OrderRecord) (bool, error) {
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return false, fmt.Errorf("sqlite: encode items for %q: %w", rec.CorrelationID, err)
	}

	const q = `
		INSERT INTO order_records
			(id, correlation_id, requester, items, total_price, created_at)
		VALUES
			(?, ?, ?, ?, ?, ?)
		ON CONFLICT(correlation_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.CorrelationID,
		rec.Requester,
		string(items),
		rec.TotalPrice,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: upsert order %q: %w", rec.CorrelationID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: rows affected for %q: %w", rec.CorrelationID, err)
	}
	return n > 0, nil
}

// FindByCorrelationID returns the persisted record for a correlation id.
func (r *Repository) FindByCorrelationID(ctx context.Context, correlationID string) (*fulfillment.OrderRecord, error) {
	const q = `
		SELECT id, correlation_id, requester, items, total_price, created_at
		FROM   order_records
		WHERE  correlation_id = ?`

	row := r.db.QueryRowContext(ctx, q, correlationID)

	var (
		rec       fulfillment.OrderRecord
		items     string
		createdAt string
	)
	err := row.Scan(&rec.ID, &rec.CorrelationID, &rec.Requester, &items, &rec.TotalPrice, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sqlite: order %q not found", correlationID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: find order %q: %w", correlationID, err)
	}

	if err := json.Unmarshal([]byte(items), &rec.Items); err != nil {
		return nil, fmt.Errorf("sqlite: decode items for %q: %w", correlationID, err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SQLite has no native datetime type; timestamps are stored as RFC3339 TEXT.
const timeLayout = "2006-01-02T15:04:05.999999999Z"

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}

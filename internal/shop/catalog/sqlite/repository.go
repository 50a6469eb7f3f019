// Package sqlite provides the SQLite-backed catalog repository.
//
// WAL mode is enabled so the HTTP handlers can read listings while a
// create is in flight.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopmesh/orderflow/internal/shop/catalog"

	// Pure-Go SQLite driver; no CGO so the service builds in a scratch
	// container.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS catalog_items (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    price       REAL NOT NULL CHECK (price >= 0),
    created_at  TEXT NOT NULL
);
`

// Repository is the SQLite implementation of catalog.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply catalog schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Create(ctx context.Context, item *catalog.Item) error {
	const q = `INSERT INTO catalog_items (id, name, price, created_at) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		item.ID, item.Name, item.Price, item.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("sqlite: insert item %q: %w", item.ID, err)
	}
	return nil
}

func (r *Repository) FindByIDs(ctx context.Context, ids []string) ([]catalog.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	q := fmt.Sprintf(
		`SELECT id, name, price, created_at FROM catalog_items WHERE id IN (%s)`,
		placeholders,
	)

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: find items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func (r *Repository) FindAll(ctx context.Context) ([]catalog.Item, error) {
	const q = `SELECT id, name, price, created_at FROM catalog_items ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]catalog.Item, error) {
	var items []catalog.Item
	for rows.Next() {
		var (
			it        catalog.Item
			createdAt string
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan item: %w", err)
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		it.CreatedAt = t
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate items: %w", err)
	}
	return items, nil
}

// Package history persists the visit log in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// Entry is one recorded page visit.
type Entry struct {
	ID        string
	URL       string
	Status    int
	Protocol  string
	Duration  time.Duration
	FetchedAt time.Time
}

// Store is a visit log backed by SQLite.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS visits (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	status     INTEGER NOT NULL,
	protocol   TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	fetched_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS visits_fetched_at ON visits (fetched_at DESC);
`

// Open creates or opens the visit log at path, creating parent
// directories and the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	return &Store{
		db:           db,
		queryTimeout: 30 * time.Second,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Add records one visit. A zero FetchedAt is stamped with the current
// time; the id is generated when empty.
func (s *Store) Add(ctx context.Context, e Entry) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.FetchedAt.IsZero() {
		e.FetchedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visits (id, url, status, protocol, duration_ms, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.URL, e.Status, e.Protocol, e.Duration.Milliseconds(), e.FetchedAt)
	if err != nil {
		return fmt.Errorf("recording visit: %w", err)
	}
	return nil
}

// Recent returns the latest n visits, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, status, protocol, duration_ms, fetched_at
		 FROM visits ORDER BY fetched_at DESC, id LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			ms int64
		)
		if err := rows.Scan(&e.ID, &e.URL, &e.Status, &e.Protocol, &ms, &e.FetchedAt); err != nil {
			return nil, fmt.Errorf("scanning visit: %w", err)
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Clear deletes the whole visit log and reports how many entries went.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM visits`)
	if err != nil {
		return 0, fmt.Errorf("clearing history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Package state persists crawl state: which files have been
// acknowledged by the index store, keyed by real path.
//
// State is the durability boundary of a crawl. Entries are written only
// after a bulk outcome confirms the corresponding operation, never
// speculatively, so a re-run after a crash repeats unacknowledged work
// instead of losing it.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// Entry records the last acknowledged index state for one file.
type Entry struct {
	// RootID identifies the crawl root the path belongs to.
	RootID string

	// RealPath is the absolute path, the primary key within a root.
	RealPath string

	// Checksum is the content digest at the time of the last commit.
	Checksum string

	// LastModified is the file mtime at the time of the last commit.
	LastModified time.Time

	// IndexedAt is when the operation was acknowledged by the store.
	IndexedAt time.Time
}

// Store is the durable crawl state mapping, backed by SQLite in WAL
// mode so a crawl and a status query can share the database.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS crawl_state (
	root_id       TEXT NOT NULL,
	real_path     TEXT NOT NULL,
	checksum      TEXT NOT NULL DEFAULT '',
	last_modified INTEGER NOT NULL,
	indexed_at    INTEGER NOT NULL,
	PRIMARY KEY (root_id, real_path)
);
CREATE INDEX IF NOT EXISTS idx_crawl_state_root ON crawl_state(root_id);
`

// Open opens (or creates) the state database at path.
// An empty path opens an in-memory database for testing.
func Open(path string) (*Store, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	// The crawl is a single writer; one connection avoids lock churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply state schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the entry for a real path, or nil if none is recorded.
func (s *Store) Get(ctx context.Context, rootID, realPath string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT checksum, last_modified, indexed_at
		FROM crawl_state WHERE root_id = ? AND real_path = ?`,
		rootID, realPath)

	var checksum string
	var modUnix, indexedUnix int64
	if err := row.Scan(&checksum, &modUnix, &indexedUnix); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load state entry: %w", err)
	}

	return &Entry{
		RootID:       rootID,
		RealPath:     realPath,
		Checksum:     checksum,
		LastModified: time.Unix(0, modUnix),
		IndexedAt:    time.Unix(0, indexedUnix),
	}, nil
}

// Load returns all entries for a crawl root keyed by real path.
// Called once at run start so classification never hits the database
// per file.
func (s *Store) Load(ctx context.Context, rootID string) (map[string]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT real_path, checksum, last_modified, indexed_at
		FROM crawl_state WHERE root_id = ?`, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to load crawl state: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]*Entry)
	for rows.Next() {
		var e Entry
		var modUnix, indexedUnix int64
		if err := rows.Scan(&e.RealPath, &e.Checksum, &modUnix, &indexedUnix); err != nil {
			return nil, fmt.Errorf("failed to scan state entry: %w", err)
		}
		e.RootID = rootID
		e.LastModified = time.Unix(0, modUnix)
		e.IndexedAt = time.Unix(0, indexedUnix)
		entries[e.RealPath] = &e
	}
	return entries, rows.Err()
}

// Commit applies acknowledged outcomes in one transaction: upserts for
// indexed entries, removals for acknowledged deletes. Partial batches
// commit atomically or not at all.
func (s *Store) Commit(ctx context.Context, rootID string, upserts []*Entry, deletes []string) error {
	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin state transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range upserts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO crawl_state (root_id, real_path, checksum, last_modified, indexed_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(root_id, real_path) DO UPDATE SET
				checksum = excluded.checksum,
				last_modified = excluded.last_modified,
				indexed_at = excluded.indexed_at`,
			e.RootID, e.RealPath, e.Checksum,
			e.LastModified.UnixNano(), e.IndexedAt.UnixNano()); err != nil {
			return fmt.Errorf("failed to upsert state entry: %w", err)
		}
	}

	for _, realPath := range deletes {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM crawl_state WHERE root_id = ? AND real_path = ?`,
			rootID, realPath); err != nil {
			return fmt.Errorf("failed to delete state entry: %w", err)
		}
	}

	return tx.Commit()
}

// Count returns the number of entries recorded for a crawl root.
func (s *Store) Count(ctx context.Context, rootID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM crawl_state WHERE root_id = ?`, rootID).Scan(&n)
	return n, err
}

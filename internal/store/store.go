// Package store manages the SQLite database holding the offline bookmark
// queue and the cached label vocabulary.
//
// Only this package may open or query the database. All other packages receive
// a [*Store] and call its methods. The store is the one resource mutated by
// more than one actor (UI saves, engine drains), so it is opened with a
// single-writer discipline.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/linkrelay/linkrelay/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pending_bookmarks (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    url             TEXT    NOT NULL UNIQUE,
    title           TEXT    NOT NULL DEFAULT '',
    tags            TEXT    NOT NULL DEFAULT '',
    created_at      TEXT    NOT NULL DEFAULT '',
    sync_attempts   INTEGER NOT NULL DEFAULT 0,
    last_attempt_at TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS labels (
    name        TEXT    PRIMARY KEY,
    usage_count INTEGER NOT NULL DEFAULT 0
);
`

// Store is the SQLite-backed local record store.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the local database:
// ~/.local/share/linkrelay/queue.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "linkrelay", "queue.db"), nil
}

// Open opens (or creates) the SQLite database at path, applies the schema, and
// configures WAL mode for better concurrent read performance.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the schema DDL idempotently (CREATE IF NOT EXISTS).
func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// --- Pending bookmarks -------------------------------------------------------

// UpsertBookmark queues a bookmark for sync. If a record with the same URL is
// already queued, its title and tags are updated in place; the attempt
// counters are left alone. The upsert is idempotent, which is what makes
// retrying a save safe.
func (s *Store) UpsertBookmark(ctx context.Context, url, title string, tags []string) (*model.Bookmark, error) {
	if url == "" {
		return nil, fmt.Errorf("upserting bookmark: url is empty")
	}

	now := time.Now().UTC()
	const q = `
		INSERT INTO pending_bookmarks (url, title, tags, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
		    title = excluded.title,
		    tags  = excluded.tags`

	if _, err := s.db.ExecContext(ctx, q, url, title, model.EncodeTags(tags), formatTime(now)); err != nil {
		return nil, fmt.Errorf("upserting bookmark %q: %w", url, err)
	}

	// LastInsertId is unreliable for the DO UPDATE path, so read the row back.
	return s.getBookmarkByURL(ctx, url)
}

// getBookmarkByURL returns the queued bookmark with the given URL,
// or (nil, nil) if no such record exists.
func (s *Store) getBookmarkByURL(ctx context.Context, url string) (*model.Bookmark, error) {
	const q = `
		SELECT id, url, title, tags, created_at, sync_attempts, last_attempt_at
		FROM pending_bookmarks WHERE url = ?`
	row := s.db.QueryRowContext(ctx, q, url)
	return scanBookmark(row)
}

// ListPending returns all bookmarks awaiting sync, oldest first.
func (s *Store) ListPending(ctx context.Context) ([]*model.Bookmark, error) {
	const q = `
		SELECT id, url, title, tags, created_at, sync_attempts, last_attempt_at
		FROM pending_bookmarks ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying pending bookmarks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bookmarks []*model.Bookmark
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// DeleteBookmark removes the queued bookmark with the given ID. Deleting a
// record that is already gone is a no-op.
func (s *Store) DeleteBookmark(ctx context.Context, id int64) error {
	const q = `DELETE FROM pending_bookmarks WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("deleting bookmark id=%d: %w", id, err)
	}
	return nil
}

// PendingCount reports how many bookmarks are awaiting sync.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_bookmarks`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting pending bookmarks: %w", err)
	}
	return count, nil
}

// RecordAttempt increments a queued bookmark's failed-attempt counter. The
// counter is advisory: the engine retries every queued record on every pass
// regardless, but the numbers make a stuck record visible in "status".
func (s *Store) RecordAttempt(ctx context.Context, id int64) error {
	const q = `
		UPDATE pending_bookmarks
		SET sync_attempts = sync_attempts + 1, last_attempt_at = ?
		WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, q, formatTime(time.Now().UTC()), id); err != nil {
		return fmt.Errorf("recording attempt for bookmark id=%d: %w", id, err)
	}
	return nil
}

// --- Labels ------------------------------------------------------------------

// UpsertLabels merges labels into the local vocabulary with set semantics:
// a label is inserted only if its name is absent. Usage counts follow a
// monotonic merge rule — an existing count is only overwritten by a higher
// one, so a stale remote listing can never shrink what we know locally.
// Returns how many labels were newly created.
func (s *Store) UpsertLabels(ctx context.Context, labels []model.Label) (int, error) {
	inserted := 0
	for _, l := range labels {
		if l.Name == "" {
			continue
		}

		res, err := s.db.ExecContext(ctx,
			`INSERT INTO labels (name, usage_count) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
			l.Name, l.UsageCount,
		)
		if err != nil {
			return inserted, fmt.Errorf("inserting label %q: %w", l.Name, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
			continue
		}

		if _, err := s.db.ExecContext(ctx,
			`UPDATE labels SET usage_count = ? WHERE name = ? AND usage_count < ?`,
			l.UsageCount, l.Name, l.UsageCount,
		); err != nil {
			return inserted, fmt.Errorf("updating label %q: %w", l.Name, err)
		}
	}
	return inserted, nil
}

// TouchLabels records local use of the given tag names: each is created if
// absent and its usage count incremented. Called when a bookmark is saved
// offline with tags.
func (s *Store) TouchLabels(ctx context.Context, names []string) error {
	for _, name := range model.NormalizeTags(names) {
		const q = `
			INSERT INTO labels (name, usage_count) VALUES (?, 1)
			ON CONFLICT(name) DO UPDATE SET usage_count = usage_count + 1`
		if _, err := s.db.ExecContext(ctx, q, name); err != nil {
			return fmt.Errorf("touching label %q: %w", name, err)
		}
	}
	return nil
}

// ListLabels returns the cached label vocabulary ordered by name.
func (s *Store) ListLabels(ctx context.Context) ([]model.Label, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, usage_count FROM labels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying labels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var labels []model.Label
	for rows.Next() {
		var l model.Label
		if err := rows.Scan(&l.Name, &l.UsageCount); err != nil {
			return nil, fmt.Errorf("scanning label row: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// --- helpers -----------------------------------------------------------------

// scanner matches both *sql.Row and *sql.Rows so scanBookmark can be reused.
type scanner interface {
	Scan(dest ...any) error
}

func scanBookmark(s scanner) (*model.Bookmark, error) {
	var b model.Bookmark
	var tags, createdAt, lastAttempt string

	err := s.Scan(
		&b.ID,
		&b.URL,
		&b.Title,
		&tags,
		&createdAt,
		&b.SyncAttempts,
		&lastAttempt,
	)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning bookmark row: %w", err)
	}

	b.Tags = model.DecodeTags(tags)
	b.CreatedAt, _ = parseTime(createdAt)
	b.LastAttemptAt, _ = parseTime(lastAttempt)

	return &b, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// Package ledger keeps an append-only sqlite record of stored and deleted
// blobs. It is optional; the blob tree stays the source of truth.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"

	"floppy/internal/blobstore"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute
)

// Ledger wraps the SQLite database.
type Ledger struct {
	db *sql.DB
}

var _ blobstore.EventSink = (*Ledger)(nil)

// Totals aggregates the ledger.
type Totals struct {
	StoredCount  int64 `json:"stored_count" yaml:"stored_count"`
	StoredBytes  int64 `json:"stored_bytes" yaml:"stored_bytes"`
	DeletedCount int64 `json:"deleted_count" yaml:"deleted_count"`
	DeletedBytes int64 `json:"deleted_bytes" yaml:"deleted_bytes"`
}

// Open opens the SQLite database and applies pending migrations.
func Open(path string) (*Ledger, error) {
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Ledger{db: db}, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// RecordEvent appends a storage event.
func (l *Ledger) RecordEvent(ctx context.Context, ev blobstore.Event) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO blob_events (kind, blob_key, size_bytes, at) VALUES (?, ?, ?, ?)",
		string(ev.Kind), ev.Key, ev.SizeBytes, ev.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert %s event for %s: %w", ev.Kind, ev.Key, err)
	}
	return nil
}

// Totals sums events by kind.
func (l *Ledger) Totals(ctx context.Context) (Totals, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT kind, COUNT(*), COALESCE(SUM(size_bytes), 0) FROM blob_events GROUP BY kind")
	if err != nil {
		return Totals{}, err
	}
	defer rows.Close()

	var t Totals
	for rows.Next() {
		var (
			kind  string
			count int64
			bytes int64
		)
		if err := rows.Scan(&kind, &count, &bytes); err != nil {
			return Totals{}, err
		}
		switch blobstore.EventKind(kind) {
		case blobstore.EventStored:
			t.StoredCount, t.StoredBytes = count, bytes
		case blobstore.EventDeleted:
			t.DeletedCount, t.DeletedBytes = count, bytes
		}
	}
	return t, rows.Err()
}

// History returns the events recorded for key, oldest first.
func (l *Ledger) History(ctx context.Context, key string) ([]blobstore.Event, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT kind, size_bytes, at FROM blob_events WHERE blob_key = ? ORDER BY id", key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []blobstore.Event
	for rows.Next() {
		var (
			kind string
			size int64
			at   string
		)
		if err := rows.Scan(&kind, &size, &at); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse event time %q: %w", at, err)
		}
		out = append(out, blobstore.Event{Kind: blobstore.EventKind(kind), Key: key, SizeBytes: size, At: ts})
	}
	return out, rows.Err()
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	return nil
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("ledger path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String(), nil
}

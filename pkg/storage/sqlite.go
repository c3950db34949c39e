package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sw33tLie/metropolis/internal/utils"
	"github.com/sw33tLie/metropolis/pkg/itinerary"
)

// SQLiteStore persists documents in a SQLite database. Replaced documents
// are kept as history but are no longer addressable.
type SQLiteStore struct {
	sql  *sql.DB
	lock *utils.DBLock
	identity
}

// OpenSQLite opens (and creates if needed) the database at path. A file
// backed database is locked for the lifetime of the store; a second process
// pointing at the same file fails with utils.ErrDBLocked.
func OpenSQLite(path string) (*SQLiteStore, error) {
	var lock *utils.DBLock
	if path != ":memory:" {
		abs, err := utils.GetAbsDBPath(path)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, fmt.Errorf("could not create database directory: %w", err)
		}
		lock, err = utils.NewDBLock(abs)
		if err != nil {
			return nil, err
		}
		if err := lock.TryLock(); err != nil {
			return nil, err
		}
		path = abs
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		releaseLock(lock)
		return nil, err
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		releaseLock(lock)
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS itineraries (
  id            TEXT PRIMARY KEY,
  previous_id   TEXT,
  revision      INTEGER NOT NULL DEFAULT 0,
  city          TEXT NOT NULL,
  state         TEXT NOT NULL,
  request_json  TEXT NOT NULL,
  entries_json  TEXT NOT NULL,
  total_cost    REAL NOT NULL,
  summary       TEXT NOT NULL,
  created_at    TEXT NOT NULL,
  retired_at    TEXT
);
CREATE INDEX IF NOT EXISTS idx_itineraries_previous ON itineraries(previous_id);
    `); err != nil {
		db.Close()
		releaseLock(lock)
		return nil, err
	}
	return &SQLiteStore{sql: db, lock: lock, identity: defaultIdentity()}, nil
}

func releaseLock(lock *utils.DBLock) {
	if lock != nil {
		_ = lock.Unlock()
	}
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.sql == nil {
		return nil
	}
	err := s.sql.Close()
	releaseLock(s.lock)
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, entries []itinerary.Entry, req itinerary.Request) (*itinerary.Document, error) {
	doc := s.create(entries, req)
	if err := insertDocument(ctx, s.sql, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*itinerary.Document, error) {
	row := s.sql.QueryRowContext(ctx, `SELECT id, COALESCE(previous_id, ''), revision, request_json, entries_json, total_cost, summary, created_at FROM itineraries WHERE id = ? AND retired_at IS NULL`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, itinerary.ErrUnknownDocument
	}
	return doc, err
}

func (s *SQLiteStore) Replace(ctx context.Context, oldID string, entries []itinerary.Entry, req itinerary.Request) (doc *itinerary.Document, err error) {
	tx, err := s.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var revision int
	err = tx.QueryRowContext(ctx, `SELECT revision FROM itineraries WHERE id = ? AND retired_at IS NULL`, oldID).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		err = itinerary.ErrUnknownDocument
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	doc = s.replacement(&itinerary.Document{ID: oldID, Revision: revision}, entries, req)

	if _, err = tx.ExecContext(ctx, `UPDATE itineraries SET retired_at = ? WHERE id = ?`, formatTime(s.now()), oldID); err != nil {
		return nil, err
	}
	if err = insertDocument(ctx, tx, doc); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Lineage returns the identifiers a document replaced, most recent first.
func (s *SQLiteStore) Lineage(ctx context.Context, id string) ([]string, error) {
	var out []string
	current := id
	for {
		var prev sql.NullString
		err := s.sql.QueryRowContext(ctx, `SELECT previous_id FROM itineraries WHERE id = ?`, current).Scan(&prev)
		if errors.Is(err, sql.ErrNoRows) {
			if current == id {
				return nil, itinerary.ErrUnknownDocument
			}
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if !prev.Valid || prev.String == "" {
			return out, nil
		}
		out = append(out, prev.String)
		current = prev.String
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertDocument(ctx context.Context, db execer, doc *itinerary.Document) error {
	reqJSON, err := json.Marshal(doc.Request)
	if err != nil {
		return err
	}
	entriesJSON, err := json.Marshal(doc.Entries)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `INSERT INTO itineraries(id, previous_id, revision, city, state, request_json, entries_json, total_cost, summary, created_at) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		doc.ID, nullIfEmpty(doc.PreviousID), doc.Revision, doc.Request.City, doc.Request.State, string(reqJSON), string(entriesJSON), doc.TotalCost, doc.Summary, formatTime(doc.CreatedAt))
	return err
}

func scanDocument(row *sql.Row) (*itinerary.Document, error) {
	var (
		doc                  itinerary.Document
		reqJSON, entriesJSON string
		createdAt            string
	)
	if err := row.Scan(&doc.ID, &doc.PreviousID, &doc.Revision, &reqJSON, &entriesJSON, &doc.TotalCost, &doc.Summary, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(reqJSON), &doc.Request); err != nil {
		return nil, fmt.Errorf("corrupt request for %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal([]byte(entriesJSON), &doc.Entries); err != nil {
		return nil, fmt.Errorf("corrupt entries for %s: %w", doc.ID, err)
	}
	if doc.Entries == nil {
		doc.Entries = []itinerary.Entry{}
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt timestamp for %s: %w", doc.ID, err)
	}
	doc.CreatedAt = t
	return &doc, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

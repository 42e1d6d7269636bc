package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements KV backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// Prepared statements
	getValue *sql.Stmt
	setValue *sql.Stmt

	ownsDB bool
	mu     sync.RWMutex
	closed bool
}

// Open opens (creating if needed) the database at path, runs migrations
// and returns a ready-to-use store. The returned store owns the *sql.DB.
func Open(path, journalMode string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Immediate transactions take the write lock up front, so a guarded
	// write cannot interleave with another process's clear.
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer keeps ":memory:" databases coherent and serializes writes.
	db.SetMaxOpenConns(1)

	runner := NewMigrationRunner(db).WithJournalMode(journalMode)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create store: %w", err)
	}
	store.ownsDB = true
	return store, nil
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.getValue, err = s.db.Prepare(`SELECT value FROM kv WHERE key = ?`)
	if err != nil {
		return err
	}

	s.setValue, err = s.db.Prepare(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}

	return nil
}

// Get returns the stored values for keys. Keys that were never set are
// omitted from the result.
func (s *SQLiteStore) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		var value string
		err := s.getValue.QueryRowContext(ctx, key).Scan(&value)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		out[key] = []byte(value)
	}
	return out, nil
}

// Set writes every entry in a single transaction.
func (s *SQLiteStore) Set(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return s.checkOpen()
	}
	return s.write(ctx, func(tx *sql.Tx) error {
		return upsert(ctx, tx, s.setValue, entries)
	})
}

// SetGuarded writes entries in a single transaction unless the integer
// stored under guard is greater than limit. The guard is read inside the
// same transaction as the write.
func (s *SQLiteStore) SetGuarded(ctx context.Context, guard string, limit int64, entries map[string][]byte) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		var raw string
		err := tx.StmtContext(ctx, s.getValue).QueryRowContext(ctx, guard).Scan(&raw)
		switch {
		case err == sql.ErrNoRows:
		case err != nil:
			return fmt.Errorf("get %s: %w", guard, err)
		default:
			value, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("parse %s: %w", guard, err)
			}
			if value > limit {
				return &GuardError{Key: guard, Value: value, Limit: limit}
			}
		}
		return upsert(ctx, tx, s.setValue, entries)
	})
}

// Reset deletes every key and writes entries in a single transaction.
func (s *SQLiteStore) Reset(ctx context.Context, entries map[string][]byte) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM kv"); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		return upsert(ctx, tx, s.setValue, entries)
	})
}

func (s *SQLiteStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// write runs fn in a transaction and commits when it succeeds.
func (s *SQLiteStore) write(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func upsert(ctx context.Context, tx *sql.Tx, set *sql.Stmt, entries map[string][]byte) error {
	stmt := tx.StmtContext(ctx, set)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	// Deterministic write order keeps lock acquisition predictable.
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := stmt.ExecContext(ctx, k, string(entries[k]), now); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

// Stats returns aggregate statistics about the database.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	stats := &Stats{}
	var lastWrite sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(LENGTH(value)), 0), MAX(updated_at) FROM kv",
	).Scan(&stats.Keys, &stats.TotalValueBytes, &lastWrite)
	if err != nil {
		return nil, fmt.Errorf("kv stats: %w", err)
	}
	if lastWrite.Valid {
		stats.LastWrite, _ = parseTimestamp(lastWrite.String)
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			stats.DatabaseSizeBytes = pageCount * pageSize
		}
	}

	return stats, nil
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// Close releases all prepared statements. The underlying *sql.DB is closed
// only when the store was created by Open.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	for _, stmt := range []*sql.Stmt{s.getValue, s.setValue} {
		if stmt != nil {
			stmt.Close()
		}
	}
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

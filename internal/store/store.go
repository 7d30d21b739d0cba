// Package store is cutman's persistence layer: a single SQLite database
// file accessed through two connection pools (a single-connection writer
// and a reader pool sized to GOMAXPROCS), migrated forward with
// github.com/golang-migrate/migrate on every startup.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"cutman.dev/cutman/internal/store/migrations"
)

// Store owns the writer and reader connection pools for a single SQLite
// database file, plus the on-disk path it was opened with.
type Store struct {
	path    string
	writer  *sql.DB
	reader  *sql.DB
	touchCh chan string
	cancel  context.CancelFunc
}

// Open configures and migrates the database at path, returning a Store
// ready to serve requests. It is idempotent: safe to call on every process
// start regardless of whether the schema already exists.
func Open(path string) (*Store, error) {
	// _txlock=immediate makes every db.BeginTx issue BEGIN IMMEDIATE,
	// acquiring the write lock up front instead of on first write
	// statement, eliminating the classic SQLITE_BUSY-on-upgrade failure.
	writer, err := openConn(path+"?_txlock=immediate", 1)
	if err != nil {
		return nil, fmt.Errorf("store: open writer: %w", err)
	}

	readers := runtime.GOMAXPROCS(0)
	if readers < 1 {
		readers = 1
	}
	reader, err := openConn(readOnlyDSN(path), readers)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("store: open reader: %w", err)
	}

	if err := migrations.Up(writer); err != nil {
		writer.Close()
		reader.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	st := &Store{path: path, writer: writer, reader: reader, touchCh: make(chan string, 256), cancel: cancel}
	go st.runTouchWorker(workerCtx)
	return st, nil
}

// newStoreWithDBs builds a Store directly from already-open pools,
// bypassing Open's migration and pragma setup. Exists for tests that drive
// the store against a mocked *sql.DB instead of a real SQLite file.
func newStoreWithDBs(writer, reader *sql.DB) *Store {
	return &Store{writer: writer, reader: reader, touchCh: make(chan string, 256)}
}

func readOnlyDSN(path string) string {
	return path + "?mode=ro"
}

func openConn(dsn string, maxOpen int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return db, nil
}

// Close stops the background token-touch worker and releases both
// connection pools.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	werr := s.writer.Close()
	rerr := s.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Reader returns the read-only pool for queries that do not need to
// observe the writer's most recent uncommitted state.
func (s *Store) Reader() *sql.DB {
	return s.reader
}

// txFunc is the shape of work run inside a write transaction.
type txFunc func(ctx context.Context, tx *sql.Tx) error

// WithTx runs fn inside a BEGIN IMMEDIATE transaction on the writer pool,
// acquiring the write lock up front so mid-transaction upgrade failures
// cannot happen. It retries on SQLITE_BUSY with exponential backoff for up
// to 5 seconds before surfacing ErrConflict.
func (s *Store) WithTx(ctx context.Context, fn txFunc) error {
	deadline := time.Now().Add(5 * time.Second)
	backoff := 10 * time.Millisecond

	for {
		err := s.runTx(ctx, fn)
		if err == nil || !isBusy(err) || time.Now().After(deadline) {
			if isBusy(err) {
				return ErrConflict
			}
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 500*time.Millisecond {
			backoff = 500 * time.Millisecond
		}
	}
}

func (s *Store) runTx(ctx context.Context, fn txFunc) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(), "database is locked", "SQLITE_BUSY")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(s) >= len(sub) {
			for i := 0; i+len(sub) <= len(s); i++ {
				if s[i:i+len(sub)] == sub {
					return true
				}
			}
		}
	}
	return false
}

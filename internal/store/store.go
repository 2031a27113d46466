package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
)

// Store wraps a connection to the forScore library file.
type Store struct {
	db       *sql.DB
	path     string
	writable bool
	guard    func(ctx context.Context, tx *Tx) error
}

// Open opens the library read-write. Fails with an IO error when the file is
// missing, not a forScore store, or write-locked by the host application.
func Open(path string) (*Store, error) {
	return open(path, true)
}

// OpenReadOnly opens the library for queries only. Tolerates the host
// holding a write lock, since reads go through SQLite's shared cache.
func OpenReadOnly(path string) (*Store, error) {
	return open(path, false)
}

func open(path string, writable bool) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, liberr.Wrap(liberr.CodeIO, fmt.Sprintf("library not found at %s", path), err)
	}

	mode := "ro"
	if writable {
		mode = "rw"
	}
	dsn := fmt.Sprintf("file:%s?mode=%s", path, mode)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, liberr.Wrap(liberr.CodeIO, "open library", err)
	}

	// One connection: SQLite has a single writer, and the lock probe below
	// must run on the same connection later statements use.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, liberr.Wrap(liberr.CodeIO, "open library", err)
	}

	s := &Store{db: db, path: path, writable: writable}
	if err := s.configure(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.verifyShape(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// configure applies the session pragmas. busy_timeout stays at zero so a
// lock held by the host fails the command immediately instead of stalling
// it; synchronous FULL makes commits durable before Transact returns.
func (s *Store) configure() error {
	pragmas := []string{"PRAGMA busy_timeout = 0"}
	if s.writable {
		pragmas = append(pragmas,
			"PRAGMA foreign_keys = ON",
			"PRAGMA synchronous = FULL",
		)
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return liberr.Wrap(liberr.CodeIO, fmt.Sprintf("apply %s", pragma), err)
		}
	}

	if s.writable {
		// Probe for a host-held write lock now rather than at first mutation.
		if _, err := s.db.Exec("BEGIN IMMEDIATE"); err != nil {
			return liberr.Wrap(liberr.CodeIO, "library is locked by another process", err)
		}
		if _, err := s.db.Exec("ROLLBACK"); err != nil {
			return liberr.Wrap(liberr.CodeIO, "release lock probe", err)
		}
	}
	return nil
}

// verifyShape confirms the file carries the host's entity-type registry.
// Anything else is some other SQLite database, not a forScore library.
func (s *Store) verifyShape() error {
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'Z_PRIMARYKEY'",
	).Scan(&name)
	if err != nil {
		return liberr.Wrap(liberr.CodeIO, fmt.Sprintf("%s is not a forScore library", s.path), err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the library file path this store was opened with.
func (s *Store) Path() string {
	return s.path
}

// SetGuard registers the consistency check Transact runs before commit.
func (s *Store) SetGuard(fn func(ctx context.Context, tx *Tx) error) {
	s.guard = fn
}

// ExecContext runs a statement outside any transaction.
func (s *Store) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

// QueryContext runs a query outside any transaction. Callers close the rows.
func (s *Store) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query outside any transaction.
func (s *Store) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

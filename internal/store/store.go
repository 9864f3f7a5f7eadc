package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// currentSchemaVersion is stored in PRAGMA user_version. 0 means a fresh file.
const currentSchemaVersion = 1

// Store is the SQLite relational store the delete engine runs against.
type Store struct {
	db *sql.DB
}

// Transaction is the executor one delete request holds for its lifetime.
// Errors caused by foreign key or unique violations are returned as
// *ConstraintError.
type Transaction interface {
	// QueryIDs runs a projection of integer columns and returns its rows.
	QueryIDs(ctx context.Context, query string, args ...any) ([][]int64, error)

	// Exec runs an update or delete and returns the affected row count.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	Savepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// connParams are applied by the driver to every pooled connection.
// busy_timeout is in milliseconds.
const connParams = "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"

// Open opens the database at path, creating it and the imaging schema if
// needed. path may be ":memory:". Calling Open again on the same file is a
// no-op apart from the version check.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?"+connParams)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One writer; a second connection would only ever see SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	// The delete engine relies on RESTRICT violations surfacing as errors.
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		return err
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return s.migrate()
}

// Close is safe on a zero Store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the pool for fixture loading and assertions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Begin starts the transaction of one delete request.
func (s *Store) Begin(ctx context.Context) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &sqlTx{tx: tx}, nil
}

// migrate stamps user_version. Only version 1 exists, so the only real
// work is refusing databases written by a newer build.
func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	switch {
	case version > currentSchemaVersion:
		return fmt.Errorf("database schema version %d is newer than %d", version, currentSchemaVersion)
	case version == currentSchemaVersion:
		return nil
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func (s *Store) verifyPragma(name, want string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("pragma %s is %q, want %q", name, got, want)
	}
	return nil
}

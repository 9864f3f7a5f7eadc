// Package pgstore runs the delete engine against PostgreSQL through pgx.
//
// Queries are written with "?" placeholders and rebound to "$n" before
// they reach the server. SQLSTATE 23503 (foreign_key_violation) and 23505
// (unique_violation) surface as *store.ConstraintError carrying the
// server's constraint name.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/cascade/internal/querysql"
	"github.com/roach88/cascade/internal/store"
)

// SQLSTATE codes classified as constraint violations.
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
)

var savepointName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store opens delete transactions on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by the given pgx connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open connects a pool to dsn.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(pool), nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Begin starts the transaction of one delete request.
func (s *Store) Begin(ctx context.Context) (store.Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) QueryIDs(ctx context.Context, query string, args ...any) ([][]int64, error) {
	rows, err := t.tx.Query(ctx, querysql.Rebind(query), args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	width := len(rows.FieldDescriptions())
	var out [][]int64
	for rows.Next() {
		row := make([]int64, width)
		dest := make([]any, width)
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan ids: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (t *pgTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, querysql.Rebind(query), args...)
	if err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) Savepoint(ctx context.Context, name string) error {
	return t.savepointStmt(ctx, "SAVEPOINT %s", name)
}

func (t *pgTx) ReleaseSavepoint(ctx context.Context, name string) error {
	return t.savepointStmt(ctx, "RELEASE SAVEPOINT %s", name)
}

func (t *pgTx) RollbackToSavepoint(ctx context.Context, name string) error {
	return t.savepointStmt(ctx, "ROLLBACK TO SAVEPOINT %s", name)
}

func (t *pgTx) savepointStmt(ctx context.Context, format, name string) error {
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	stmt := fmt.Sprintf(format, name)
	if _, err := t.tx.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("%s: %w", stmt, err)
	}
	return nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// classify wraps Postgres constraint errors into store.ConstraintError.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeForeignKeyViolation:
		return &store.ConstraintError{Kind: store.ConstraintForeignKey, Constraint: pgErr.ConstraintName, Err: err}
	case codeUniqueViolation:
		return &store.ConstraintError{Kind: store.ConstraintUnique, Constraint: pgErr.ConstraintName, Err: err}
	}
	return err
}

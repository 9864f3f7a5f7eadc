package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

var savepointName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// sqlTx implements Transaction over database/sql.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) QueryIDs(ctx context.Context, query string, args ...any) ([][]int64, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]int64
	for rows.Next() {
		row := make([]int64, len(cols))
		dest := make([]any, len(cols))
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

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}

func (t *sqlTx) Savepoint(ctx context.Context, name string) error {
	return t.savepointStmt(ctx, "SAVEPOINT %s", name)
}

func (t *sqlTx) ReleaseSavepoint(ctx context.Context, name string) error {
	return t.savepointStmt(ctx, "RELEASE SAVEPOINT %s", name)
}

func (t *sqlTx) RollbackToSavepoint(ctx context.Context, name string) error {
	return t.savepointStmt(ctx, "ROLLBACK TO SAVEPOINT %s", name)
}

func (t *sqlTx) savepointStmt(ctx context.Context, format, name string) error {
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	if _, err := t.tx.ExecContext(ctx, fmt.Sprintf(format, name)); err != nil {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, name), err)
	}
	return nil
}

func (t *sqlTx) Commit(_ context.Context) error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback(_ context.Context) error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

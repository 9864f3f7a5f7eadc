package store

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Insert adds one row to table. Column names are validated as identifiers;
// values are bound. It is used to load fixtures and scenario data.
func (s *Store) Insert(ctx context.Context, table string, row map[string]any) error {
	if !identifier.MatchString(table) {
		return fmt.Errorf("insert: invalid table name %q", table)
	}
	cols := make([]string, 0, len(row))
	for col := range row {
		if !identifier.MatchString(col) {
			return fmt.Errorf("insert into %s: invalid column name %q", table, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	for i, col := range cols {
		args[i] = row[col]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, classify(err))
	}
	return nil
}

// IDs returns the ids of every row in table in ascending order.
func (s *Store) IDs(ctx context.Context, table string) ([]int64, error) {
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("ids: invalid table name %q", table)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %s ORDER BY id ASC", table))
	if err != nil {
		return nil, fmt.Errorf("ids of %s: %w", table, err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ids of %s: %w", table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// insertRow inserts a fixture row owned by user 1 in group 1.
func insertRow(t *testing.T, s *Store, table string, row map[string]any) {
	t.Helper()
	if _, ok := row["owner_id"]; !ok {
		row["owner_id"] = 1
	}
	if _, ok := row["group_id"]; !ok {
		row["group_id"] = 1
	}
	if err := s.Insert(context.Background(), table, row); err != nil {
		t.Fatalf("Insert(%s) failed: %v", table, err)
	}
}

package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/store"
)

// createTestDB creates a SQLite database holding image 42 with pixels 5
// and tag 1, all owned by user 1 in group 1.
func createTestDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	rows := []struct {
		table string
		row   map[string]any
	}{
		{"image", map[string]any{"id": 42}},
		{"pixels", map[string]any{"id": 5, "image": 42}},
		{"annotation", map[string]any{"id": 1, "discriminator": "tag"}},
		{"image_annotation_link", map[string]any{"id": 11, "parent": 42, "child": 1}},
	}
	for _, r := range rows {
		r.row["owner_id"] = 1
		r.row["group_id"] = 1
		require.NoError(t, st.Insert(ctx, r.table, r.row))
	}
	return path
}

// tableIDs reads the ids left in a table of a database file.
func tableIDs(t *testing.T, path, table string) []int64 {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()
	ids, err := st.IDs(context.Background(), table)
	require.NoError(t, err)
	return ids
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

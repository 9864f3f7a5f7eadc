package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/store"
	"github.com/roach88/cascade/specs"
)

// setupTestStore creates an empty imaging database in a temp directory.
func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func setupTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	reg, err := specs.Load()
	require.NoError(t, err)
	opts = append([]EngineOption{WithRequestIDs(NewFixedGenerator("req-1", "req-2", "req-3"))}, opts...)
	return New(reg, opts...)
}

// seed inserts a row owned by user 1 in group 1 unless the row says
// otherwise.
func seed(t *testing.T, s *store.Store, table string, row map[string]any) {
	t.Helper()
	if _, ok := row["owner_id"]; !ok {
		row["owner_id"] = 1
	}
	if _, ok := row["group_id"]; !ok {
		row["group_id"] = 1
	}
	require.NoError(t, s.Insert(context.Background(), table, row))
}

func owner() ir.Principal {
	return ir.Principal{UserID: 1, GroupID: 1}
}

// prepare opens a transaction and prepares a request on it. The
// transaction is rolled back at cleanup unless the test commits it.
func prepare(t *testing.T, s *store.Store, e *Engine, req Request, sink EventFunc) (*State, store.Transaction) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { tx.Rollback(ctx) })

	state, err := e.Prepare(ctx, tx, req, sink)
	require.NoError(t, err)
	return state, tx
}

func ids(t *testing.T, s *store.Store, table string) []int64 {
	t.Helper()
	got, err := s.IDs(context.Background(), table)
	require.NoError(t, err)
	return got
}

// seedImage creates image 42 with pixels 5 and rendering settings 6, and two
// tags (1 and 2) linked through links 11 and 12.
func seedImage(t *testing.T, s *store.Store) {
	t.Helper()
	seed(t, s, "image", map[string]any{"id": 42})
	seed(t, s, "pixels", map[string]any{"id": 5, "image": 42})
	seed(t, s, "rendering_def", map[string]any{"id": 6, "pixels": 5})
	seed(t, s, "annotation", map[string]any{"id": 1, "discriminator": "tag"})
	seed(t, s, "annotation", map[string]any{"id": 2, "discriminator": "tag"})
	seed(t, s, "image_annotation_link", map[string]any{"id": 11, "parent": 42, "child": 1})
	seed(t, s, "image_annotation_link", map[string]any{"id": 12, "parent": 42, "child": 2})
}

// seedPlate creates plate 7 with well 70 and well sample 700 holding image
// 100. Image 100 is tagged with tag 9, which image 200 outside the plate
// also carries.
func seedPlate(t *testing.T, s *store.Store) {
	t.Helper()
	seed(t, s, "plate", map[string]any{"id": 7})
	seed(t, s, "well", map[string]any{"id": 70, "plate": 7})
	seed(t, s, "image", map[string]any{"id": 100})
	seed(t, s, "image", map[string]any{"id": 200})
	seed(t, s, "well_sample", map[string]any{"id": 700, "well": 70, "image": 100})
	seed(t, s, "annotation", map[string]any{"id": 9, "discriminator": "tag"})
	seed(t, s, "image_annotation_link", map[string]any{"id": 1000, "parent": 100, "child": 9})
	seed(t, s, "image_annotation_link", map[string]any{"id": 2000, "parent": 200, "child": 9})
}

// recordingTx counts savepoint operations of the wrapped transaction.
type recordingTx struct {
	Tx
	savepointOps int
}

func (r *recordingTx) Savepoint(ctx context.Context, name string) error {
	r.savepointOps++
	return r.Tx.Savepoint(ctx, name)
}

func (r *recordingTx) ReleaseSavepoint(ctx context.Context, name string) error {
	r.savepointOps++
	return r.Tx.ReleaseSavepoint(ctx, name)
}

func (r *recordingTx) RollbackToSavepoint(ctx context.Context, name string) error {
	r.savepointOps++
	return r.Tx.RollbackToSavepoint(ctx, name)
}

type stepView struct {
	Kind StepKind
	Path string
	ID   int64
}

func view(steps []*Step) []stepView {
	out := make([]stepView, len(steps))
	for i, s := range steps {
		out[i] = stepView{Kind: s.Kind, Path: s.Path, ID: s.ID}
	}
	return out
}

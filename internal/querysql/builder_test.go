package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
)

func testModel() *ir.Model {
	m := ir.NewModel()
	m.Add(&ir.TypeDef{Name: "Dataset", Table: "dataset", Owned: true})
	m.Add(&ir.TypeDef{Name: "Image", Table: "image", Owned: true})
	m.Add(&ir.TypeDef{Name: "DatasetImageLink", Table: "dataset_image_link", Owned: true,
		Parents:  map[string]string{"Dataset": "parent"},
		Children: map[string]string{"Image": "child"}})
	m.Add(&ir.TypeDef{Name: "Pixels", Table: "pixels", Owned: true,
		Parents: map[string]string{"Image": "image"}})
	m.Add(&ir.TypeDef{Name: "Annotation", Table: "annotation", Owned: true, Namespace: "ns"})
	m.Add(&ir.TypeDef{Name: "TagAnnotation", Table: "annotation", Extends: "Annotation", Discriminator: "tag", Owned: true})
	m.Add(&ir.TypeDef{Name: "ImageAnnotationLink", Table: "image_annotation_link", Owned: true,
		Parents:  map[string]string{"Image": "parent"},
		Children: map[string]string{"Annotation": "child"}})
	return m
}

func TestCollect_RootOnly(t *testing.T) {
	b := NewBuilder(testModel())

	q, width, err := b.Collect(Collect{Segments: []string{"Image"}}, 42)
	require.NoError(t, err)

	assert.Equal(t, 1, width)
	assert.Equal(t, "SELECT t0.id FROM image t0 WHERE t0.id = ? ORDER BY t0.id ASC", q.SQL)
	assert.Equal(t, []any{int64(42)}, q.Args)
}

func TestCollect_ReverseAndForwardJoins(t *testing.T) {
	b := NewBuilder(testModel())

	q, width, err := b.Collect(Collect{Segments: []string{"Image", "ImageAnnotationLink", "TagAnnotation"}}, 42)
	require.NoError(t, err)

	assert.Equal(t, 3, width)
	assert.Equal(t,
		"SELECT t0.id, t1.id, t2.id FROM image t0"+
			" JOIN image_annotation_link t1 ON t1.parent = t0.id"+
			" JOIN annotation t2 ON t2.id = t1.child"+
			" WHERE t0.id = ? AND t2.discriminator = ?"+
			" ORDER BY t0.id ASC, t1.id ASC, t2.id ASC",
		q.SQL)
	assert.Equal(t, []any{int64(42), "tag"}, q.Args)
	assert.NotContains(t, q.SQL, "42")
}

func TestCollect_NarrowAddsNoColumn(t *testing.T) {
	b := NewBuilder(testModel())

	q, width, err := b.Collect(Collect{Segments: []string{"Annotation", "TagAnnotation"}}, 7)
	require.NoError(t, err)

	assert.Equal(t, 1, width)
	assert.Equal(t, "SELECT t0.id FROM annotation t0 WHERE t0.id = ? AND t0.discriminator = ? ORDER BY t0.id ASC", q.SQL)
	assert.Equal(t, []any{int64(7), "tag"}, q.Args)
}

func TestCollect_Reap(t *testing.T) {
	b := NewBuilder(testModel())

	q, _, err := b.Collect(Collect{Segments: []string{"Image", "Pixels"}, Op: ir.OpReap, UserID: 3}, 42)
	require.NoError(t, err)

	assert.Contains(t, q.SQL, "t1.owner_id <> ?")
	assert.Equal(t, []any{int64(42), int64(3)}, q.Args)
}

func TestCollect_OrphanExcludesPathLink(t *testing.T) {
	b := NewBuilder(testModel())

	q, _, err := b.Collect(Collect{Segments: []string{"Dataset", "DatasetImageLink", "Image"}, Op: ir.OpOrphan}, 5)
	require.NoError(t, err)

	assert.Contains(t, q.SQL,
		"NOT EXISTS (SELECT 1 FROM dataset_image_link r0 WHERE r0.child = t2.id AND r0.id <> t1.id)")
	assert.Equal(t, []any{int64(5)}, q.Args)
}

func TestCollect_NamespaceFilters(t *testing.T) {
	b := NewBuilder(testModel())

	q, _, err := b.Collect(Collect{
		Segments:   []string{"Annotation", "TagAnnotation"},
		NSIncludes: []string{"a", "b"},
		NSExcludes: []string{"c"},
	}, 1)
	require.NoError(t, err)

	assert.Contains(t, q.SQL, "t0.ns IN (?, ?)")
	assert.Contains(t, q.SQL, "(t0.ns IS NULL OR t0.ns NOT IN (?))")
	assert.Equal(t, []any{int64(1), "tag", "a", "b", "c"}, q.Args)
}

func TestCollect_Errors(t *testing.T) {
	b := NewBuilder(testModel())

	_, _, err := b.Collect(Collect{}, 1)
	assert.Error(t, err)

	_, _, err = b.Collect(Collect{Segments: []string{"Image", "Dataset"}}, 1)
	assert.ErrorContains(t, err, "no relation from Image to Dataset")
}

func TestDelete_Ownership(t *testing.T) {
	b := NewBuilder(testModel())

	q := b.Delete("image", 42, Ownership{})
	assert.Equal(t, "DELETE FROM image WHERE id = ?", q.SQL)
	assert.Equal(t, []any{int64(42)}, q.Args)

	q = b.Delete("image", 42, Ownership{Column: OwnerColumn, Value: 3})
	assert.Equal(t, "DELETE FROM image WHERE id = ? AND owner_id = ?", q.SQL)
	assert.Equal(t, []any{int64(42), int64(3)}, q.Args)
}

func TestNullifyAndLinks(t *testing.T) {
	b := NewBuilder(testModel())

	q := b.Nullify("pixels", "related_to", 9)
	assert.Equal(t, "UPDATE pixels SET related_to = NULL WHERE related_to = ?", q.SQL)

	q = b.LinkIDs(ir.Reference{Table: "image_annotation_link", Column: "child"}, 9, Ownership{Column: GroupColumn, Value: 2})
	assert.Equal(t, "SELECT id FROM image_annotation_link WHERE child = ? AND group_id = ? ORDER BY id ASC", q.SQL)
	assert.Equal(t, []any{int64(9), int64(2)}, q.Args)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "DELETE FROM image WHERE id = $1 AND owner_id = $2",
		Rebind("DELETE FROM image WHERE id = ? AND owner_id = ?"))
	assert.Equal(t, "SELECT 1", Rebind("SELECT 1"))
}

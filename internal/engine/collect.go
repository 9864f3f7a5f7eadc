package engine

import (
	"context"
	"fmt"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/querysql"
)

// Table is the id table of one entry reached at one logical path.
type Table struct {
	Spec  *ir.Spec
	Entry ir.Entry

	// Path is the logical path, the entry path prefixed by the path of the
	// entry that descended into Spec.
	Path string

	// Op is the effective operation after request overrides.
	Op ir.Op

	// Root is set for entries of the request's root spec.
	Root bool

	// Unlink is set when the table's rows are the request's root annotation.
	// Their delete steps first remove every link row pointing at them.
	Unlink bool

	Rows []ir.IDTuple
	Sets []ir.ColumnSet

	// Sub holds, per collected row id, the tables of the sub-spec the entry
	// descends into.
	Sub map[int64][]*Table
}

// IDs returns the row ids of the table in collection order.
func (t *Table) IDs() []int64 {
	ids := make([]int64, len(t.Rows))
	for i, r := range t.Rows {
		ids[i] = r.ID
	}
	return ids
}

type collector struct {
	engine  *Engine
	tx      Tx
	req     Request
	queries int
}

// collect captures the tables of spec bound to one row. An entry's table is
// complete before its sub-spec is descended into, and an empty table
// short-circuits the subtree.
//
// unlink marks spec as reached from the root annotation row: every entry of
// an annotation variant spec, and the self entry of any other spec, deletes
// that row and gets link cleanup.
func (c *collector) collect(ctx context.Context, spec *ir.Spec, binding int64, prefix string, root, unlink bool) ([]*Table, error) {
	opts := c.req.Options
	annotation := spec.Variant == ir.VariantAnnotation

	var tables []*Table
	for _, entry := range spec.Entries {
		if annotation && !opts.IncludesType(entry.Name()) {
			continue
		}

		path := entry.SubPath(prefix)
		t := &Table{
			Spec:  spec,
			Entry: entry,
			Path:  path,
			Op:    opts.OpFor(path, entry),
			Root:  root,
		}
		t.Unlink = unlink && (annotation || len(entry.Segments) == 1)
		if t.Op != entry.Op {
			if err := c.engine.registry.CheckOverride(spec, entry, t.Op); err != nil {
				return nil, fmt.Errorf("option %s: %w", path, err)
			}
		}

		q := querysql.Collect{
			Segments: entry.Segments,
			Op:       t.Op,
			UserID:   c.req.Principal.UserID,
		}
		if annotation {
			q.NSIncludes = opts.NSIncludes
			q.NSExcludes = opts.NSExcludes
		}
		query, _, err := c.engine.builder.Collect(q, binding)
		if err != nil {
			return nil, err
		}
		rows, err := c.tx.QueryIDs(ctx, query.SQL, query.Args...)
		if err != nil {
			return nil, err
		}
		c.queries++

		t.Rows = make([]ir.IDTuple, len(rows))
		for i, cols := range rows {
			t.Rows[i] = ir.NewIDTuple(cols)
		}
		t.Sets = columnSets(t.Rows)

		if entry.HasSubSpec() && len(t.Rows) > 0 {
			sub := c.engine.registry.At(entry.SubSpec)
			t.Sub = make(map[int64][]*Table, len(t.Rows))
			for _, row := range t.Rows {
				if _, done := t.Sub[row.ID]; done {
					continue
				}
				subTables, err := c.collect(ctx, sub, row.ID, path, false, t.Unlink)
				if err != nil {
					return nil, err
				}
				t.Sub[row.ID] = subTables
			}
		}

		tables = append(tables, t)
	}
	return tables, nil
}

// columnSets groups rows sharing every column but the last, in first-seen
// order. Grouping is a partition: every row lands in exactly one set.
// Sets are found through a map keyed by the parent columns rather than by
// pairwise comparison; the output is the same, in linear time.
func columnSets(rows []ir.IDTuple) []ir.ColumnSet {
	var sets []ir.ColumnSet
	index := make(map[string]int)
	for _, row := range rows {
		key := row.ParentKey()
		i, ok := index[key]
		if !ok {
			i = len(sets)
			index[key] = i
			sets = append(sets, ir.ColumnSet{Parent: row.Parent})
		}
		sets[i].Rows = append(sets[i].Rows, row)
	}
	return sets
}

// Package querysql builds the parameterized SQL the delete engine runs.
//
// Every value is bound through a "?" placeholder, never interpolated, and
// every SELECT carries an ORDER BY over all returned columns so that
// collection results are deterministic. Dialects with numbered
// placeholders use Rebind.
package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/cascade/internal/ir"
)

// Query is a statement with its bound arguments.
type Query struct {
	SQL  string
	Args []any
}

// Ownership restricts a delete to rows of one owner or one group. The zero
// value applies no restriction.
type Ownership struct {
	Column string
	Value  int64
}

// Ownership columns present on every owned table.
const (
	OwnerColumn = "owner_id"
	GroupColumn = "group_id"
)

// Collect describes the id collection query of one entry.
type Collect struct {
	// Segments are the types along the entry path. The first segment is
	// bound to a single row id.
	Segments []string

	// Op narrows the last segment for REAP and ORPHAN.
	Op ir.Op

	// UserID is the acting user, used by REAP.
	UserID int64

	NSIncludes []string
	NSExcludes []string
}

// Builder renders queries against a catalog.
type Builder struct {
	model *ir.Model
}

// NewBuilder creates a Builder for model.
func NewBuilder(model *ir.Model) *Builder {
	return &Builder{model: model}
}

type alias struct {
	name    string
	typ     *ir.TypeDef
	via     ir.Join
	prevIdx int
}

// Collect renders the SELECT returning one id column per table joined along
// the path. A subtype segment narrows the current row on the discriminator
// column and adds no column.
func (b *Builder) Collect(c Collect, binding int64) (Query, int, error) {
	if len(c.Segments) == 0 {
		return Query{}, 0, fmt.Errorf("collect: empty path")
	}

	first, ok := b.model.Type(c.Segments[0])
	if !ok {
		return Query{}, 0, fmt.Errorf("collect: unknown type %q", c.Segments[0])
	}

	aliases := []alias{{name: "t0", typ: first, prevIdx: -1}}
	var joins, where []string
	var args []any
	where = append(where, "t0.id = ?")
	args = append(args, binding)
	if first.Extends != "" {
		where = append(where, fmt.Sprintf("t0.%s = ?", b.model.DiscriminatorColumn))
		args = append(args, first.Discriminator)
	}

	for i := 1; i < len(c.Segments); i++ {
		prev := c.Segments[i-1]
		next, ok := b.model.Type(c.Segments[i])
		if !ok {
			return Query{}, 0, fmt.Errorf("collect: unknown type %q", c.Segments[i])
		}
		join, err := b.model.Join(prev, next.Name)
		if err != nil {
			return Query{}, 0, fmt.Errorf("collect: %w", err)
		}

		cur := &aliases[len(aliases)-1]
		switch join.Kind {
		case ir.JoinNarrow:
			cur.typ = next
		case ir.JoinReverse, ir.JoinForward:
			name := "t" + strconv.Itoa(len(aliases))
			if join.Kind == ir.JoinReverse {
				joins = append(joins, fmt.Sprintf("JOIN %s %s ON %s.%s = %s.id", next.Table, name, name, join.Column, cur.name))
			} else {
				joins = append(joins, fmt.Sprintf("JOIN %s %s ON %s.id = %s.%s", next.Table, name, name, cur.name, join.Column))
			}
			aliases = append(aliases, alias{name: name, typ: next, via: join, prevIdx: len(aliases) - 1})
		}
		if next.Extends != "" {
			where = append(where, fmt.Sprintf("%s.%s = ?", aliases[len(aliases)-1].name, b.model.DiscriminatorColumn))
			args = append(args, next.Discriminator)
		}
	}

	last := aliases[len(aliases)-1]
	switch c.Op {
	case ir.OpReap:
		where = append(where, fmt.Sprintf("%s.%s <> ?", last.name, OwnerColumn))
		args = append(args, c.UserID)
	case ir.OpOrphan:
		where = append(where, b.orphanPredicates(aliases)...)
	}

	if col := b.model.NamespaceColumn(last.typ.Name); col != "" {
		if len(c.NSIncludes) > 0 {
			where = append(where, fmt.Sprintf("%s.%s IN (%s)", last.name, col, placeholders(len(c.NSIncludes))))
			args = appendStrings(args, c.NSIncludes)
		}
		if len(c.NSExcludes) > 0 {
			where = append(where, fmt.Sprintf("(%s.%s IS NULL OR %s.%s NOT IN (%s))",
				last.name, col, last.name, col, placeholders(len(c.NSExcludes))))
			args = appendStrings(args, c.NSExcludes)
		}
	}

	cols := make([]string, len(aliases))
	order := make([]string, len(aliases))
	for i, a := range aliases {
		cols[i] = a.name + ".id"
		order[i] = a.name + ".id ASC"
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(first.Table)
	sb.WriteString(" t0")
	for _, j := range joins {
		sb.WriteString(" ")
		sb.WriteString(j)
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(where, " AND "))
	// MANDATORY: deterministic order over every returned column
	sb.WriteString(" ORDER BY ")
	sb.WriteString(strings.Join(order, ", "))

	return Query{SQL: sb.String(), Args: args}, len(aliases), nil
}

// orphanPredicates keeps the last row only when no other row points at it
// through a child column. The row the path came through is not counted.
func (b *Builder) orphanPredicates(aliases []alias) []string {
	last := aliases[len(aliases)-1]
	var prev *alias
	if last.prevIdx >= 0 {
		prev = &aliases[last.prevIdx]
	}

	var preds []string
	for i, ref := range b.model.Inbound(last.typ.Name) {
		r := "r" + strconv.Itoa(i)
		pred := fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s %s WHERE %s.%s = %s.id",
			ref.Table, r, r, ref.Column, last.name)
		if prev != nil && last.via.Kind == ir.JoinForward &&
			prev.typ.Table == ref.Table && last.via.Column == ref.Column {
			pred += fmt.Sprintf(" AND %s.id <> %s.id", r, prev.name)
		}
		preds = append(preds, pred+")")
	}
	return preds
}

// Delete renders the delete of one row.
func (b *Builder) Delete(table string, id int64, own Ownership) Query {
	q := Query{SQL: fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), Args: []any{id}}
	return own.apply(q)
}

// Nullify renders the update breaking every reference to id in column.
func (b *Builder) Nullify(table, column string, id int64) Query {
	return Query{
		SQL:  fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = ?", table, column, column),
		Args: []any{id},
	}
}

// LinkIDs renders the SELECT of link rows pointing at child.
func (b *Builder) LinkIDs(ref ir.Reference, child int64, own Ownership) Query {
	q := Query{
		SQL:  fmt.Sprintf("SELECT id FROM %s WHERE %s = ?", ref.Table, ref.Column),
		Args: []any{child},
	}
	q = own.apply(q)
	q.SQL += " ORDER BY id ASC"
	return q
}

// Owner renders the lookup of a row's owner and group.
func (b *Builder) Owner(table string, id int64) Query {
	return Query{
		SQL:  fmt.Sprintf("SELECT %s, %s FROM %s WHERE id = ? ORDER BY id ASC", OwnerColumn, GroupColumn, table),
		Args: []any{id},
	}
}

func (o Ownership) apply(q Query) Query {
	if o.Column == "" {
		return q
	}
	q.SQL += fmt.Sprintf(" AND %s = ?", o.Column)
	q.Args = append(q.Args, o.Value)
	return q
}

// Rebind converts "?" placeholders to "$1", "$2", ... for Postgres.
func Rebind(query string) string {
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func appendStrings(args []any, values []string) []any {
	for _, v := range values {
		args = append(args, v)
	}
	return args
}

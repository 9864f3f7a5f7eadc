package ir

import (
	"fmt"
	"strings"
)

// DefaultDiscriminatorColumn is the column that stores the concrete type
// of rows in tables shared by a type hierarchy.
const DefaultDiscriminatorColumn = "discriminator"

// TypeDef declares how one object type is stored and how it joins to its
// neighbours. Every foreign key column lives on the declaring type's table.
type TypeDef struct {
	Name  string `json:"name"`
	Table string `json:"table"`

	// Extends names the supertype whose table this type shares.
	Extends string `json:"extends,omitempty"`

	// Discriminator is the value of the discriminator column for rows of
	// this concrete type.
	Discriminator string `json:"discriminator,omitempty"`

	// Parents maps a parent type to the column of this table that points
	// at it (child.column = parent.id).
	Parents map[string]string `json:"parents,omitempty"`

	// Children maps a referenced type to the column of this table that
	// points at it (referenced.id = this.column).
	Children map[string]string `json:"children,omitempty"`

	// Refs maps a nullable column of this table to the type it references.
	Refs map[string]string `json:"refs,omitempty"`

	// Owned reports whether the table carries owner_id and group_id.
	Owned bool `json:"owned"`

	// Namespace is the column holding the row namespace, if any.
	Namespace string `json:"namespace,omitempty"`

	// Files is the blob key pattern for rows that own binary data,
	// e.g. "pixels/{id}".
	Files string `json:"files,omitempty"`
}

// Model is the object catalog the specs walk over.
type Model struct {
	Types               map[string]*TypeDef `json:"types"`
	Order               []string            `json:"order"`
	DiscriminatorColumn string              `json:"discriminator_column"`
}

// NewModel creates an empty catalog.
func NewModel() *Model {
	return &Model{
		Types:               make(map[string]*TypeDef),
		DiscriminatorColumn: DefaultDiscriminatorColumn,
	}
}

// Add registers a type in declaration order.
func (m *Model) Add(t *TypeDef) {
	if _, exists := m.Types[t.Name]; !exists {
		m.Order = append(m.Order, t.Name)
	}
	m.Types[t.Name] = t
}

// Type returns the named type.
func (m *Model) Type(name string) (*TypeDef, bool) {
	t, ok := m.Types[name]
	return t, ok
}

// Chain returns name followed by its supertypes, nearest first.
func (m *Model) Chain(name string) []string {
	var chain []string
	seen := make(map[string]bool)
	for name != "" && !seen[name] {
		seen[name] = true
		chain = append(chain, name)
		t, ok := m.Types[name]
		if !ok {
			break
		}
		name = t.Extends
	}
	return chain
}

// IsA reports whether name is ancestor or one of its subtypes.
func (m *Model) IsA(name, ancestor string) bool {
	for _, n := range m.Chain(name) {
		if n == ancestor {
			return true
		}
	}
	return false
}

// Subtypes returns the direct subtypes of base in declaration order.
func (m *Model) Subtypes(base string) []string {
	var out []string
	for _, name := range m.Order {
		if m.Types[name].Extends == base {
			out = append(out, name)
		}
	}
	return out
}

// JoinKind describes how one path segment reaches the next.
type JoinKind int

const (
	// JoinNarrow keeps the same row and narrows it to a subtype.
	JoinNarrow JoinKind = iota

	// JoinReverse follows a column of the next table: next.column = prev.id.
	JoinReverse

	// JoinForward follows a column of the previous table: next.id = prev.column.
	JoinForward
)

// Join describes the step from one segment type to the next.
type Join struct {
	Kind   JoinKind
	Column string
}

// Join resolves how prev reaches next. Declarations on supertypes apply to
// their subtypes on both sides. Columns on the next table win over columns
// on the previous one.
func (m *Model) Join(prev, next string) (Join, error) {
	if _, ok := m.Types[prev]; !ok {
		return Join{}, fmt.Errorf("unknown type %q", prev)
	}
	if _, ok := m.Types[next]; !ok {
		return Join{}, fmt.Errorf("unknown type %q", next)
	}
	if next != prev && m.IsA(next, prev) {
		return Join{Kind: JoinNarrow}, nil
	}
	prevChain := m.Chain(prev)
	nextChain := m.Chain(next)
	for _, n := range nextChain {
		for _, p := range prevChain {
			if col, ok := m.Types[n].Parents[p]; ok {
				return Join{Kind: JoinReverse, Column: col}, nil
			}
			if col, ok := m.Types[n].Children[p]; ok {
				return Join{Kind: JoinReverse, Column: col}, nil
			}
		}
	}
	for _, p := range prevChain {
		for _, n := range nextChain {
			if col, ok := m.Types[p].Children[n]; ok {
				return Join{Kind: JoinForward, Column: col}, nil
			}
		}
	}
	return Join{}, fmt.Errorf("no relation from %s to %s", prev, next)
}

// Reference is a foreign key column pointing at some type.
type Reference struct {
	Type   string
	Table  string
	Column string
}

// Inbound returns every Children column in the catalog that can point at
// rows of target, in declaration order. Parents and Refs columns are not
// included: they belong to rows owned by, or loosely tied to, the target.
func (m *Model) Inbound(target string) []Reference {
	var refs []Reference
	for _, name := range m.Order {
		t := m.Types[name]
		for _, c := range sortedKeys(t.Children) {
			if m.IsA(target, c) {
				refs = append(refs, Reference{Type: t.Name, Table: t.Table, Column: t.Children[c]})
			}
		}
	}
	return refs
}

// ChildLinks returns the link types, those declaring both a parent and a
// child, whose child column points at target or one of its supertypes.
func (m *Model) ChildLinks(target string) []Reference {
	var links []Reference
	for _, ref := range m.Inbound(target) {
		if len(m.Types[ref.Type].Parents) > 0 {
			links = append(links, ref)
		}
	}
	return links
}

// NamespaceColumn returns the namespace column of a type, inherited from
// its supertypes.
func (m *Model) NamespaceColumn(name string) string {
	for _, n := range m.Chain(name) {
		if t, ok := m.Types[n]; ok && t.Namespace != "" {
			return t.Namespace
		}
	}
	return ""
}

// BlobKey expands the type's Files pattern for a row id.
func (t *TypeDef) BlobKey(id int64) (string, bool) {
	if t.Files == "" {
		return "", false
	}
	return strings.ReplaceAll(t.Files, "{id}", fmt.Sprintf("%d", id)), true
}

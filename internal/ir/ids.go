package ir

import (
	"sort"
	"strconv"
	"strings"
)

// IDTuple is one row of an entry's id table: the ids along the entry path
// leading to the row, followed by the row id itself.
type IDTuple struct {
	Parent []int64 `json:"parent"`
	ID     int64   `json:"id"`
}

// NewIDTuple splits a scanned column list into parent columns and row id.
// cols must not be empty.
func NewIDTuple(cols []int64) IDTuple {
	parent := make([]int64, len(cols)-1)
	copy(parent, cols[:len(cols)-1])
	return IDTuple{Parent: parent, ID: cols[len(cols)-1]}
}

// Columns returns the full column list.
func (t IDTuple) Columns() []int64 {
	cols := make([]int64, 0, len(t.Parent)+1)
	cols = append(cols, t.Parent...)
	return append(cols, t.ID)
}

// ParentKey returns a string key identifying the parent columns.
func (t IDTuple) ParentKey() string {
	return joinIDs(t.Parent)
}

// String renders the tuple as "1/2/3".
func (t IDTuple) String() string {
	return joinIDs(t.Columns())
}

// ColumnSet is the group of rows of one entry sharing the same parent
// columns: all children of one parent.
type ColumnSet struct {
	Parent []int64   `json:"parent"`
	Rows   []IDTuple `json:"rows"`
}

// IDs returns the row ids of the set in order.
func (c ColumnSet) IDs() []int64 {
	ids := make([]int64, len(c.Rows))
	for i, r := range c.Rows {
		ids[i] = r.ID
	}
	return ids
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, "/")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

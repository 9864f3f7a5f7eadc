// Package blob removes the binary files of deleted rows once their delete
// has committed. Which tables own files, and under which key, is declared
// by the catalog's files patterns, e.g. "pixels/{id}".
package blob

import (
	"github.com/roach88/cascade/internal/ir"
)

// Keys expands the blob keys of deleted rows in catalog order. Tables
// without a files pattern contribute nothing.
func Keys(model *ir.Model, deleted map[string][]int64) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, name := range model.Order {
		t := model.Types[name]
		if t.Files == "" || seen[t.Table] {
			continue
		}
		seen[t.Table] = true
		for _, id := range deleted[t.Table] {
			if key, ok := t.BlobKey(id); ok {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

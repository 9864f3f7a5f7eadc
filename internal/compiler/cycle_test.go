package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/cascade/internal/ir"
)

// arena builds resolved specs from name -> sub-spec names. Every spec also
// gets its root entry.
func arena(names []string, refs map[string][]string) []*ir.Spec {
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	specs := make([]*ir.Spec, len(names))
	for i, n := range names {
		s := &ir.Spec{Name: n}
		for _, sub := range refs[n] {
			s.Entries = append(s.Entries, ir.Entry{Path: "/" + n + "/" + sub, SubSpec: index[sub]})
		}
		s.Entries = append(s.Entries, ir.Entry{Path: "/" + n, SubSpec: ir.NoSubSpec})
		specs[i] = s
	}
	return specs
}

func TestFindCycle(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		refs  map[string][]string
		want  []string
	}{
		{
			name: "empty",
		},
		{
			name:  "imaging DAG",
			names: []string{"Project", "Dataset", "Image", "Pixels", "Annotation", "Plate"},
			refs: map[string][]string{
				"Project": {"Dataset"},
				"Dataset": {"Image"},
				"Image":   {"Pixels", "Annotation"},
				"Plate":   {"Image", "Annotation"},
			},
		},
		{
			name:  "shared sub-spec is not a cycle",
			names: []string{"Image", "Plate", "Annotation"},
			refs:  map[string][]string{"Image": {"Annotation"}, "Plate": {"Image", "Annotation"}},
		},
		{
			name:  "self reference",
			names: []string{"Image"},
			refs:  map[string][]string{"Image": {"Image"}},
			want:  []string{"Image", "Image"},
		},
		{
			name:  "two specs",
			names: []string{"Dataset", "Image"},
			refs:  map[string][]string{"Dataset": {"Image"}, "Image": {"Dataset"}},
			want:  []string{"Dataset", "Image", "Dataset"},
		},
		{
			name:  "loop below an acyclic prefix",
			names: []string{"Project", "A", "B", "C"},
			refs:  map[string][]string{"Project": {"A"}, "A": {"B"}, "B": {"C"}, "C": {"A"}},
			want:  []string{"A", "B", "C", "A"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findCycle(arena(tt.names, tt.refs)))
		})
	}
}

func TestFindCycle_FirstInDeclarationOrder(t *testing.T) {
	specs := arena([]string{"X", "Y", "A", "B"}, map[string][]string{
		"X": {"Y"}, "Y": {"X"},
		"A": {"B"}, "B": {"A"},
	})
	for i := 0; i < 5; i++ {
		assert.Equal(t, []string{"X", "Y", "X"}, findCycle(specs))
	}
}

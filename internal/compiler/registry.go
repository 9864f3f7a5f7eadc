package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/cascade/internal/ir"
)

// Registry holds every compiled spec together with the catalog they walk.
// It is built in two phases: specs are first indexed by name, then every
// entry whose last segment names another spec is resolved to that spec's
// index. A built Registry is immutable and safe for concurrent use.
type Registry struct {
	model *ir.Model
	specs []*ir.Spec
	index map[string]int
}

// NewRegistry indexes and resolves specs against model. The input specs are
// copied, not modified.
func NewRegistry(model *ir.Model, specs []*ir.Spec) (*Registry, error) {
	r := &Registry{
		model: model,
		index: make(map[string]int, len(specs)),
	}

	for _, s := range specs {
		if _, dup := r.index[s.Name]; dup {
			return nil, &CompileError{Field: "spec", Message: fmt.Sprintf("duplicate spec %s", s.Name)}
		}
		clone := &ir.Spec{Name: s.Name, Variant: s.Variant, Entries: make([]ir.Entry, len(s.Entries))}
		copy(clone.Entries, s.Entries)
		r.index[s.Name] = len(r.specs)
		r.specs = append(r.specs, clone)
	}

	for _, s := range r.specs {
		if err := r.resolve(s); err != nil {
			return nil, err
		}
	}

	if cycle := findCycle(r.specs); cycle != nil {
		return nil, &CompileError{
			Field:   "spec",
			Message: "sub-spec cycle: " + strings.Join(cycle, " -> "),
		}
	}

	return r, nil
}

func (r *Registry) resolve(s *ir.Spec) error {
	if _, ok := r.model.Type(s.Name); !ok {
		return specError(s, "root type %s is not in the catalog", s.Name)
	}

	for i := range s.Entries {
		e := &s.Entries[i]
		if err := r.checkPath(s, e); err != nil {
			return err
		}

		// An entry naming its own spec is the root row, never a sub-spec.
		if name := e.Name(); name != s.Name {
			if idx, ok := r.index[name]; ok {
				e.SubSpec = idx
			}
		}

		if err := r.checkOp(s, e); err != nil {
			return err
		}
	}

	if s.Variant == ir.VariantAnnotation {
		return r.checkAnnotationEntries(s)
	}
	return nil
}

func (r *Registry) checkPath(s *ir.Spec, e *ir.Entry) error {
	for i, seg := range e.Segments {
		if _, ok := r.model.Type(seg); !ok {
			return specError(s, "entry %s: unknown type %s", e.Path, seg)
		}
		if i == 0 {
			continue
		}
		if _, err := r.model.Join(e.Segments[i-1], seg); err != nil {
			return specError(s, "entry %s: %v", e.Path, err)
		}
	}
	return nil
}

// CheckOverride reports whether a request may run entry e of spec s with op
// instead of its declared operation. The rules are those applied to
// declared operations at load time.
func (r *Registry) CheckOverride(s *ir.Spec, e ir.Entry, op ir.Op) error {
	e.Op = op
	return r.checkOp(s, &e)
}

func (r *Registry) checkOp(s *ir.Spec, e *ir.Entry) error {
	switch e.Op {
	case ir.OpNull:
		if e.HasSubSpec() {
			return specError(s, "entry %s: NULL cannot descend into a sub-spec", e.Path)
		}
		typeName, column, ok := e.QualifierParts()
		if !ok {
			return specError(s, "entry %s: NULL needs a sub-path of the form /Type/column", e.Path)
		}
		t, ok := r.model.Type(typeName)
		if !ok {
			return specError(s, "entry %s: unknown type %s in sub-path", e.Path, typeName)
		}
		target, ok := t.Refs[column]
		if !ok {
			return specError(s, "entry %s: %s.%s is not a declared reference", e.Path, typeName, column)
		}
		if !r.model.IsA(e.Name(), target) {
			return specError(s, "entry %s: %s.%s references %s, not %s", e.Path, typeName, column, target, e.Name())
		}
	case ir.OpReap:
		t, _ := r.model.Type(e.Name())
		if !t.Owned {
			return specError(s, "entry %s: REAP needs an owned type", e.Path)
		}
	}
	return nil
}

// checkAnnotationEntries requires the entries of an annotation spec to be
// exactly one "/Root/Subtype" per catalog subtype of the root type.
func (r *Registry) checkAnnotationEntries(s *ir.Spec) error {
	want := make(map[string]bool)
	for _, sub := range r.model.Subtypes(s.Name) {
		want["/"+s.Name+"/"+sub] = true
	}
	if len(want) == 0 {
		return specError(s, "annotation spec root %s has no subtypes", s.Name)
	}

	got := make(map[string]bool)
	for _, e := range s.Entries {
		if !want[e.Path] {
			return specError(s, "entry %s is not a subtype of %s", e.Path, s.Name)
		}
		if got[e.Path] {
			return specError(s, "duplicate entry %s", e.Path)
		}
		got[e.Path] = true
	}
	if len(got) != len(want) {
		var missing []string
		for p := range want {
			if !got[p] {
				missing = append(missing, p)
			}
		}
		sort.Strings(missing)
		return specError(s, "%d entries for %d subtypes, missing %s",
			len(got), len(want), strings.Join(missing, ", "))
	}
	return nil
}

func specError(s *ir.Spec, format string, args ...any) *CompileError {
	return &CompileError{
		Field:   "spec",
		Message: fmt.Sprintf("%s: ", s.Name) + fmt.Sprintf(format, args...),
	}
}

// Model returns the catalog the specs were resolved against.
func (r *Registry) Model() *ir.Model {
	return r.model
}

// Spec returns the spec for a root type.
func (r *Registry) Spec(name string) (*ir.Spec, bool) {
	idx, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.specs[idx], true
}

// At returns the spec at a resolved sub-spec index.
func (r *Registry) At(idx int) *ir.Spec {
	return r.specs[idx]
}

// Len returns the number of specs.
func (r *Registry) Len() int {
	return len(r.specs)
}

// Names returns spec names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.specs))
	for i, s := range r.specs {
		names[i] = s.Name
	}
	return names
}

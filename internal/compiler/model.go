package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/cascade/internal/ir"
)

// CompileModel parses the catalog block into an ir.Model.
//
// The CUE value is the catalog struct itself:
//
//	catalog: {
//		discriminator: "discriminator"
//		types: {
//			Image: {table: "image"}
//			Pixels: {table: "pixels", parents: {Image: "image"}}
//			TagAnnotation: {extends: "Annotation", discriminator: "tag"}
//		}
//	}
//
// Types are registered in declaration order. Subtypes inherit the table of
// the type they extend.
func CompileModel(v cue.Value) (*ir.Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	model := ir.NewModel()
	if col, ok, err := lookupString(v, "discriminator"); err != nil {
		return nil, err
	} else if ok {
		model.DiscriminatorColumn = col
	}

	typesVal := v.LookupPath(cue.ParsePath("types"))
	if !typesVal.Exists() {
		return nil, &CompileError{Field: "types", Message: "catalog declares no types", Pos: v.Pos()}
	}
	iter, err := typesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	positions := make(map[string]cue.Value)
	for iter.Next() {
		t, err := compileType(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		model.Add(t)
		positions[t.Name] = iter.Value()
	}

	if err := resolveModel(model, positions); err != nil {
		return nil, err
	}
	return model, nil
}

func compileType(name string, v cue.Value) (*ir.TypeDef, error) {
	t := &ir.TypeDef{Name: name, Owned: true}
	var err error

	if t.Table, _, err = lookupString(v, "table"); err != nil {
		return nil, err
	}
	if t.Extends, _, err = lookupString(v, "extends"); err != nil {
		return nil, err
	}
	if t.Discriminator, _, err = lookupString(v, "discriminator"); err != nil {
		return nil, err
	}
	if t.Namespace, _, err = lookupString(v, "namespace"); err != nil {
		return nil, err
	}
	if t.Files, _, err = lookupString(v, "files"); err != nil {
		return nil, err
	}
	if ownedVal := v.LookupPath(cue.ParsePath("owned")); ownedVal.Exists() {
		if t.Owned, err = ownedVal.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	if t.Parents, err = lookupStringMap(v, "parents"); err != nil {
		return nil, err
	}
	if t.Children, err = lookupStringMap(v, "children"); err != nil {
		return nil, err
	}
	if t.Refs, err = lookupStringMap(v, "refs"); err != nil {
		return nil, err
	}

	if t.Table == "" && t.Extends == "" {
		return nil, &CompileError{
			Field:   "table",
			Message: fmt.Sprintf("type %s needs a table or extends", name),
			Pos:     v.Pos(),
		}
	}
	if t.Extends != "" && t.Discriminator == "" {
		return nil, &CompileError{
			Field:   "discriminator",
			Message: fmt.Sprintf("subtype %s needs a discriminator value", name),
			Pos:     v.Pos(),
		}
	}
	return t, nil
}

// resolveModel checks cross references between types and fills inherited
// tables, walking types in declaration order.
func resolveModel(m *ir.Model, positions map[string]cue.Value) error {
	for _, name := range m.Order {
		t := m.Types[name]
		pos := positions[name].Pos()

		if t.Extends != "" {
			chain := m.Chain(name)
			last := m.Types[chain[len(chain)-1]]
			if last == nil {
				return &CompileError{
					Field:   "extends",
					Message: fmt.Sprintf("type %s extends unknown type %q", name, chain[len(chain)-1]),
					Pos:     pos,
				}
			}
			if last.Extends != "" {
				return &CompileError{
					Field:   "extends",
					Message: fmt.Sprintf("type %s has a cyclic extends chain", name),
					Pos:     pos,
				}
			}
			if t.Table == "" {
				t.Table = last.Table
			}
		}

		for _, ref := range []struct {
			field string
			types map[string]string
			keyed bool
		}{
			{"parents", t.Parents, true},
			{"children", t.Children, true},
			{"refs", t.Refs, false},
		} {
			for k, v := range ref.types {
				target := v
				if ref.keyed {
					target = k
				}
				if _, ok := m.Types[target]; !ok {
					return &CompileError{
						Field:   ref.field,
						Message: fmt.Sprintf("type %s references unknown type %q", name, target),
						Pos:     pos,
					}
				}
			}
		}
	}
	return nil
}

func lookupString(v cue.Value, field string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

func lookupStringMap(v cue.Value, field string) (map[string]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := make(map[string]string)
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out[iter.Label()] = s
	}
	return out, nil
}

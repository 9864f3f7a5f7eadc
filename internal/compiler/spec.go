package compiler

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/cascade/internal/ir"
)

// CompileSpec parses a CUE value into a Spec. The spec name is taken from
// the struct label and must be the first segment of every entry path.
//
//	spec: Image: {
//		entries: [
//			"/Image/Pixels",
//			"/Image/ImageAnnotationLink/Annotation;SOFT",
//			"/Image",
//		]
//	}
func CompileSpec(v cue.Value) (*ir.Spec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.Spec{Variant: ir.VariantBase}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}
	if spec.Name == "" {
		return nil, &CompileError{Field: "spec", Message: "spec has no name", Pos: v.Pos()}
	}

	variant, ok, err := lookupString(v, "variant")
	if err != nil {
		return nil, err
	}
	if ok {
		switch variant {
		case ir.VariantBase, ir.VariantAnnotation:
			spec.Variant = variant
		default:
			return nil, &CompileError{
				Field:   "variant",
				Message: fmt.Sprintf("spec %s: unknown variant %q", spec.Name, variant),
				Pos:     v.Pos(),
			}
		}
	}

	entriesVal := v.LookupPath(cue.ParsePath("entries"))
	if !entriesVal.Exists() {
		return nil, &CompileError{
			Field:   "entries",
			Message: fmt.Sprintf("spec %s: entries are required", spec.Name),
			Pos:     v.Pos(),
		}
	}
	iter, err := entriesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		decl, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		entry, err := ParseEntry(decl)
		if err != nil {
			var ce *CompileError
			if errors.As(err, &ce) {
				ce.Pos = iter.Value().Pos()
			}
			return nil, err
		}
		if entry.Segments[0] != spec.Name {
			return nil, &CompileError{
				Field:   "entries",
				Message: fmt.Sprintf("spec %s: entry %s does not start at /%s", spec.Name, entry.Path, spec.Name),
				Pos:     iter.Value().Pos(),
			}
		}
		spec.Entries = append(spec.Entries, entry)
	}
	if len(spec.Entries) == 0 {
		return nil, &CompileError{
			Field:   "entries",
			Message: fmt.Sprintf("spec %s: at least one entry is required", spec.Name),
			Pos:     v.Pos(),
		}
	}

	return spec, nil
}

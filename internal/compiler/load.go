package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/cascade/internal/ir"
)

// Load compiles the catalog and every spec of a built CUE value and
// returns the resolved registry. The value carries two top-level blocks,
// catalog and spec.
func Load(v cue.Value) (*Registry, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	catalogVal := v.LookupPath(cue.ParsePath("catalog"))
	if !catalogVal.Exists() {
		return nil, &CompileError{Field: "catalog", Message: "catalog is required", Pos: v.Pos()}
	}
	model, err := CompileModel(catalogVal)
	if err != nil {
		return nil, err
	}

	specsVal := v.LookupPath(cue.ParsePath("spec"))
	if !specsVal.Exists() {
		return nil, &CompileError{Field: "spec", Message: "no specs declared", Pos: v.Pos()}
	}
	iter, err := specsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var specs []*ir.Spec
	for iter.Next() {
		spec, err := CompileSpec(iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	return NewRegistry(model, specs)
}

// LoadBytes compiles a single CUE source, e.g. the embedded defaults.
func LoadBytes(src []byte, filename string) (*Registry, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return Load(v)
}

// LoadDir loads every CUE file of the package in dir.
func LoadDir(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("specs directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	ctx := cuecontext.New()
	value := ctx.BuildInstance(inst)
	return Load(value)
}

// Package specs embeds the default catalog and delete specs of the imaging
// model.
package specs

import (
	_ "embed"

	"github.com/roach88/cascade/internal/compiler"
)

// Filename names the embedded source in compile errors.
const Filename = "specs/default.cue"

//go:embed default.cue
var Default []byte

// Load compiles the embedded defaults into a registry.
func Load() (*compiler.Registry, error) {
	return compiler.LoadBytes(Default, Filename)
}

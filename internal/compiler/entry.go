package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/cascade/internal/ir"
)

// ParseEntry parses one entry declaration of the form
//
//	path[;OP][;sub-path]
//
// e.g. "/Image/Pixels;SOFT" or "/Pixels;NULL;/Pixels/related_to".
// The returned entry has no resolved sub-spec.
func ParseEntry(decl string) (ir.Entry, error) {
	fields := strings.Split(decl, ";")
	if len(fields) > 3 {
		return ir.Entry{}, entryError(decl, "too many fields")
	}

	path := strings.TrimSpace(fields[0])
	segments, err := splitPath(path)
	if err != nil {
		return ir.Entry{}, entryError(decl, err.Error())
	}

	entry := ir.Entry{
		Path:     path,
		Segments: segments,
		Op:       ir.OpHard,
		SubSpec:  ir.NoSubSpec,
	}

	if len(fields) > 1 {
		op, err := ir.ParseOp(fields[1])
		if err != nil {
			return ir.Entry{}, entryError(decl, err.Error())
		}
		entry.Op = op
	}

	if len(fields) > 2 {
		qualifier := strings.TrimSpace(fields[2])
		if _, err := splitPath(qualifier); err != nil {
			return ir.Entry{}, entryError(decl, "sub-path: "+err.Error())
		}
		entry.Qualifier = qualifier
	}

	return entry, nil
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("path %q must start with /", path)
	}
	segments := strings.Split(path[1:], "/")
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("path %q has an empty segment", path)
		}
	}
	return segments, nil
}

func entryError(decl, msg string) *CompileError {
	return &CompileError{
		Field:   "entry",
		Message: fmt.Sprintf("%q: %s", decl, msg),
	}
}

package ir

import (
	"fmt"
	"strings"
)

// Op is the operation kind declared on a spec entry.
type Op int

const (
	// OpHard deletes the row; a constraint failure is fatal unless a SOFT
	// step on the stack absorbs it. This is the default.
	OpHard Op = iota

	// OpSoft makes the deletion optional. A failure here or below rolls
	// back to this step's savepoint and skips the rest of its subtree.
	OpSoft

	// OpReap narrows collection to rows not owned by the acting user.
	OpReap

	// OpOrphan narrows collection to rows nothing else references.
	OpOrphan

	// OpNull nulls every reference to the row in a declared column before
	// the row itself is deleted.
	OpNull
)

var opNames = [...]string{
	OpHard:   "HARD",
	OpSoft:   "SOFT",
	OpReap:   "REAP",
	OpOrphan: "ORPHAN",
	OpNull:   "NULL",
}

// String returns the declared name of the operation.
func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return fmt.Sprintf("Op(%d)", int(o))
	}
	return opNames[o]
}

// ParseOp parses an operation name. Matching is case-insensitive and an
// empty name yields OpHard.
func ParseOp(name string) (Op, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return OpHard, nil
	}
	for i, n := range opNames {
		if strings.EqualFold(n, name) {
			return Op(i), nil
		}
	}
	return OpHard, fmt.Errorf("unknown operation %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (o Op) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Op) UnmarshalText(text []byte) error {
	op, err := ParseOp(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// Collects reports whether rows for this op are collected with the plain
// path predicate, i.e. the op does not narrow the collection query.
func (o Op) Collects() bool {
	return o != OpReap && o != OpOrphan
}

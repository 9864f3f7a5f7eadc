package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Constraint kinds surfaced by executors.
const (
	ConstraintForeignKey = "foreign_key"
	ConstraintUnique     = "unique"
)

// ConstraintError is a foreign key or unique violation raised by the
// database. Executors return it so the engine can tell an absorbable
// failure from any other error.
type ConstraintError struct {
	Kind       string
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s violation: %s", e.Kind, e.Constraint)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// AsConstraintError returns the ConstraintError in err's chain, if any.
func AsConstraintError(err error) (*ConstraintError, bool) {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsConstraintViolation reports whether err is a ConstraintError.
func IsConstraintViolation(err error) bool {
	_, ok := AsConstraintError(err)
	return ok
}

// classify wraps SQLite constraint errors into ConstraintError.
func classify(err error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) || se.Code != sqlite3.ErrConstraint {
		return err
	}
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintForeignKey:
		return &ConstraintError{Kind: ConstraintForeignKey, Constraint: se.Error(), Err: err}
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return &ConstraintError{Kind: ConstraintUnique, Constraint: se.Error(), Err: err}
	}
	return err
}

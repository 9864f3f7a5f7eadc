package engine

import (
	"errors"
	"fmt"
)

// ConstraintError is a constraint violation no SOFT step absorbed. It
// aborts the whole request.
type ConstraintError struct {
	// Path is the logical path of the failing step.
	Path  string
	Table string
	ID    int64

	// Kind is the store's constraint kind, e.g. "foreign_key".
	Kind       string
	Constraint string

	Err error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s: %s (%s id=%d)", e.Constraint, e.Path, e.Table, e.ID)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a misuse of the step protocol or an inconsistent
// savepoint stack. It is never expected in a correct run.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "savepoint protocol: " + e.Message
}

func protocolErrorf(format string, args ...any) *ProtocolError {
	return &ProtocolError{Message: fmt.Sprintf(format, args...)}
}

// IsConstraintError returns true if err is an unabsorbed constraint
// violation. Uses errors.As to handle wrapped errors.
func IsConstraintError(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}

// IsProtocolError returns true if err is a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/cascade/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Seq, event.Type, event.IDs)
	}
	return buf.String()
}

// assertEventOrder checks that event types appear in the specified order.
// Events don't need to be consecutive (intervening events are allowed).
func assertEventOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(assertion.Events) && event.Type == assertion.Events[next] {
			next++
		}
	}
	if next == len(assertion.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventOrder,
		Expected: fmt.Sprintf("events in order: %v", assertion.Events),
		Actual:   fmt.Sprintf("no %s after %v", assertion.Events[next], assertion.Events[:next]),
		Trace:    trace,
	}
}

// assertEventCount checks that an event type is published exactly Count times.
func assertEventCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == assertion.Event {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d events of %s", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertWarningContains checks that some warning of the report contains Text.
func assertWarningContains(result *Result, assertion Assertion) error {
	var warnings []string
	if result.Report != nil {
		warnings = result.Report.Warnings
	}
	for _, w := range warnings {
		if strings.Contains(w, assertion.Text) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertWarningContains,
		Expected: fmt.Sprintf("a warning containing %q", assertion.Text),
		Actual:   fmt.Sprintf("warnings %q", warnings),
		Trace:    result.Trace,
	}
}

// assertRemaining checks the exact ids left in a table. The table name is
// validated by the store before it reaches SQL.
func assertRemaining(ctx context.Context, st *store.Store, assertion Assertion) error {
	ids, err := st.IDs(ctx, assertion.Table)
	if err != nil {
		return fmt.Errorf("remaining: %w", err)
	}
	expected := assertion.IDs
	if expected == nil {
		expected = []int64{}
	}
	if len(ids) != len(expected) {
		return remainingError(assertion.Table, expected, ids)
	}
	for i := range ids {
		if ids[i] != expected[i] {
			return remainingError(assertion.Table, expected, ids)
		}
	}
	return nil
}

func remainingError(table string, expected, actual []int64) error {
	return &AssertionError{
		Type:     AssertRemaining,
		Expected: fmt.Sprintf("%s ids %v", table, expected),
		Actual:   fmt.Sprintf("%s ids %v", table, actual),
	}
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for remaining assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEventOrder:
			err = assertEventOrder(result.Trace, assertion)
		case AssertEventCount:
			err = assertEventCount(result.Trace, assertion)
		case AssertWarningContains:
			err = assertWarningContains(result, assertion)
		case AssertRemaining:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: remaining requires database context", i)
			} else {
				err = assertRemaining(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

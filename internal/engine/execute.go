package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/querysql"
	"github.com/roach88/cascade/internal/store"
)

// State is one prepared delete request. Its steps must be executed in plan
// order, each exactly once. State is not safe for concurrent use.
type State struct {
	engine    *Engine
	tx        Tx
	req       Request
	requestID string
	logger    *slog.Logger

	tables    []*Table
	plan      []*Step
	ownership querysql.Ownership
	sink      EventFunc

	sp       *savepoints
	next     int
	warnings []string
	failed   error
}

// RequestID returns the id correlating this request's logs and events.
func (s *State) RequestID() string {
	return s.requestID
}

// StepCount returns the number of planned steps.
func (s *State) StepCount() int {
	return len(s.plan)
}

// Steps returns the plan. Callers must not modify it.
func (s *State) Steps() []*Step {
	return s.plan
}

// Tables returns the collected tables of the root spec.
func (s *State) Tables() []*Table {
	return s.tables
}

// Done reports whether every step has been executed.
func (s *State) Done() bool {
	return s.failed == nil && s.next == len(s.plan)
}

// Execute runs step i and returns its warning, empty when the step
// succeeded or was skipped. An error is fatal for the request: the caller
// must roll back the transaction.
func (s *State) Execute(ctx context.Context, i int) (string, error) {
	if s.failed != nil {
		return "", s.failed
	}
	if i != s.next {
		return "", protocolErrorf("step %d executed out of order, next step is %d of %d", i, s.next, len(s.plan))
	}
	step := s.plan[i]
	s.next++

	if step.rollbackOnly {
		s.logger.Debug("step skipped", "step", i, "path", step.Path)
		s.engine.metrics.step(step.Kind, "skipped")
		return "", nil
	}

	var warning string
	var err error
	switch step.Kind {
	case StepContainer:
		if err = s.openStack(ctx, step); err == nil {
			err = s.sp.open(ctx, step)
		}
	case StepFinalize:
		err = s.sp.release(ctx, step.Container)
	case StepDelete:
		warning, err = s.delete(ctx, step)
	}
	if err != nil {
		s.fail(err)
		return "", err
	}

	if warning != "" {
		s.warnings = append(s.warnings, warning)
		s.logger.Warn("step warning", "step", i, "warning", warning)
		s.engine.metrics.step(step.Kind, "warning")
	} else {
		s.logger.Debug("step done", "step", i, "kind", step.Kind.String(), "path", step.Path, "row", step.ID)
		s.engine.metrics.step(step.Kind, "ok")
	}
	return warning, nil
}

// Run executes every remaining step and returns the report.
func (s *State) Run(ctx context.Context) (*ir.Report, error) {
	for s.next < len(s.plan) {
		if _, err := s.Execute(ctx, s.next); err != nil {
			return nil, err
		}
	}
	return s.Report()
}

// openStack lazily opens ancestors that have no savepoint yet.
func (s *State) openStack(ctx context.Context, step *Step) error {
	for _, a := range step.Stack {
		switch a.state {
		case SavepointOpen:
		case SavepointUnopened:
			if err := s.sp.open(ctx, a); err != nil {
				return err
			}
		default:
			return protocolErrorf("step %d runs under step %d whose savepoint is %s", step.Index, a.Index, a.state)
		}
	}
	return nil
}

func (s *State) delete(ctx context.Context, step *Step) (string, error) {
	if err := s.openStack(ctx, step); err != nil {
		return "", err
	}

	var n int64
	err := s.sp.guard(ctx, step, func() error {
		var err error
		n, err = s.deleteRow(ctx, step)
		return err
	})
	if err != nil {
		ce, ok := store.AsConstraintError(err)
		if !ok {
			return "", err
		}
		return s.absorb(ctx, step, ce)
	}

	if n == 0 {
		if s.sp.deleted(step.Table, step.ID) {
			s.logger.Debug("row already deleted by this request", "path", step.Path, "table", step.Table, "row", step.ID)
			return "", nil
		}
		s.engine.metrics.missingRow(step.Table)
		return fmt.Sprintf("missing row: %s (%s id=%d)", step.Path, step.Table, step.ID), nil
	}
	return "", nil
}

// deleteRow runs the statements of one delete step inside its savepoint.
func (s *State) deleteRow(ctx context.Context, step *Step) (int64, error) {
	b := s.engine.builder

	for _, ref := range step.Links {
		own := s.ownershipFor(ref.Type)
		q := b.LinkIDs(ref, step.ID, own)
		rows, err := s.tx.QueryIDs(ctx, q.SQL, q.Args...)
		if err != nil {
			return 0, err
		}
		for _, row := range rows {
			d := b.Delete(ref.Table, row[0], own)
			n, err := s.tx.Exec(ctx, d.SQL, d.Args...)
			if err != nil {
				return 0, err
			}
			if n > 0 {
				s.sp.record(ref.Type, ref.Table, row[0])
			}
		}
	}

	if step.Null != nil {
		q := b.Nullify(step.Null.Table, step.Null.Column, step.ID)
		if _, err := s.tx.Exec(ctx, q.SQL, q.Args...); err != nil {
			return 0, err
		}
	}

	q := b.Delete(step.Table, step.ID, s.ownershipFor(step.Type))
	n, err := s.tx.Exec(ctx, q.SQL, q.Args...)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.sp.record(step.Type, step.Table, step.ID)
	}
	return n, nil
}

// absorb handles a constraint failure of step, whose own savepoint is
// already rolled back. Ancestors are rolled back innermost first until a
// SOFT one absorbs the failure; every later step under it is disabled.
func (s *State) absorb(ctx context.Context, step *Step, ce *store.ConstraintError) (string, error) {
	absorber := step
	if step.Op != ir.OpSoft {
		absorber = nil
		for k := len(step.Stack) - 1; k >= 0; k-- {
			a := step.Stack[k]
			if err := s.sp.rollback(ctx, a); err != nil {
				return "", err
			}
			if a.Op == ir.OpSoft {
				absorber = a
				break
			}
		}
	}

	if absorber == nil {
		s.engine.metrics.constraintFatal()
		return "", &ConstraintError{
			Path:       step.Path,
			Table:      step.Table,
			ID:         step.ID,
			Kind:       ce.Kind,
			Constraint: ce.Constraint,
			Err:        ce,
		}
	}

	disabled := 0
	for _, later := range s.plan[step.Index+1:] {
		if later == absorber || later.within(absorber) {
			later.rollbackOnly = true
			disabled++
		}
	}
	s.engine.metrics.constraintAbsorbed(step.Table)
	s.logger.Debug("constraint absorbed", "path", step.Path, "by", absorber.Path, "disabled", disabled)
	return fmt.Sprintf("%s: %s (%s id=%d)", ce.Constraint, step.Path, step.Table, step.ID), nil
}

func (s *State) ownershipFor(typeName string) querysql.Ownership {
	if t, ok := s.engine.registry.Model().Type(typeName); ok && !t.Owned {
		return querysql.Ownership{}
	}
	return s.ownership
}

func (s *State) fail(err error) {
	s.failed = err
	s.sp.reset()
	s.logger.Error("delete failed", "error", err)
}

// flush publishes rows that reached the base frame, one event per type in
// first-deleted order.
func (s *State) flush(rows []ledgerRow) {
	var order []string
	byType := make(map[string][]int64)
	perTable := make(map[string]int)
	for _, r := range rows {
		if _, ok := byType[r.Type]; !ok {
			order = append(order, r.Type)
		}
		byType[r.Type] = append(byType[r.Type], r.ID)
		perTable[r.Table]++
	}
	for table, n := range perTable {
		s.engine.metrics.rowsDeleted(table, n)
	}
	if s.sink == nil {
		return
	}
	for _, typ := range order {
		s.sink(ir.Event{RequestID: s.requestID, Op: ir.EventDelete, Type: typ, IDs: byType[typ]})
	}
}

// Summary compares found rows with rows deleted so far.
func (s *State) Summary() ir.Summary {
	found := 0
	for _, step := range s.plan {
		if step.Kind == StepDelete {
			found++
		}
	}
	return ir.Summary{
		Steps:    len(s.plan),
		Found:    found,
		Deleted:  len(s.sp.base),
		Warnings: len(s.warnings),
	}
}

// Warnings returns the warnings collected so far.
func (s *State) Warnings() []string {
	out := make([]string, len(s.warnings))
	copy(out, s.warnings)
	return out
}

// Report returns the outcome once every step has run.
func (s *State) Report() (*ir.Report, error) {
	if s.failed != nil {
		return nil, s.failed
	}
	if s.next != len(s.plan) {
		return nil, protocolErrorf("report requested after %d of %d steps", s.next, len(s.plan))
	}
	if d := s.sp.depth(); d != 0 {
		return nil, protocolErrorf("%d savepoints still open after the last step", d)
	}

	deleted := make(map[string][]int64)
	for _, r := range s.sp.base {
		deleted[r.Table] = append(deleted[r.Table], r.ID)
	}
	return &ir.Report{
		RequestID: s.requestID,
		Type:      s.req.Type,
		ID:        s.req.ID,
		Summary:   s.Summary(),
		Deleted:   deleted,
		Warnings:  s.Warnings(),
	}, nil
}

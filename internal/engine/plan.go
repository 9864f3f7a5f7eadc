package engine

import (
	"fmt"

	"github.com/roach88/cascade/internal/ir"
)

// StepKind distinguishes the units of a plan.
type StepKind int

const (
	// StepDelete deletes one row, after nulling references to it for NULL
	// entries and deleting its links when it is the root annotation.
	StepDelete StepKind = iota

	// StepContainer opens the savepoint enclosing one column set of an
	// entry that descends into a sub-spec.
	StepContainer

	// StepFinalize releases its container's savepoint once every
	// descendant has run.
	StepFinalize
)

var stepKindNames = [...]string{
	StepDelete:    "delete",
	StepContainer: "container",
	StepFinalize:  "finalize",
}

func (k StepKind) String() string {
	if k < 0 || int(k) >= len(stepKindNames) {
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
	return stepKindNames[k]
}

// NullTarget is the column a NULL step clears before its delete.
type NullTarget struct {
	Table  string
	Column string
}

// Step is one planned unit of execution. Steps are created by the planner
// and owned by the State executing them.
type Step struct {
	Index int
	Kind  StepKind
	Path  string
	Type  string
	Table string
	Op    ir.Op

	// ID and Tuple identify the row of a delete step.
	ID    int64
	Tuple ir.IDTuple

	// Set is the column set a container step encloses.
	Set ir.ColumnSet

	Null  *NullTarget
	Links []ir.Reference

	// Stack lists the enclosing container steps, outermost first.
	Stack []*Step

	// Container is the step a finalize step closes.
	Container *Step

	savepoint    string
	state        SavepointState
	rollbackOnly bool
}

// State returns the savepoint state of the step.
func (s *Step) State() SavepointState {
	return s.state
}

// RollbackOnly reports whether the step was disabled by an absorbed
// failure.
func (s *Step) RollbackOnly() bool {
	return s.rollbackOnly
}

func (s *Step) within(ancestor *Step) bool {
	for _, a := range s.Stack {
		if a == ancestor {
			return true
		}
	}
	return false
}

func (s *Step) String() string {
	switch s.Kind {
	case StepDelete:
		return fmt.Sprintf("#%d delete %s %s id=%d [%s]", s.Index, s.Path, s.Table, s.ID, s.Op)
	case StepContainer:
		return fmt.Sprintf("#%d container %s parent=%v rows=%d [%s]", s.Index, s.Path, s.Set.Parent, len(s.Set.Rows), s.Op)
	default:
		return fmt.Sprintf("#%d finalize %s -> #%d", s.Index, s.Path, s.Container.Index)
	}
}

type planner struct {
	model *ir.Model
	steps []*Step
}

// buildPlan flattens collected tables into the execution order. Each
// ancestor stack is a fresh slice owned by the steps that share it.
func buildPlan(model *ir.Model, tables []*Table) []*Step {
	p := &planner{model: model}
	p.walk(tables, nil)
	return p.steps
}

func (p *planner) add(s *Step) {
	s.Index = len(p.steps)
	p.steps = append(p.steps, s)
}

func (p *planner) walk(tables []*Table, stack []*Step) {
	for _, t := range tables {
		typeName := t.Entry.Name()
		table := p.model.Types[typeName].Table
		seen := make(map[int64]bool)

		if t.Entry.HasSubSpec() {
			for _, set := range t.Sets {
				var rows []ir.IDTuple
				for _, row := range set.Rows {
					if !seen[row.ID] {
						seen[row.ID] = true
						rows = append(rows, row)
					}
				}
				if len(rows) == 0 {
					continue
				}

				c := &Step{Kind: StepContainer, Path: t.Path, Type: typeName, Table: table, Op: t.Op, Set: set, Stack: stack}
				p.add(c)
				inner := make([]*Step, len(stack)+1)
				copy(inner, stack)
				inner[len(stack)] = c
				for _, row := range rows {
					p.walk(t.Sub[row.ID], inner)
				}
				p.add(&Step{Kind: StepFinalize, Path: t.Path, Type: typeName, Table: table, Op: t.Op, Stack: inner, Container: c})
			}
			continue
		}

		null := p.nullTarget(t)
		var links []ir.Reference
		if t.Unlink {
			links = p.model.ChildLinks(typeName)
		}
		for _, row := range t.Rows {
			if seen[row.ID] {
				continue
			}
			seen[row.ID] = true
			p.add(&Step{
				Kind:  StepDelete,
				Path:  t.Path,
				Type:  typeName,
				Table: table,
				Op:    t.Op,
				ID:    row.ID,
				Tuple: row,
				Null:  null,
				Links: links,
				Stack: stack,
			})
		}
	}
}

func (p *planner) nullTarget(t *Table) *NullTarget {
	if t.Op != ir.OpNull {
		return nil
	}
	typeName, column, ok := t.Entry.QualifierParts()
	if !ok {
		return nil
	}
	return &NullTarget{Table: p.model.Types[typeName].Table, Column: column}
}

package engine

import (
	"context"
	"errors"
	"fmt"
)

// SavepointState is the lifecycle of a step's savepoint.
type SavepointState int

const (
	SavepointUnopened SavepointState = iota
	SavepointOpen
	SavepointReleased
	SavepointRolledBack
)

var savepointStateNames = [...]string{
	SavepointUnopened:   "unopened",
	SavepointOpen:       "open",
	SavepointReleased:   "released",
	SavepointRolledBack: "rolled back",
}

func (s SavepointState) String() string {
	if s < 0 || int(s) >= len(savepointStateNames) {
		return fmt.Sprintf("SavepointState(%d)", int(s))
	}
	return savepointStateNames[s]
}

// ledgerRow is one deleted row.
type ledgerRow struct {
	Type  string
	Table string
	ID    int64
}

// frame holds the rows deleted under one open savepoint.
type frame struct {
	step *Step
	name string
	rows []ledgerRow
}

// savepoints pairs the SQL savepoint stack with the deleted-id ledger.
// Every open savepoint has exactly one frame; release merges the frame into
// its parent, rollback discards it. Rows merged into the base frame are
// committed as far as the engine is concerned and are handed to onFlush.
type savepoints struct {
	tx      Tx
	seq     int
	frames  []*frame
	base    []ledgerRow
	onFlush func([]ledgerRow)
}

func newSavepoints(tx Tx, onFlush func([]ledgerRow)) *savepoints {
	return &savepoints{tx: tx, onFlush: onFlush}
}

func (g *savepoints) depth() int {
	return len(g.frames)
}

func (g *savepoints) open(ctx context.Context, step *Step) error {
	if step.state != SavepointUnopened {
		return protocolErrorf("step %d savepoint is already %s", step.Index, step.state)
	}
	g.seq++
	name := fmt.Sprintf("cascade_sp_%d", g.seq)
	if err := g.tx.Savepoint(ctx, name); err != nil {
		return err
	}
	step.savepoint = name
	step.state = SavepointOpen
	g.frames = append(g.frames, &frame{step: step, name: name})
	return nil
}

// top returns the innermost frame, which must belong to step.
func (g *savepoints) top(step *Step) (*frame, error) {
	if len(g.frames) == 0 {
		return nil, protocolErrorf("step %d: release or rollback at depth 0", step.Index)
	}
	f := g.frames[len(g.frames)-1]
	if f.step != step {
		return nil, protocolErrorf("step %d is not the innermost savepoint (step %d is)", step.Index, f.step.Index)
	}
	return f, nil
}

func (g *savepoints) release(ctx context.Context, step *Step) error {
	f, err := g.top(step)
	if err != nil {
		return err
	}
	if err := g.tx.ReleaseSavepoint(ctx, f.name); err != nil {
		return err
	}
	g.frames = g.frames[:len(g.frames)-1]
	step.state = SavepointReleased

	if len(g.frames) > 0 {
		parent := g.frames[len(g.frames)-1]
		parent.rows = append(parent.rows, f.rows...)
		return nil
	}
	g.base = append(g.base, f.rows...)
	if g.onFlush != nil && len(f.rows) > 0 {
		g.onFlush(f.rows)
	}
	return nil
}

// rollback undoes everything since step's savepoint and drops it.
func (g *savepoints) rollback(ctx context.Context, step *Step) error {
	f, err := g.top(step)
	if err != nil {
		return err
	}
	if err := g.tx.RollbackToSavepoint(ctx, f.name); err != nil {
		return err
	}
	if err := g.tx.ReleaseSavepoint(ctx, f.name); err != nil {
		return err
	}
	g.frames = g.frames[:len(g.frames)-1]
	step.state = SavepointRolledBack
	return nil
}

// guard runs fn inside a savepoint of its own: released when fn succeeds,
// rolled back when it fails. fn's error is returned as is.
func (g *savepoints) guard(ctx context.Context, step *Step, fn func() error) error {
	if err := g.open(ctx, step); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if rbErr := g.rollback(ctx, step); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return g.release(ctx, step)
}

func (g *savepoints) record(typ, table string, id int64) {
	row := ledgerRow{Type: typ, Table: table, ID: id}
	if len(g.frames) == 0 {
		g.base = append(g.base, row)
		return
	}
	f := g.frames[len(g.frames)-1]
	f.rows = append(f.rows, row)
}

// deleted reports whether this request already deleted the row in a frame
// that is still live.
func (g *savepoints) deleted(table string, id int64) bool {
	for _, r := range g.base {
		if r.Table == table && r.ID == id {
			return true
		}
	}
	for _, f := range g.frames {
		for _, r := range f.rows {
			if r.Table == table && r.ID == id {
				return true
			}
		}
	}
	return false
}

// reset forgets every frame after the transaction is abandoned.
func (g *savepoints) reset() {
	g.frames = nil
	g.base = nil
}

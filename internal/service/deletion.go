package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/querysql"
	"github.com/roach88/cascade/internal/store"
)

// Database opens the transaction one request runs on. *store.Store and
// *pgstore.Store implement it.
type Database interface {
	Begin(ctx context.Context) (store.Transaction, error)
}

// Cleaner removes binary files of deleted rows after commit. Failures are
// reported as warnings and never undo the delete.
type Cleaner interface {
	Clean(ctx context.Context, deleted map[string][]int64) error
}

// Service runs delete requests against one database.
type Service struct {
	db      Database
	engine  *engine.Engine
	builder *querysql.Builder
	sink    EventSink
	cleaner Cleaner
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEventSink publishes committed deletions to sink.
func WithEventSink(sink EventSink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

// WithCleaner removes binary files after commit.
func WithCleaner(c Cleaner) Option {
	return func(s *Service) {
		s.cleaner = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a Service.
func New(db Database, eng *engine.Engine, opts ...Option) *Service {
	s := &Service{
		db:      db,
		engine:  eng,
		builder: querysql.NewBuilder(eng.Registry().Model()),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Delete runs a whole request and returns its report. req.Principal is
// replaced by p.
func (s *Service) Delete(ctx context.Context, p ir.Principal, req engine.Request) (*ir.Report, error) {
	d := s.NewDeletion(p)
	n, err := d.Initialize(ctx, req.Type, req.ID, req.Options)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		if _, err := d.ExecuteStep(ctx, i); err != nil {
			return nil, err
		}
	}
	return d.Finish(ctx)
}

// Deletion is one request in progress. It is not safe for concurrent use.
type Deletion struct {
	svc       *Service
	principal ir.Principal
	tx        store.Transaction
	state     *engine.State
	events    eventBuffer
	closed    bool
}

// NewDeletion starts a request for p.
func (s *Service) NewDeletion(p ir.Principal) *Deletion {
	return &Deletion{svc: s, principal: p}
}

// Initialize checks the principal's permission on the root row, collects
// ids and builds the plan. It returns the number of steps to execute. A
// root row that does not exist yields an empty plan.
func (d *Deletion) Initialize(ctx context.Context, rootType string, rootID int64, opts ir.Options) (int, error) {
	if d.tx != nil || d.closed {
		return 0, fmt.Errorf("deletion already initialized")
	}
	if _, ok := d.svc.engine.Registry().Spec(rootType); !ok {
		return 0, fmt.Errorf("no delete spec for type %q", rootType)
	}

	tx, err := d.svc.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	d.tx = tx

	if err := d.authorize(ctx, rootType, rootID, opts.Force); err != nil {
		d.rollback(ctx)
		return 0, err
	}

	req := engine.Request{Type: rootType, ID: rootID, Principal: d.principal, Options: opts}
	state, err := d.svc.engine.Prepare(ctx, tx, req, d.events.add)
	if err != nil {
		d.rollback(ctx)
		return 0, err
	}
	d.state = state
	d.svc.logger.Info("delete planned",
		"request", state.RequestID(), "type", rootType, "id", rootID, "steps", state.StepCount())
	return state.StepCount(), nil
}

func (d *Deletion) authorize(ctx context.Context, rootType string, rootID int64, force bool) error {
	t, _ := d.svc.engine.Registry().Model().Type(rootType)
	if !t.Owned {
		return nil
	}
	q := d.svc.builder.Owner(t.Table, rootID)
	rows, err := d.tx.QueryIDs(ctx, q.SQL, q.Args...)
	if err != nil {
		return fmt.Errorf("owner of %s %d: %w", rootType, rootID, err)
	}
	if len(rows) == 0 {
		return nil
	}
	owner := rootOwner{OwnerID: rows[0][0], GroupID: rows[0][1]}
	if reason := checkPermission(d.principal, force, owner); reason != "" {
		return &PermissionError{Type: rootType, ID: rootID, UserID: d.principal.UserID, Reason: reason}
	}
	return nil
}

// ExecuteStep runs step i and returns its warning. Steps must run in order.
// An error rolls the request back.
func (d *Deletion) ExecuteStep(ctx context.Context, i int) (string, error) {
	if err := d.active(); err != nil {
		return "", err
	}
	warning, err := d.state.Execute(ctx, i)
	if err != nil {
		d.rollback(ctx)
		return "", err
	}
	return warning, nil
}

// Steps returns the plan built by Initialize.
func (d *Deletion) Steps() []*engine.Step {
	if d.state == nil {
		return nil
	}
	return d.state.Steps()
}

// RequestID returns the id of the request, empty before Initialize.
func (d *Deletion) RequestID() string {
	if d.state == nil {
		return ""
	}
	return d.state.RequestID()
}

// Summary compares the rows found with those deleted so far.
func (d *Deletion) Summary() ir.Summary {
	if d.state == nil {
		return ir.Summary{}
	}
	return d.state.Summary()
}

// Finish commits the request once every step ran, then publishes its
// events and removes binary files of deleted rows.
func (d *Deletion) Finish(ctx context.Context) (*ir.Report, error) {
	if err := d.active(); err != nil {
		return nil, err
	}
	report, err := d.state.Report()
	if err != nil {
		d.rollback(ctx)
		return nil, err
	}
	d.closed = true
	if err := d.tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	logger := d.svc.logger.With("request", report.RequestID)
	logger.Info("delete committed",
		"type", report.Type, "id", report.ID, "deleted", report.Summary.Deleted, "warnings", report.Summary.Warnings)

	if d.svc.sink != nil {
		for _, ev := range d.events.events {
			if err := d.svc.sink.Publish(ctx, ev); err != nil {
				logger.Warn("event not published", "type", ev.Type, "error", err)
			}
		}
	}
	if d.svc.cleaner != nil && len(report.Deleted) > 0 {
		if err := d.svc.cleaner.Clean(ctx, report.Deleted); err != nil {
			logger.Warn("binary cleanup failed", "error", err)
		}
	}
	return report, nil
}

// Abort rolls the request back. Aborting a finished or aborted request is
// a no-op.
func (d *Deletion) Abort(ctx context.Context) error {
	if d.tx == nil || d.closed {
		d.closed = true
		return nil
	}
	d.closed = true
	return d.tx.Rollback(ctx)
}

func (d *Deletion) active() error {
	switch {
	case d.closed:
		return errClosed
	case d.state == nil:
		return fmt.Errorf("deletion not initialized")
	}
	return nil
}

func (d *Deletion) rollback(ctx context.Context) {
	d.closed = true
	d.events.events = nil
	if err := d.tx.Rollback(ctx); err != nil {
		d.svc.logger.Warn("rollback failed", "error", err)
	}
}

var errClosed = errors.New("deletion already finished or aborted")

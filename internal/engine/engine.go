package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/cascade/internal/compiler"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/querysql"
)

// Tx is the relational executor one request runs on. It must support
// nested savepoints inside one ambient transaction and return constraint
// violations as *store.ConstraintError.
type Tx interface {
	QueryIDs(ctx context.Context, query string, args ...any) ([][]int64, error)
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Savepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
}

// EventFunc receives the deletions of a branch once its outermost
// savepoint is released.
type EventFunc func(ir.Event)

// Request identifies the root of a delete and who asks for it.
type Request struct {
	Type      string
	ID        int64
	Principal ir.Principal
	Options   ir.Options
}

// Engine plans and executes delete requests against a spec registry.
// It holds no per-request state.
type Engine struct {
	registry *compiler.Registry
	builder  *querysql.Builder
	logger   *slog.Logger
	metrics  *Metrics
	ids      RequestIDGenerator
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the logger. Steps log at debug, warnings at warn.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics records engine activity in m.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRequestIDs sets the request id generator.
//
// Default: UUIDv7Generator
// Use WithRequestIDs(NewFixedGenerator("req-1")) for golden tests.
func WithRequestIDs(gen RequestIDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = gen
	}
}

// New creates an Engine over a resolved registry.
func New(registry *compiler.Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		builder:  querysql.NewBuilder(registry.Model()),
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry the engine plans against.
func (e *Engine) Registry() *compiler.Registry {
	return e.registry
}

// Ownership returns the predicate deletes carry for a principal: none for
// an administrator or when forced, the current group for a leader of that
// group, the principal's own rows otherwise.
func Ownership(p ir.Principal, force bool) querysql.Ownership {
	switch {
	case force || p.Admin:
		return querysql.Ownership{}
	case p.Leads(p.GroupID):
		return querysql.Ownership{Column: querysql.GroupColumn, Value: p.GroupID}
	default:
		return querysql.Ownership{Column: querysql.OwnerColumn, Value: p.UserID}
	}
}

// annotationRoot reports whether name is, or extends, the root type of an
// annotation variant spec. Deleting such a row directly removes its links.
func (e *Engine) annotationRoot(name string) bool {
	for _, n := range e.registry.Model().Chain(name) {
		if s, ok := e.registry.Spec(n); ok && s.Variant == ir.VariantAnnotation {
			return true
		}
	}
	return false
}

// Prepare runs the collection pass and builds the plan of one request. The
// returned State executes the plan step by step on tx. sink may be nil.
func (e *Engine) Prepare(ctx context.Context, tx Tx, req Request, sink EventFunc) (*State, error) {
	spec, ok := e.registry.Spec(req.Type)
	if !ok {
		return nil, fmt.Errorf("no delete spec for type %q", req.Type)
	}

	requestID := e.ids.Generate()
	logger := e.logger.With("request", requestID, "type", req.Type, "id", req.ID)

	c := &collector{engine: e, tx: tx, req: req}
	tables, err := c.collect(ctx, spec, req.ID, "", true, e.annotationRoot(req.Type))
	if err != nil {
		return nil, fmt.Errorf("collect %s %d: %w", req.Type, req.ID, err)
	}

	plan := buildPlan(e.registry.Model(), tables)
	e.metrics.planned(len(plan))
	logger.Debug("plan built", "steps", len(plan), "queries", c.queries)

	s := &State{
		engine:    e,
		tx:        tx,
		req:       req,
		requestID: requestID,
		logger:    logger,
		tables:    tables,
		plan:      plan,
		ownership: Ownership(req.Principal, req.Options.Force),
		sink:      sink,
	}
	s.sp = newSavepoints(tx, s.flush)
	return s, nil
}

package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"

	"github.com/roach88/cascade/internal/compiler"
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/service"
	"github.com/roach88/cascade/internal/store"
	"github.com/roach88/cascade/internal/testutil"
	"github.com/roach88/cascade/specs"
)

// DefaultRequestID is the request id of scenarios that do not set one.
const DefaultRequestID = "scenario"

// Harness runs one scenario against a fresh store.
type Harness struct {
	store    *store.Store
	registry *compiler.Registry
	service  *service.Service
	result   *Result
	logger   *slog.Logger
}

// traceSink records published events into the result trace.
type traceSink struct {
	result *Result
}

func (s traceSink) Publish(_ context.Context, ev ir.Event) error {
	s.result.AddEvent(ev)
	return nil
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. The
// returned error reports a broken scenario (bad specs or fixtures); a
// request that misbehaves fails the result instead.
//
// Execution flow:
//  1. Create fresh in-memory database
//  2. Load specs and insert fixtures
//  3. Run the delete request through the service
//  4. Check expectations and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	registry, err := loadRegistry(scenario.Specs)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs: %w", err)
	}

	requestID := scenario.RequestID
	if requestID == "" {
		requestID = DefaultRequestID
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	result := NewResult()

	h := &Harness{
		store:    st,
		registry: registry,
		result:   result,
		logger:   logger,
	}
	eng := engine.New(registry,
		engine.WithLogger(logger),
		engine.WithRequestIDs(testutil.NewConstantRequestIDs(requestID)))
	h.service = service.New(st, eng,
		service.WithEventSink(traceSink{result: result}),
		service.WithLogger(logger))

	if err := h.loadFixtures(ctx, scenario); err != nil {
		return nil, err
	}

	opts, err := ir.ParseOptions(scenario.Request.Options)
	if err != nil {
		return nil, fmt.Errorf("request options: %w", err)
	}
	report, err := h.service.Delete(ctx, scenario.Principal, engine.Request{
		Type:    scenario.Request.Type,
		ID:      scenario.Request.ID,
		Options: opts,
	})
	result.Report = report
	if err != nil {
		result.Error = err.Error()
	}

	h.checkExpect(scenario.Expect, err)

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, e := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(e)
	}
	return result, nil
}

func loadRegistry(dir string) (*compiler.Registry, error) {
	if dir == "" {
		return specs.Load()
	}
	return compiler.LoadDir(dir)
}

// loadFixtures inserts fixture rows in order. Owned tables default
// owner_id and group_id to the scenario principal.
func (h *Harness) loadFixtures(ctx context.Context, scenario *Scenario) error {
	owned := make(map[string]bool)
	model := h.registry.Model()
	for _, name := range model.Order {
		t := model.Types[name]
		if t.Owned {
			owned[t.Table] = true
		}
	}

	for i, f := range scenario.Fixtures {
		for j, row := range f.Rows {
			values := make(map[string]any, len(row)+2)
			for k, v := range row {
				values[k] = v
			}
			if owned[f.Table] {
				if _, ok := values["owner_id"]; !ok {
					values["owner_id"] = scenario.Principal.UserID
				}
				if _, ok := values["group_id"]; !ok {
					values["group_id"] = scenario.Principal.GroupID
				}
			}
			if err := h.store.Insert(ctx, f.Table, values); err != nil {
				return fmt.Errorf("fixtures[%d].rows[%d]: %w", i, j, err)
			}
		}
	}
	return nil
}

func (h *Harness) checkExpect(exp Expect, err error) {
	r := h.result
	switch {
	case exp.Error != "" && err == nil:
		r.AddError(fmt.Sprintf("expected error containing %q, request succeeded", exp.Error))
		return
	case exp.Error != "" && !strings.Contains(err.Error(), exp.Error):
		r.AddError(fmt.Sprintf("expected error containing %q, got %q", exp.Error, err.Error()))
		return
	case exp.Error != "":
		return
	case err != nil:
		r.AddError(fmt.Sprintf("unexpected error: %v", err))
		return
	}

	if exp.Deleted != nil && !reflect.DeepEqual(exp.Deleted, r.Report.Deleted) {
		r.AddError(fmt.Sprintf("deleted: expected %v, got %v", exp.Deleted, r.Report.Deleted))
	}
	if exp.Warnings != nil && !equalStrings(exp.Warnings, r.Report.Warnings) {
		r.AddError(fmt.Sprintf("warnings: expected %q, got %q", exp.Warnings, r.Report.Warnings))
	}
	if exp.Summary != nil && *exp.Summary != r.Report.Summary {
		r.AddError(fmt.Sprintf("summary: expected %+v, got %+v", *exp.Summary, r.Report.Summary))
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

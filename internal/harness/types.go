package harness

import (
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/testutil"
)

// TraceEvent is one event published by the service, in publication order.
type TraceEvent struct {
	Seq  int     `json:"seq"`
	Type string  `json:"type"`
	IDs  []int64 `json:"ids"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Report is nil when the request failed.
	Report *ir.Report `json:"report,omitempty"`

	// Error is the request error, empty on success.
	Error string `json:"error,omitempty"`

	// Trace lists the published events.
	Trace []TraceEvent `json:"trace"`

	// Errors explains every failed expectation.
	Errors []string `json:"errors,omitempty"`

	seq testutil.Sequence
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends a published event to the trace.
func (r *Result) AddEvent(ev ir.Event) {
	ids := make([]int64, len(ev.IDs))
	copy(ids, ev.IDs)
	r.Trace = append(r.Trace, TraceEvent{Seq: r.seq.Next(), Type: ev.Type, IDs: ids})
}

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/service"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RequestOptions
}

// PlanStep is the JSON form of one plan step.
type PlanStep struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
	Path  string `json:"path"`
	Op    string `json:"op"`
	Table string `json:"table,omitempty"`
	ID    int64  `json:"id,omitempty"`
	Depth int    `json:"depth"`
}

// PlanResult is the JSON form of a dry run.
type PlanResult struct {
	RequestID string     `json:"request_id"`
	Type      string     `json:"type"`
	ID        int64      `json:"id"`
	Steps     []PlanStep `json:"steps"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RequestOptions: &RequestOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "plan [<type> <id>]",
		Short: "Show the steps a delete would run",
		Long: `Check permission, collect ids and build the plan of a delete
request without executing it. The transaction is rolled back, so the
database is left untouched.

Example:
  cascade plan --db ./omero.db --user 1 --group 1 Plate 7`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args, cmd)
		},
	}

	addRequestFlags(cmd, opts.RequestOptions)
	return cmd
}

func runPlan(opts *PlanOptions, args []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(formatter.GetErrWriter(), opts.Verbose)

	principal, req, err := opts.buildRequest(args)
	if err != nil {
		_ = formatter.Error(ErrCodeRequest, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid request", err)
	}

	reg, err := LoadRegistry(opts.Specs)
	if err != nil {
		return outputCompileError(formatter, err)
	}

	db, closeDB, err := opts.openDatabase(ctx)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer closeDB()

	svc := service.New(db, engine.New(reg, engine.WithLogger(logger)), service.WithLogger(logger))
	d := svc.NewDeletion(principal)
	if _, err := d.Initialize(ctx, req.Type, req.ID, req.Options); err != nil {
		return requestError(formatter, err)
	}
	defer d.Abort(ctx)

	result := PlanResult{RequestID: d.RequestID(), Type: req.Type, ID: req.ID, Steps: []PlanStep{}}
	for _, s := range d.Steps() {
		result.Steps = append(result.Steps, planStep(s))
	}

	if formatter.Format == "json" {
		return formatter.SuccessFor(result.RequestID, result)
	}
	writePlan(formatter.Writer, result)
	return nil
}

func planStep(s *engine.Step) PlanStep {
	ps := PlanStep{
		Index: s.Index,
		Kind:  s.Kind.String(),
		Path:  s.Path,
		Op:    s.Op.String(),
		Depth: len(s.Stack),
	}
	if s.Kind == engine.StepDelete {
		ps.Table, ps.ID = s.Table, s.ID
	}
	if s.Kind == engine.StepFinalize {
		ps.Op = s.Container.Op.String()
		ps.Depth = len(s.Container.Stack)
	}
	return ps
}

func writePlan(w io.Writer, result PlanResult) {
	if len(result.Steps) == 0 {
		fmt.Fprintf(w, "Nothing to delete for %s %d\n", result.Type, result.ID)
		return
	}
	fmt.Fprintf(w, "Plan for %s %d: %d step(s)\n\n", result.Type, result.ID, len(result.Steps))
	for _, s := range result.Steps {
		indent := strings.Repeat("  ", s.Depth+1)
		switch s.Kind {
		case "delete":
			fmt.Fprintf(w, "%3d%s%s %s %s id=%d\n", s.Index, indent, s.Kind, s.Op, s.Path, s.ID)
		default:
			fmt.Fprintf(w, "%3d%s%s %s %s\n", s.Index, indent, s.Kind, s.Op, s.Path)
		}
	}
}

package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cascade/internal/ir"
)

// Snapshot is what a golden file records for one scenario: the report
// without its request id, or the error, plus the published events.
type Snapshot struct {
	ScenarioName string
	Result       *Result
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON serialization.
func (s *Snapshot) toCanonicalMap() map[string]any {
	events := make([]any, len(s.Result.Trace))
	for i, ev := range s.Result.Trace {
		events[i] = map[string]any{
			"type": ev.Type,
			"ids":  ev.IDs,
		}
	}

	m := map[string]any{
		"scenario_name": s.ScenarioName,
		"events":        events,
	}
	if s.Result.Report != nil {
		m["report"] = s.Result.Report.CanonicalMap()
	}
	if s.Result.Error != "" {
		m["error"] = s.Result.Error
	}
	return m
}

// SnapshotJSON renders the golden form of a result as canonical JSON.
func SnapshotJSON(scenarioName string, result *Result) ([]byte, error) {
	snapshot := Snapshot{ScenarioName: scenarioName, Result: result}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its report and events
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := SnapshotJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

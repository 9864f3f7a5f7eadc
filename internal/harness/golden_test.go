package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
)

// TestScenarios runs every scenario in testdata/scenarios and compares its
// report and events with the golden file of the same name.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("../../testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			require.Equal(t, name, scenario.Name, "scenario name must match its file")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario failed: %v", result.Errors)
		})
	}
}

func TestEveryScenarioHasGolden(t *testing.T) {
	paths, err := filepath.Glob("../../testdata/scenarios/*.yaml")
	require.NoError(t, err)
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		_, err := os.Stat(filepath.Join("testdata", "golden", name+".golden"))
		assert.NoError(t, err, "missing golden file for %s", name)
	}
}

func TestAssertGolden_FromResult(t *testing.T) {
	scenario, err := LoadScenario("../../testdata/scenarios/image_leaf.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "image_leaf", result))
}

func TestSnapshot_CanonicalJSON(t *testing.T) {
	result := NewResult()
	result.AddEvent(ir.Event{Type: "Image", IDs: []int64{42}})
	result.Report = &ir.Report{
		RequestID: "ignored",
		Type:      "Image",
		ID:        42,
		Summary:   ir.Summary{Steps: 1, Found: 1, Deleted: 1},
		Deleted:   map[string][]int64{"image": {42}},
	}

	snapshot := Snapshot{ScenarioName: "image_leaf", Result: result}
	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join("testdata", "golden", "image_leaf.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(golden), string(data))
	assert.NotContains(t, string(data), "ignored")
}

func TestSnapshot_Error(t *testing.T) {
	result := NewResult()
	result.Error = "permission denied"

	snapshot := Snapshot{ScenarioName: "denied", Result: result}
	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	require.NoError(t, err)
	assert.Equal(t, `{"error":"permission denied","events":[],"scenario_name":"denied"}`, string(data))
}

func TestCanonicalJSONDeterminism(t *testing.T) {
	scenario, err := LoadScenario("../../testdata/scenarios/image_descendants.yaml")
	require.NoError(t, err)

	var outputs []string
	for i := 0; i < 3; i++ {
		result, err := Run(scenario)
		require.NoError(t, err)
		snapshot := Snapshot{ScenarioName: scenario.Name, Result: result}
		data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
		require.NoError(t, err)
		outputs = append(outputs, string(data))
	}
	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[1], outputs[2])
}

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "../../testdata/scenarios"

// copyScenario copies one scenario file into dir. The specs field is not
// used by the shared scenarios, so the copy runs against the embedded specs.
func copyScenario(t *testing.T, dir, name string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(scenariosDir, name+".yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), data, 0644))
}

func TestTestCommand_SharedScenarios(t *testing.T) {
	output, err := execute(t, "test", scenariosDir)
	require.NoError(t, err, output)

	assert.Contains(t, output, "✓ image_leaf\n")
	assert.Contains(t, output, "✓ plate_shared_tag\n")
	assert.Contains(t, output, "✓ permission_denied\n")
	assert.Contains(t, output, "Test Summary: 7 passed, 0 failed, 7 total")
	assert.Contains(t, output, "✓ All scenarios passed")
}

func TestTestCommand_Filter(t *testing.T) {
	output, err := execute(t, "--format", "json", "test", "--filter", "plate_*", scenariosDir)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Passed)
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "image_leaf")

	output, err := execute(t, "test", "--update", dir)
	require.NoError(t, err)
	assert.Contains(t, output, "✓ image_leaf (golden updated)")

	goldenPath := filepath.Join(dir, "golden", "image_leaf.golden")
	expected, err := os.ReadFile("../harness/testdata/golden/image_leaf.golden")
	require.NoError(t, err)
	actual, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.JSONEq(t, string(expected), string(actual))

	_, err = execute(t, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"stale":true}`), 0644))
	output, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "✗ image_leaf")
	assert.Contains(t, output, "report does not match golden file")
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: wrong_expectation
description: "expects the image to survive"
principal: {user_id: 1, group_id: 1}
fixtures:
  - table: image
    rows:
      - {id: 42}
request:
  type: Image
  id: 42
assertions:
  - type: remaining
    table: image
    ids: [42]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(scenario), 0644))

	output, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.False(t, resp.Data.Scenarios[0].Pass)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommand_InvalidScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: [\n"), 0644))

	output, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, output, "✗ bad.yaml")
	assert.Contains(t, output, "failed to load scenario")
}

func TestTestCommand_EmptyAndMissingDir(t *testing.T) {
	output, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, output, "No scenarios found.")

	_, err = execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b", "golden", "leaf.golden"), goldenFilePath(filepath.Join("a", "b", "leaf.yaml")))
}

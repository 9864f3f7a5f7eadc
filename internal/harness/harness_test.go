package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
)

func owner() ir.Principal {
	return ir.Principal{UserID: 1, GroupID: 1}
}

func TestRun_LeafImage(t *testing.T) {
	scenario := &Scenario{
		Name:        "leaf",
		Description: "Leaf image",
		Principal:   owner(),
		Fixtures: []Fixture{
			{Table: "image", Rows: []map[string]any{{"id": 42}}},
		},
		Request: Request{Type: "Image", ID: 42},
		Expect: Expect{
			Deleted:  map[string][]int64{"image": {42}},
			Warnings: []string{},
			Summary:  &ir.Summary{Steps: 1, Found: 1, Deleted: 1},
		},
		Assertions: []Assertion{
			{Type: AssertRemaining, Table: "image"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Errors)
	require.NotNil(t, result.Report)
	assert.Equal(t, DefaultRequestID, result.Report.RequestID)
	assert.Equal(t, []TraceEvent{{Seq: 1, Type: "Image", IDs: []int64{42}}}, result.Trace)
}

func TestRun_RequestID(t *testing.T) {
	scenario := &Scenario{
		Name:        "request_id",
		Description: "Fixed request id",
		RequestID:   "req-fixed",
		Principal:   owner(),
		Fixtures: []Fixture{
			{Table: "image", Rows: []map[string]any{{"id": 1}}},
		},
		Request: Request{Type: "Image", ID: 1},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)
	assert.Equal(t, "req-fixed", result.Report.RequestID)
}

func TestRun_ExpectationMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "Wrong expectations fail the result",
		Principal:   owner(),
		Fixtures: []Fixture{
			{Table: "image", Rows: []map[string]any{{"id": 42}}},
		},
		Request: Request{Type: "Image", ID: 42},
		Expect: Expect{
			Deleted:  map[string][]int64{"image": {43}},
			Warnings: []string{"missing row"},
			Summary:  &ir.Summary{Steps: 2},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "deleted")
	assert.Contains(t, result.Errors[1], "warnings")
	assert.Contains(t, result.Errors[2], "summary")
}

func TestRun_ExpectedError(t *testing.T) {
	tests := []struct {
		name     string
		expect   string
		userID   int64
		wantPass bool
		wantErr  string
	}{
		{"matching error", "owned by user 1", 2, true, ""},
		{"different error", "force requires", 2, false, "expected error containing"},
		{"no error", "permission denied", 1, false, "request succeeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario := &Scenario{
				Name:        "expected_error",
				Description: "Permission checks",
				Principal:   ir.Principal{UserID: tt.userID, GroupID: 1},
				Fixtures: []Fixture{
					{Table: "image", Rows: []map[string]any{{"id": 42, "owner_id": 1, "group_id": 1}}},
				},
				Request: Request{Type: "Image", ID: 42},
				Expect:  Expect{Error: tt.expect},
			}

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPass, result.Pass, result.Errors)
			if tt.wantErr != "" {
				require.NotEmpty(t, result.Errors)
				assert.Contains(t, result.Errors[0], tt.wantErr)
			}
		})
	}
}

func TestRun_UnexpectedError(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown_type",
		Description: "Unknown root type",
		Principal:   owner(),
		Request:     Request{Type: "Microscope", ID: 1},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Nil(t, result.Report)
	assert.Contains(t, result.Error, "no delete spec")
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")
}

func TestRun_BadFixture(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_fixture",
		Description: "Fixture rows must satisfy the schema",
		Principal:   owner(),
		Fixtures: []Fixture{
			{Table: "pixels", Rows: []map[string]any{{"id": 5, "image": 404}}},
		},
		Request: Request{Type: "Pixels", ID: 5},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fixtures[0].rows[0]")
}

func TestRun_FixturesKeepExplicitOwner(t *testing.T) {
	scenario := &Scenario{
		Name:        "explicit_owner",
		Description: "Rows owned by someone else are not deleted",
		Principal:   ir.Principal{UserID: 1, GroupID: 1, LeaderOf: []int64{1}},
		Fixtures: []Fixture{
			{Table: "image", Rows: []map[string]any{{"id": 42, "owner_id": 3}}},
		},
		Request: Request{Type: "Image", ID: 42},
		Assertions: []Assertion{
			{Type: AssertRemaining, Table: "image"},
		},
	}

	// The group leader may delete a row owned by another member.
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("../../testdata/scenarios/plate_shared_tag.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.Report, second.Report)
}

func TestRun_FreshDatabasePerRun(t *testing.T) {
	scenario := &Scenario{
		Name:        "fresh",
		Description: "Fixtures are inserted into an empty database every run",
		Principal:   owner(),
		Fixtures: []Fixture{
			{Table: "image", Rows: []map[string]any{{"id": 1}}},
		},
		Request: Request{Type: "Image", ID: 1},
	}

	for i := 0; i < 2; i++ {
		result, err := Run(scenario)
		require.NoError(t, err)
		assert.True(t, result.Pass, result.Errors)
	}
}

func TestRun_FailedAssertions(t *testing.T) {
	scenario := &Scenario{
		Name:        "failed_assertions",
		Description: "Assertion failures are reported",
		Principal:   owner(),
		Fixtures: []Fixture{
			{Table: "image", Rows: []map[string]any{{"id": 1}, {"id": 2}}},
		},
		Request: Request{Type: "Image", ID: 1},
		Assertions: []Assertion{
			{Type: AssertRemaining, Table: "image", IDs: []int64{1, 2}},
			{Type: AssertEventCount, Event: "Image", Count: 2},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 2)
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)

	r.AddError("first")
	r.AddError("second")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"first", "second"}, r.Errors)
}

func TestResult_AddEvent(t *testing.T) {
	r := NewResult()
	ids := []int64{1, 2}
	r.AddEvent(ir.Event{RequestID: "r", Op: ir.EventDelete, Type: "Image", IDs: ids})
	r.AddEvent(ir.Event{RequestID: "r", Op: ir.EventDelete, Type: "Dataset", IDs: []int64{3}})
	ids[0] = 99

	assert.Equal(t, []TraceEvent{
		{Seq: 1, Type: "Image", IDs: []int64{1, 2}},
		{Seq: 2, Type: "Dataset", IDs: []int64{3}},
	}, r.Trace)
}

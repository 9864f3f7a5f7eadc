package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
)

func TestOutputFormatter_SuccessForCarriesRequestID(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	report := &ir.Report{
		RequestID: "req-1",
		Type:      "Image",
		ID:        42,
		Summary:   ir.Summary{Steps: 1, Found: 1, Deleted: 1},
		Deleted:   map[string][]int64{"image": {42}},
		Warnings:  []string{},
	}
	require.NoError(t, formatter.SuccessFor(report.RequestID, report))

	var resp struct {
		Status    string    `json:"status"`
		RequestID string    `json:"request_id"`
		Data      ir.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, []int64{42}, resp.Data.Deleted["image"])
}

func TestOutputFormatter_SuccessOmitsEmptyRequestID(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]int{"specs": 8}))
	assert.NotContains(t, buf.String(), "request_id")
	assert.Contains(t, buf.String(), `"status":"ok"`)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	details := map[string]any{"file": "specs.cue", "line": 3}
	require.NoError(t, formatter.Error(ErrCodePermission, "permission denied: user 2 cannot delete Image 42", details))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodePermission, resp.Error.Code)
	assert.Equal(t, "permission denied: user 2 cannot delete Image 42", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
	assert.Empty(t, resp.RequestID)
}

func TestOutputFormatter_Text(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		write   func(f *OutputFormatter) error
		want    []string
		notWant []string
	}{
		{
			name:  "success",
			write: func(f *OutputFormatter) error { return f.Success("8 specs compiled") },
			want:  []string{"8 specs compiled\n"},
		},
		{
			name:    "error",
			write:   func(f *OutputFormatter) error { return f.Error(ErrCodeConstraint, "fk failed", "detail") },
			want:    []string{"Error [E203]: fk failed\n"},
			notWant: []string{"Details:"},
		},
		{
			name:    "verbose error",
			verbose: true,
			write:   func(f *OutputFormatter) error { return f.Error(ErrCodeConstraint, "fk failed", "detail") },
			want:    []string{"Error [E203]: fk failed\n", "Details: detail\n"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}
			require.NoError(t, tt.write(formatter))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, buf.String(), w)
			}
		})
	}
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("Deleting %s %d", "Image", 42)
	assert.Empty(t, out.String())
	assert.Equal(t, "Deleting Image 42\n", errOut.String())
	assert.Same(t, errOut, formatter.GetErrWriter())

	quiet := &OutputFormatter{Format: "text", Writer: out}
	quiet.VerboseLog("Deleting %s %d", "Image", 42)
	assert.Empty(t, out.String())
	assert.Same(t, out, quiet.GetErrWriter())
}

func TestGetExitCode(t *testing.T) {
	cause := errors.New("FOREIGN KEY constraint failed")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"command error", NewExitError(ExitCommandError, "bad flags"), ExitCommandError},
		{"wrapped failure", fmt.Errorf("run: %w", WrapExitError(ExitFailure, "request failed", cause)), ExitFailure},
		{"plain error", cause, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}

	wrapped := WrapExitError(ExitFailure, "request failed", cause)
	assert.Equal(t, "request failed: FOREIGN KEY constraint failed", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

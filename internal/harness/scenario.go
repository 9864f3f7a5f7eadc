package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cascade/internal/ir"
)

// Scenario is one conformance case: fixture rows, a delete request and
// what the request must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs is a directory of CUE files with the catalog and specs. Empty
	// uses the embedded defaults. Relative paths resolve against the
	// scenario file.
	Specs string `yaml:"specs,omitempty"`

	// RequestID is the fixed request id. Defaults to "scenario".
	RequestID string `yaml:"request_id,omitempty"`

	Principal ir.Principal `yaml:"principal"`
	Fixtures  []Fixture    `yaml:"fixtures"`
	Request   Request      `yaml:"request"`
	Expect    Expect       `yaml:"expect"`

	// Assertions check the database and the event trace afterwards.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Fixture inserts rows into one table, in order.
type Fixture struct {
	Table string           `yaml:"table"`
	Rows  []map[string]any `yaml:"rows"`
}

// Request is the delete request of a scenario.
type Request struct {
	Type    string            `yaml:"type"`
	ID      int64             `yaml:"id"`
	Options map[string]string `yaml:"options,omitempty"`
}

// Expect describes the outcome. Nil fields are not checked.
type Expect struct {
	// Error is a substring of the expected request error. Empty means the
	// request must succeed.
	Error string `yaml:"error,omitempty"`

	Deleted  map[string][]int64 `yaml:"deleted,omitempty"`
	Warnings []string           `yaml:"warnings,omitempty"`
	Summary  *ir.Summary        `yaml:"summary,omitempty"`
}

// Assertion validates final state or the event trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Table and IDs are used by remaining.
	Table string  `yaml:"table,omitempty"`
	IDs   []int64 `yaml:"ids,omitempty"`

	// Event is the event type of event_count.
	Event string `yaml:"event,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Events is the expected order of event_order.
	Events []string `yaml:"events,omitempty"`

	// Text is the substring of warning_contains.
	Text string `yaml:"text,omitempty"`
}

// Assertion type constants.
const (
	AssertRemaining       = "remaining"
	AssertEventOrder      = "event_order"
	AssertEventCount      = "event_count"
	AssertWarningContains = "warning_contains"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Specs != "" && !filepath.IsAbs(scenario.Specs) {
		scenario.Specs = filepath.Join(filepath.Dir(path), scenario.Specs)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Request.Type == "" {
		return fmt.Errorf("request.type is required")
	}
	if s.Specs != "" {
		if _, err := os.Stat(s.Specs); os.IsNotExist(err) {
			return fmt.Errorf("specs directory not found: %s", s.Specs)
		}
	}
	if _, err := ir.ParseOptions(s.Request.Options); err != nil {
		return fmt.Errorf("request.options: %w", err)
	}

	for i, f := range s.Fixtures {
		if f.Table == "" {
			return fmt.Errorf("fixtures[%d]: table is required", i)
		}
		if len(f.Rows) == 0 {
			return fmt.Errorf("fixtures[%d]: rows are required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertRemaining:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for remaining", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertWarningContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for warning_contains", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

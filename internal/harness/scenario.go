package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/aircurve/internal/compressor"
)

// Scenario defines a conformance test scenario.
// A scenario evaluates a sequence of queries against loaded machines and
// checks each operating point and the recorded run as a whole.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunToken is an optional fixed run token for deterministic tests.
	// If empty, defaults to "test-run-default".
	RunToken string `yaml:"run_token,omitempty"`

	// Steps are evaluated in order, one evaluation record each.
	Steps []Step `yaml:"steps"`

	// Assertions validate relations between steps and the recorded run.
	// Supported types: agree, monotonic, count, replay
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is a single query against a named machine.
type Step struct {
	// Machine is the machine name as declared in the definitions.
	Machine string `yaml:"machine"`

	// Query is passed to the machine's strategy unchanged.
	Query compressor.Query `yaml:"query"`

	// Expect specifies the expected outcome.
	// If nil, the step only contributes to the trace.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected operating point or model error.
// Only the fields that are set are checked.
type ExpectClause struct {
	// Error is the expected model error code (e.g. "UNSUPPORTED_QUERY").
	// When set, no operating point fields may be given.
	Error string `yaml:"error,omitempty"`

	Regime            string   `yaml:"regime,omitempty"`
	Power             *float64 `yaml:"power,omitempty"`
	PowerFraction     *float64 `yaml:"power_fraction,omitempty"`
	Flow              *float64 `yaml:"flow,omitempty"`
	FlowFraction      *float64 `yaml:"flow_fraction,omitempty"`
	AuxiliaryFlow     *float64 `yaml:"auxiliary_flow,omitempty"`
	AuxiliaryFraction *float64 `yaml:"auxiliary_fraction,omitempty"`

	// Tolerance is the relative tolerance for numeric fields.
	// Zero means DefaultTolerance.
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

func (e *ExpectClause) expectsPoint() bool {
	return e.Regime != "" || e.Power != nil || e.PowerFraction != nil || e.Flow != nil ||
		e.FlowFraction != nil || e.AuxiliaryFlow != nil || e.AuxiliaryFraction != nil
}

// Assertion validates relations across steps or the recorded run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "agree": the listed steps produced the same values for Fields
	// - "monotonic": Field moves in Direction across the listed steps
	// - "count": the run holds Count evaluations (optionally by Machine/Status)
	// - "replay": re-evaluating the recorded run reproduces every result
	Type string `yaml:"type"`

	// Steps are zero-based step indexes (used by agree, monotonic).
	Steps []int `yaml:"steps,omitempty"`

	// Fields are result field names compared by agree.
	// Defaults to power and flow.
	Fields []string `yaml:"fields,omitempty"`

	// Field is the result field checked by monotonic.
	Field string `yaml:"field,omitempty"`

	// Direction is "increasing" or "decreasing" (used by monotonic).
	Direction string `yaml:"direction,omitempty"`

	// Tolerance is the relative tolerance used by agree.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Machine and Status filter the records counted by count.
	Machine string `yaml:"machine,omitempty"`
	Status  string `yaml:"status,omitempty"`

	// Count is the expected number of records (used by count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertAgree     = "agree"
	AssertMonotonic = "monotonic"
	AssertCount     = "count"
	AssertReplay    = "replay"
)

// Monotonic directions.
const (
	DirectionIncreasing = "increasing"
	DirectionDecreasing = "decreasing"
)

// Result fields that agree and monotonic assertions may name.
var resultFields = []string{
	"power", "power_fraction", "flow", "flow_fraction",
	"auxiliary.flow", "auxiliary.fraction",
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
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
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Machine == "" {
			return fmt.Errorf("steps[%d]: machine is required", i)
		}
		if _, err := compressor.ParseEntry(string(step.Query.Entry)); err != nil {
			return fmt.Errorf("steps[%d].query: %w", i, err)
		}
		if e := step.Expect; e != nil {
			if e.Error != "" && e.expectsPoint() {
				return fmt.Errorf("steps[%d].expect: error cannot be combined with result fields", i)
			}
			if e.Tolerance < 0 {
				return fmt.Errorf("steps[%d].expect: tolerance must be non-negative", i)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Steps)); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	checkSteps := func(min int) error {
		if len(a.Steps) < min {
			return fmt.Errorf("assertions[%d]: %s needs at least %d steps", index, a.Type, min)
		}
		for _, s := range a.Steps {
			if s < 0 || s >= steps {
				return fmt.Errorf("assertions[%d]: step %d out of range [0, %d)", index, s, steps)
			}
		}
		return nil
	}
	checkField := func(f string) error {
		for _, known := range resultFields {
			if f == known {
				return nil
			}
		}
		return fmt.Errorf("assertions[%d]: unknown result field %q", index, f)
	}

	switch a.Type {
	case AssertAgree:
		if err := checkSteps(2); err != nil {
			return err
		}
		for _, f := range a.Fields {
			if err := checkField(f); err != nil {
				return err
			}
		}
		if a.Tolerance < 0 {
			return fmt.Errorf("assertions[%d]: tolerance must be non-negative", index)
		}
	case AssertMonotonic:
		if err := checkSteps(2); err != nil {
			return err
		}
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for monotonic", index)
		}
		if err := checkField(a.Field); err != nil {
			return err
		}
		if a.Direction != DirectionIncreasing && a.Direction != DirectionDecreasing {
			return fmt.Errorf("assertions[%d]: direction must be %q or %q", index, DirectionIncreasing, DirectionDecreasing)
		}
	case AssertCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

package harness

import (
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/aircurve/internal/ir"
)

// snapshotDigits is the number of significant digits kept for floats in a
// snapshot. Results are compared exactly by replay; snapshots only need to
// catch behavioural drift and must not depend on the platform's last bit.
const snapshotDigits = 10

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunToken     string       `json:"run_token,omitempty"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"step":    int64(event.Step),
			"seq":     event.Seq,
			"machine": event.Machine,
			"entry":   event.Entry,
			"args":    roundValue(event.Args),
			"status":  event.Status,
		}
		if event.Result != nil {
			eventMap["result"] = roundValue(event.Result)
		}
		if event.ErrorCode != "" {
			eventMap["error_code"] = event.ErrorCode
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
	if s.RunToken != "" {
		result["run_token"] = s.RunToken
	}
	return result
}

// roundValue rounds every float in v to snapshotDigits significant digits.
func roundValue(v ir.IRValue) ir.IRValue {
	switch val := v.(type) {
	case ir.IRFloat:
		r, err := strconv.ParseFloat(strconv.FormatFloat(float64(val), 'g', snapshotDigits, 64), 64)
		if err != nil {
			return val
		}
		return ir.IRFloat(r)
	case ir.IRObject:
		out := make(ir.IRObject, len(val))
		for k, elem := range val {
			out[k] = roundValue(elem)
		}
		return out
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			out[i] = roundValue(elem)
		}
		return out
	default:
		return v
	}
}

// Snapshot renders a scenario result as canonical JSON, the golden file format.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		RunToken:     result.RunToken,
		Trace:        result.Trace,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, specs []ir.MachineSpec) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, specs)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}

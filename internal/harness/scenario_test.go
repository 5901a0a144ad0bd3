package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aircurve/internal/compressor"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := filepath.Join(dir, "test.yaml")

	content := `
name: test_scenario
description: "Test scenario for validation"
run_token: run-1
steps:
  - machine: bo
    query: { entry: power_fraction, value: 0.82, auxiliary_fraction: 0.6798 }
    expect:
      regime: floor_pinned
      power: 370.886
      tolerance: 1e-6
  - machine: bo
    query:
      entry: electrical
      reading: { voltage: 440, current: 0.02152, power_factor: 50 }
assertions:
  - type: count
    count: 2
`
	require.NoError(t, os.WriteFile(scenarioPath, []byte(content), 0644))

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, "run-1", scenario.RunToken)
	require.Len(t, scenario.Steps, 2)
	require.Len(t, scenario.Assertions, 1)

	first := scenario.Steps[0]
	assert.Equal(t, "bo", first.Machine)
	assert.Equal(t, compressor.Query{
		Entry:             compressor.EntryPowerFraction,
		Value:             0.82,
		AuxiliaryFraction: 0.6798,
	}, first.Query)
	require.NotNil(t, first.Expect)
	assert.Equal(t, "floor_pinned", first.Expect.Regime)
	require.NotNil(t, first.Expect.Power)
	assert.Equal(t, 370.886, *first.Expect.Power)
	assert.Nil(t, first.Expect.Flow)
	assert.Equal(t, 1e-6, first.Expect.Tolerance)

	assert.Equal(t, compressor.ElectricalReading{Voltage: 440, Current: 0.02152, PowerFactor: 50},
		scenario.Steps[1].Query.Reading)
	assert.Nil(t, scenario.Steps[1].Expect)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Testdata(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		t.Run(filepath.Base(f), func(t *testing.T) {
			_, err := LoadScenario(f)
			require.NoError(t, err)
		})
	}
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "malformed yaml",
			content: "name: [unterminated",
			wantErr: "failed to parse YAML",
		},
		{
			name: "unknown field",
			content: `
name: x
description: x
step:
  - machine: lu
    query: { entry: flow_fraction, value: 0.5 }
`,
			wantErr: "field step not found",
		},
		{
			name: "unknown query field",
			content: `
name: x
description: x
steps:
  - machine: lu
    query: { entry: flow_fraction, vaule: 0.5 }
`,
			wantErr: "field vaule not found",
		},
		{
			name: "missing name",
			content: `
description: x
steps:
  - machine: lu
    query: { entry: flow_fraction, value: 0.5 }
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: x
steps:
  - machine: lu
    query: { entry: flow_fraction, value: 0.5 }
`,
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			content: "name: x\ndescription: x\n",
			wantErr: "steps list is required",
		},
		{
			name: "missing machine",
			content: `
name: x
description: x
steps:
  - query: { entry: flow_fraction, value: 0.5 }
`,
			wantErr: "steps[0]: machine is required",
		},
		{
			name: "unknown entry",
			content: `
name: x
description: x
steps:
  - machine: lu
    query: { entry: torque, value: 0.5 }
`,
			wantErr: `steps[0].query: unknown entry "torque"`,
		},
		{
			name: "error combined with result",
			content: `
name: x
description: x
steps:
  - machine: lu
    query: { entry: flow_fraction, value: 0.5 }
    expect: { error: UNSUPPORTED_QUERY, power: 1 }
`,
			wantErr: "error cannot be combined",
		},
		{
			name: "negative tolerance",
			content: `
name: x
description: x
steps:
  - machine: lu
    query: { entry: flow_fraction, value: 0.5 }
    expect: { power: 1, tolerance: -1 }
`,
			wantErr: "tolerance must be non-negative",
		},
		{
			name: "unknown assertion type",
			content: `
name: x
description: x
steps:
  - machine: lu
    query: { entry: flow_fraction, value: 0.5 }
assertions:
  - type: trace_contains
`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name: "missing assertion type",
			content: `
name: x
description: x
steps:
  - machine: lu
    query: { entry: flow_fraction, value: 0.5 }
assertions:
  - count: 1
`,
			wantErr: "assertions[0]: type is required",
		},
		{
			name: "agree with one step",
			content: `
name: x
description: x
steps:
  - machine: lu
    query: { entry: flow_fraction, value: 0.5 }
assertions:
  - type: agree
    steps: [0]
`,
			wantErr: "agree needs at least 2 steps",
		},
		{
			name: "step out of range",
			content: `
name: x
description: x
steps:
  - machine: lu
    query: { entry: flow_fraction, value: 0.5 }
assertions:
  - type: agree
    steps: [0, 3]
`,
			wantErr: "step 3 out of range",
		},
		{
			name: "agree unknown field",
			content: `
name: x
description: x
steps:
  - machine: lu
    query: { entry: flow_fraction, value: 0.5 }
  - machine: lu
    query: { entry: flow_fraction, value: 0.5 }
assertions:
  - type: agree
    steps: [0, 1]
    fields: [torque]
`,
			wantErr: `unknown result field "torque"`,
		},
		{
			name: "monotonic without field",
			content: `
name: x
description: x
steps:
  - machine: lu
    query: { entry: flow_fraction, value: 0.5 }
  - machine: lu
    query: { entry: flow_fraction, value: 0.6 }
assertions:
  - type: monotonic
    steps: [0, 1]
    direction: increasing
`,
			wantErr: "field is required for monotonic",
		},
		{
			name: "monotonic bad direction",
			content: `
name: x
description: x
steps:
  - machine: lu
    query: { entry: flow_fraction, value: 0.5 }
  - machine: lu
    query: { entry: flow_fraction, value: 0.6 }
assertions:
  - type: monotonic
    steps: [0, 1]
    field: power
    direction: up
`,
			wantErr: "direction must be",
		},
		{
			name: "negative count",
			content: `
name: x
description: x
steps:
  - machine: lu
    query: { entry: flow_fraction, value: 0.5 }
assertions:
  - type: count
    count: -1
`,
			wantErr: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_AssertionsOptional(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: x
description: x
steps:
  - machine: lu
    query: { entry: measured_flow, value: 1000 }
`))
	require.NoError(t, err)
	assert.Empty(t, scenario.Assertions)
}

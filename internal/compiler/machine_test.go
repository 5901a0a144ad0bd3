package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileTest(t *testing.T, src, path string) cue.Value {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("test.cue"))
	require.NoError(t, v.Err())
	return v.LookupPath(cue.ParsePath(path))
}

func TestCompileMachineBlowOff(t *testing.T) {
	v := compileTest(t, `
		machine: centac: {
			description: "Centac C700 on header A"
			control: "blow_off"
			calibration: {
				rated_power: 452.3
				rated_flow:  3138
				floor_power: 370.9
				floor_flow:  2510
			}
		}
	`, "machine.centac")

	spec, err := CompileMachine(v)
	require.NoError(t, err)

	assert.Equal(t, "centac", spec.Name)
	assert.Equal(t, "Centac C700 on header A", spec.Description)
	assert.Equal(t, "blow_off", spec.Control)
	assert.Equal(t, map[string]float64{
		"rated_power": 452.3,
		"rated_flow":  3138,
		"floor_power": 370.9,
		"floor_flow":  2510,
	}, spec.Calibration)
	assert.Nil(t, spec.ElectricalFactor)
	assert.Empty(t, spec.ElectricalBasis)
	assert.Nil(t, spec.Recalibration)
}

func TestCompileMachineQuotedName(t *testing.T) {
	v := compileTest(t, `
		machine: "centac-2": {
			control: "load_unload"
			calibration: { rated_power: 452.3, rated_flow: 3138, idle_power: 71.3 }
		}
	`, `machine."centac-2"`)

	spec, err := CompileMachine(v)
	require.NoError(t, err)
	assert.Equal(t, "centac-2", spec.Name)
}

func TestCompileMachineWithRecalibration(t *testing.T) {
	v := compileTest(t, `
		machine: mod: {
			control: "modulation_unload"
			electrical_factor: 0.001
			electrical_basis:  "absolute"
			calibration: {
				rated_power:      452.3
				rated_flow:       3138
				idle_power:       71.3
				transition_flow:  3005
				transition_power: 411.9
				unload_flow:      2731
			}
			recalibration: {
				pressures:           [91, 100, 117]
				capacities:          [3200, 3138, 2885]
				actual_pressure:     100
				transition_pressure: 58.23
			}
		}
	`, "machine.mod")

	spec, err := CompileMachine(v)
	require.NoError(t, err)

	require.NotNil(t, spec.ElectricalFactor)
	assert.Equal(t, 0.001, *spec.ElectricalFactor)
	assert.Equal(t, "absolute", spec.ElectricalBasis)
	require.NotNil(t, spec.Recalibration)
	assert.Equal(t, []float64{91, 100, 117}, spec.Recalibration.Pressures)
	assert.Equal(t, []float64{3200, 3138, 2885}, spec.Recalibration.Capacities)
	assert.Equal(t, 100.0, spec.Recalibration.ActualPressure)
	require.NotNil(t, spec.Recalibration.TransitionPressure)
	assert.Equal(t, 58.23, *spec.Recalibration.TransitionPressure)
}

func TestCompileMachineExplicitZeroFactor(t *testing.T) {
	v := compileTest(t, `
		machine: m: {
			control: "load_unload"
			electrical_factor: 0
			calibration: { rated_power: 452.3, rated_flow: 3138, idle_power: 71.3 }
		}
	`, "machine.m")

	spec, err := CompileMachine(v)
	require.NoError(t, err)
	require.NotNil(t, spec.ElectricalFactor, "an explicit zero is kept so validation can reject it")
	assert.Zero(t, *spec.ElectricalFactor)
	assert.Equal(t, []string{ErrInvalidElectrical}, codes(Validate(*spec)))
}

func TestCompileMachineCUEArithmetic(t *testing.T) {
	// CUE expressions are evaluated before compilation sees them.
	v := compileTest(t, `
		_rated: 3138
		machine: lu: {
			control: "load_unload"
			calibration: { rated_power: 452.3, rated_flow: _rated, idle_power: 452.3 * 0.1576 }
		}
	`, "machine.lu")

	spec, err := CompileMachine(v)
	require.NoError(t, err)
	assert.Equal(t, 3138.0, spec.Calibration["rated_flow"])
	assert.InDelta(t, 71.28, spec.Calibration["idle_power"], 0.01)
}

func TestCompileMachineErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"missing control", `machine: m: { calibration: {} }`, "control"},
		{"unknown control", `machine: m: { control: "vane", calibration: {} }`, "control"},
		{"control not a string", `machine: m: { control: 3, calibration: {} }`, "control"},
		{"missing calibration", `machine: m: { control: "load_unload" }`, "calibration"},
		{"missing calibration field", `machine: m: {
			control: "load_unload"
			calibration: { rated_power: 452.3, rated_flow: 3138 }
		}`, "calibration.idle_power"},
		{"foreign calibration field", `machine: m: {
			control: "load_unload"
			calibration: { rated_power: 452.3, rated_flow: 3138, idle_power: 71.3, floor_flow: 2510 }
		}`, "calibration.floor_flow"},
		{"calibration not a number", `machine: m: {
			control: "load_unload"
			calibration: { rated_power: "big", rated_flow: 3138, idle_power: 71.3 }
		}`, "calibration.rated_power"},
		{"unknown top-level field", `machine: m: {
			control: "load_unload"
			calibration: { rated_power: 452.3, rated_flow: 3138, idle_power: 71.3 }
			vendor: "acme"
		}`, "vendor"},
		{"recalibration missing actual", `machine: m: {
			control: "load_unload"
			calibration: { rated_power: 452.3, rated_flow: 3138, idle_power: 71.3 }
			recalibration: { pressures: [1, 2, 3], capacities: [1, 2, 3] }
		}`, "recalibration.actual_pressure"},
		{"recalibration list element", `machine: m: {
			control: "load_unload"
			calibration: { rated_power: 452.3, rated_flow: 3138, idle_power: 71.3 }
			recalibration: { pressures: [1, "two", 3], capacities: [1, 2, 3], actual_pressure: 2 }
		}`, "recalibration.pressures[1]"},
		{"recalibration pressures not a list", `machine: m: {
			control: "load_unload"
			calibration: { rated_power: 452.3, rated_flow: 3138, idle_power: 71.3 }
			recalibration: { pressures: 100, capacities: [1, 2, 3], actual_pressure: 2 }
		}`, "recalibration.pressures"},
		{"unknown electrical basis", `machine: m: {
			control: "load_unload"
			calibration: { rated_power: 452.3, rated_flow: 3138, idle_power: 71.3 }
			electrical_basis: "watts"
		}`, "electrical_basis"},
		{"electrical basis not a string", `machine: m: {
			control: "load_unload"
			calibration: { rated_power: 452.3, rated_flow: 3138, idle_power: 71.3 }
			electrical_basis: 1
		}`, "electrical_basis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compileTest(t, tt.src, "machine.m")
			_, err := CompileMachine(v)
			require.Error(t, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompileMachineErrorPosition(t *testing.T) {
	v := compileTest(t, `machine: m: {
	control: "load_unload"
	calibration: { rated_power: 452.3, rated_flow: 3138, idle_power: 71.3 }
	vendor: "acme"
}`, "machine.m")

	_, err := CompileMachine(v)
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	require.True(t, ce.Pos.IsValid())
	assert.Equal(t, 4, ce.Pos.Line())
	assert.Contains(t, err.Error(), "test.cue:4:")
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "control", Message: "control is required"}
	assert.Equal(t, "control: control is required", err.Error())
}

package ir

import "slices"

// MachineSpec is a compiled machine definition.
type MachineSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Control     string `json:"control"` // "blow_off", "load_unload" or "modulation_unload"

	// Calibration holds the nameplate numbers keyed by snake_case name
	// (rated_power, rated_flow, floor_power, ...). Which keys are present
	// depends on Control.
	Calibration map[string]float64 `json:"calibration"`

	// ElectricalFactor overrides the three-phase conversion factor; nil
	// keeps the default.
	ElectricalFactor *float64 `json:"electrical_factor,omitempty"`

	// ElectricalBasis is "rated_fraction" or "absolute"; empty keeps the
	// default.
	ElectricalBasis string `json:"electrical_basis,omitempty"`

	// Recalibration, when present, is applied once after construction.
	Recalibration *DischargeTable `json:"recalibration,omitempty"`
}

// DischargeTable is a discharge-pressure recalibration block.
type DischargeTable struct {
	Pressures          []float64 `json:"pressures"`
	Capacities         []float64 `json:"capacities"`
	ActualPressure     float64   `json:"actual_pressure"`
	TransitionPressure *float64  `json:"transition_pressure,omitempty"`
}

// IRObject converts the machine definition into the constrained value model for hashing.
func (m MachineSpec) IRObject() IRObject {
	cal := make(IRObject, len(m.Calibration))
	for k, v := range m.Calibration {
		cal[k] = IRFloat(v)
	}

	obj := IRObject{
		"name":        IRString(m.Name),
		"control":     IRString(m.Control),
		"calibration": cal,
	}
	if m.ElectricalFactor != nil {
		obj["electrical_factor"] = IRFloat(*m.ElectricalFactor)
	}
	if m.ElectricalBasis != "" {
		obj["electrical_basis"] = IRString(m.ElectricalBasis)
	}
	if t := m.Recalibration; t != nil {
		rec := IRObject{
			"pressures":       floats(t.Pressures),
			"capacities":      floats(t.Capacities),
			"actual_pressure": IRFloat(t.ActualPressure),
		}
		if t.TransitionPressure != nil {
			rec["transition_pressure"] = IRFloat(*t.TransitionPressure)
		}
		obj["recalibration"] = rec
	}
	return obj
}

// CalibrationKeys returns the calibration names in sorted order.
func (m MachineSpec) CalibrationKeys() []string {
	keys := make([]string, 0, len(m.Calibration))
	for k := range m.Calibration {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func floats(vs []float64) IRArray {
	arr := make(IRArray, len(vs))
	for i, v := range vs {
		arr[i] = IRFloat(v)
	}
	return arr
}

// Outcome statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Evaluation is one recorded query against a machine.
type Evaluation struct {
	ID          string   `json:"id"` // Content-addressed hash
	RunToken    string   `json:"run_token"`
	Machine     string   `json:"machine"`
	MachineHash string   `json:"machine_hash"`
	Control     string   `json:"control"`
	Entry       string   `json:"entry"`
	Args        IRObject `json:"args"` // value, auxiliary_fraction, voltage, current, power_factor
	Seq         int64    `json:"seq"`  // Logical clock
	Outcome     Outcome  `json:"outcome"`

	EngineVersion string `json:"engine_version"`
	IRVersion     string `json:"ir_version"`
}

// Outcome is the result of an evaluation: an operating point or a model error.
type Outcome struct {
	Status       string   `json:"status"`
	Result       IRObject `json:"result,omitempty"` // power, power_fraction, flow, flow_fraction, auxiliary, regime
	ErrorCode    string   `json:"error_code,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// OK reports whether the evaluation produced an operating point.
func (o Outcome) OK() bool { return o.Status == StatusOK }

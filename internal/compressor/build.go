package compressor

import "slices"

// calibrationFields lists the constructor arguments of each strategy in
// argument order.
var calibrationFields = map[Control][]string{
	ControlBlowOff:          {"rated_power", "rated_flow", "floor_power", "floor_flow"},
	ControlLoadUnload:       {"rated_power", "rated_flow", "idle_power"},
	ControlModulationUnload: {"rated_power", "rated_flow", "idle_power", "transition_flow", "transition_power", "unload_flow"},
}

// CalibrationFields returns the calibration names a strategy is built from,
// in constructor argument order. It returns nil for an unknown control.
func CalibrationFields(control Control) []string {
	return slices.Clone(calibrationFields[control])
}

// Build constructs a strategy from named calibration values, as read from a
// machine definition. Every field CalibrationFields names must be present
// and no others.
func Build(control Control, calibration map[string]float64, opts ...Option) (Strategy, error) {
	names, ok := calibrationFields[control]
	if !ok {
		return nil, calibrationError(control, "control", "unknown control %q", string(control))
	}

	args := make([]float64, len(names))
	for i, name := range names {
		v, ok := calibration[name]
		if !ok {
			return nil, calibrationError(control, name, "is required")
		}
		args[i] = v
	}
	for name := range calibration {
		if !slices.Contains(names, name) {
			return nil, calibrationError(control, name, "is not a %s calibration field", control)
		}
	}

	var (
		s   Strategy
		err error
	)
	switch control {
	case ControlBlowOff:
		s, err = NewBlowOff(args[0], args[1], args[2], args[3], opts...)
	case ControlLoadUnload:
		s, err = NewLoadUnload(args[0], args[1], args[2], opts...)
	default:
		s, err = NewModulationUnload(args[0], args[1], args[2], args[3], args[4], args[5], opts...)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

package engine

import (
	"github.com/roach88/aircurve/internal/compressor"
	"github.com/roach88/aircurve/internal/ir"
)

// Machine is a compiled definition bound to its strategy.
type Machine struct {
	Spec     ir.MachineSpec
	Hash     string
	Strategy compressor.Strategy
}

// BuildMachine constructs the strategy a definition describes, applies its
// discharge-pressure recalibration if it has one, and computes its content
// hash. Any failure is an INVALID_MACHINE RuntimeError wrapping the cause.
func BuildMachine(spec ir.MachineSpec) (*Machine, error) {
	control, err := compressor.ParseControl(spec.Control)
	if err != nil {
		return nil, NewInvalidMachineError(spec.Name, err)
	}

	conv, err := compressor.NewConvention(spec.ElectricalFactor, spec.ElectricalBasis)
	if err != nil {
		return nil, NewInvalidMachineError(spec.Name, err)
	}

	strategy, err := compressor.Build(control, spec.Calibration, compressor.WithConvention(conv))
	if err != nil {
		return nil, NewInvalidMachineError(spec.Name, err)
	}

	if t := spec.Recalibration; t != nil {
		strategy, err = strategy.Recalibrate(Adjustment(*t))
		if err != nil {
			return nil, NewInvalidMachineError(spec.Name, err)
		}
	}

	hash, err := ir.MachineHash(spec)
	if err != nil {
		return nil, NewInvalidMachineError(spec.Name, err)
	}

	return &Machine{Spec: spec, Hash: hash, Strategy: strategy}, nil
}

// Adjustment converts a stored recalibration table into the model's form.
func Adjustment(t ir.DischargeTable) compressor.DischargeAdjustment {
	return compressor.DischargeAdjustment{
		Pressures:          t.Pressures,
		Capacities:         t.Capacities,
		ActualPressure:     t.ActualPressure,
		TransitionPressure: t.TransitionPressure,
	}
}

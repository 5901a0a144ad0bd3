package compressor

import "errors"

// Strategy is the capability set shared by every control strategy.
//
// The interface is sealed: BlowOff, LoadUnload and ModulationUnload are the
// only implementations. Control strategies are fixed by compressor practice,
// callers do not add new ones.
type Strategy interface {
	// Control identifies the strategy.
	Control() Control

	// Rated returns the full-load calibration point all fractions refer to.
	Rated() CalibrationPoint

	// Convention returns the electrical convention used by EntryElectrical.
	Convention() ElectricalConvention

	// Evaluate answers a query through the matching entry point.
	Evaluate(q Query) (OperatingPoint, error)

	// Recalibrate returns a copy re-anchored to a new discharge pressure.
	// The receiver is not modified.
	Recalibrate(adj DischargeAdjustment) (Strategy, error)

	strategy()
}

// Option configures a strategy at construction.
type Option func(*options)

type options struct {
	convention ElectricalConvention
}

// WithConvention overrides the electrical convention (default DefaultConvention).
func WithConvention(c ElectricalConvention) Option {
	return func(o *options) {
		o.convention = c
	}
}

func buildOptions(control Control, opts []Option) (options, error) {
	o := options{convention: DefaultConvention}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.convention.validate(); err != nil {
		return o, attribute(control, err)
	}
	return o, nil
}

// known is the single absolute quantity every entry point reduces to.
type known struct {
	power bool // true: value is power; false: value is delivered flow
	value float64
}

func knownPower(p float64) known { return known{power: true, value: p} }
func knownFlow(f float64) known  { return known{value: f} }

// field is a named scalar, used to check inputs in one pass.
type field struct {
	name string
	v    float64
}

func requireFinite(control Control, fields ...field) error {
	for _, f := range fields {
		if !isFinite(f.v) {
			return nonFiniteInput(control, f.name, f.v)
		}
	}
	return nil
}

// finish assembles an operating point and refuses to return one carrying NaN/Inf.
func finish(control Control, rated CalibrationPoint, power, flow float64, aux *Auxiliary, regime Regime) (OperatingPoint, error) {
	op := OperatingPoint{
		Power:         power,
		PowerFraction: power / rated.Power,
		Flow:          flow,
		FlowFraction:  flow / rated.Flow,
		Auxiliary:     aux,
		Regime:        regime,
	}

	vals := []field{
		{"power", op.Power},
		{"power_fraction", op.PowerFraction},
		{"flow", op.Flow},
		{"flow_fraction", op.FlowFraction},
	}
	if aux != nil {
		vals = append(vals, field{"auxiliary.flow", aux.Flow}, field{"auxiliary.fraction", aux.Fraction})
	}
	for _, f := range vals {
		if !isFinite(f.v) {
			return OperatingPoint{}, &Error{
				Code:    ErrCodeNonFiniteResult,
				Control: control,
				Field:   f.name,
				Message: "computation produced a non-finite value",
			}
		}
	}
	return op, nil
}

// checkQuery validates the parts of a query common to all strategies.
// allowAux is true only for strategies that accept a commanded blow-off.
func checkQuery(control Control, q Query, allowAux bool) error {
	if _, err := ParseEntry(string(q.Entry)); err != nil {
		return unsupported(control, "entry", "%v", err)
	}
	if err := requireFinite(control, field{"auxiliary_fraction", q.AuxiliaryFraction}); err != nil {
		return err
	}
	if q.AuxiliaryFraction != 0 {
		if !allowAux {
			return unsupported(control, "auxiliary_fraction", "%s control has no commanded auxiliary flow", control)
		}
		if !q.Entry.suppliesPower() {
			return unsupported(control, "auxiliary_fraction",
				"blow-off is solved, not supplied, when the query is %s", q.Entry)
		}
	}
	return nil
}

// attribute stamps control onto a model error raised by a shared helper.
func attribute(control Control, err error) error {
	var me *Error
	if errors.As(err, &me) && me.Control == "" {
		cp := *me
		cp.Control = control
		return &cp
	}
	return err
}

// checkPositive rejects non-positive calibration values.
func checkPositive(control Control, fields ...field) error {
	for _, f := range fields {
		if f.v <= 0 {
			return calibrationError(control, f.name, "must be positive, got %v", f.v)
		}
	}
	return nil
}

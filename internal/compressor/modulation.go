package compressor

// ModulationUnload models a machine that modulates its inlet above a
// transition point and unloads below it.
//
// Two lines share the transition point (transitionPower, unloadFlow):
//
//	unload:     (idlePower, 0)              -> (transitionPower, unloadFlow)
//	modulation: (transitionPower, unloadFlow) -> (ratedPower, transitionFlow)
//
// A query at or above the transition point is resolved on the modulation line.
// Because both lines are anchored at the transition point, a query exactly on
// it returns the transition point whichever line evaluates it.
//
// On the unload segment Auxiliary carries the flow shed by unloading, measured
// from the unload flow.
type ModulationUnload struct {
	rated          CalibrationPoint
	idlePower      float64
	transition     CalibrationPoint
	transitionFlow float64
	unload         PowerFlowLine
	modulation     PowerFlowLine
	convention     ElectricalConvention
}

// NewModulationUnload calibrates a modulation-with-unload machine.
//
// transitionFlow is the rated-pressure flow where modulation stops;
// transitionPower and unloadFlow locate the point where the unload segment
// begins. Requires idlePower < transitionPower < ratedPower and
// 0 < unloadFlow < transitionFlow.
func NewModulationUnload(ratedPower, ratedFlow, idlePower, transitionFlow, transitionPower, unloadFlow float64, opts ...Option) (*ModulationUnload, error) {
	const control = ControlModulationUnload

	if err := requireFinite(control,
		field{"rated_power", ratedPower},
		field{"rated_flow", ratedFlow},
		field{"idle_power", idlePower},
		field{"transition_flow", transitionFlow},
		field{"transition_power", transitionPower},
		field{"unload_flow", unloadFlow},
	); err != nil {
		return nil, err
	}
	if err := checkPositive(control,
		field{"rated_power", ratedPower},
		field{"rated_flow", ratedFlow},
		field{"transition_flow", transitionFlow},
		field{"transition_power", transitionPower},
		field{"unload_flow", unloadFlow},
	); err != nil {
		return nil, err
	}
	switch {
	case idlePower < 0:
		return nil, calibrationError(control, "idle_power", "must not be negative, got %v", idlePower)
	case transitionPower <= idlePower:
		return nil, calibrationError(control, "transition_power",
			"must exceed idle power (%v <= %v)", transitionPower, idlePower)
	case ratedPower <= transitionPower:
		return nil, calibrationError(control, "rated_power",
			"must exceed transition power (%v <= %v)", ratedPower, transitionPower)
	case transitionFlow <= unloadFlow:
		return nil, calibrationError(control, "transition_flow",
			"must exceed unload flow (%v <= %v)", transitionFlow, unloadFlow)
	}

	o, err := buildOptions(control, opts)
	if err != nil {
		return nil, err
	}

	rated := CalibrationPoint{Power: ratedPower, Flow: ratedFlow}
	transition := CalibrationPoint{Power: transitionPower, Flow: unloadFlow}

	unload, err := NewPowerFlowLine(CalibrationPoint{Power: idlePower}, transition)
	if err != nil {
		return nil, attribute(control, err)
	}
	modulation, err := NewPowerFlowLine(transition, CalibrationPoint{Power: ratedPower, Flow: transitionFlow})
	if err != nil {
		return nil, attribute(control, err)
	}

	return &ModulationUnload{
		rated:          rated,
		idlePower:      idlePower,
		transition:     transition,
		transitionFlow: transitionFlow,
		unload:         unload,
		modulation:     modulation,
		convention:     o.convention,
	}, nil
}

func (*ModulationUnload) strategy() {}

// Control returns ControlModulationUnload.
func (*ModulationUnload) Control() Control { return ControlModulationUnload }

// Rated returns the full-load calibration point.
func (s *ModulationUnload) Rated() CalibrationPoint { return s.rated }

// IdlePower returns the no-load power.
func (s *ModulationUnload) IdlePower() float64 { return s.idlePower }

// Transition returns the point separating the two segments.
func (s *ModulationUnload) Transition() CalibrationPoint { return s.transition }

// TransitionFlow returns the flow at rated power on the modulation line.
func (s *ModulationUnload) TransitionFlow() float64 { return s.transitionFlow }

// Convention returns the electrical convention.
func (s *ModulationUnload) Convention() ElectricalConvention { return s.convention }

// CalculateFromPowerFraction evaluates a commanded fraction of rated power.
func (s *ModulationUnload) CalculateFromPowerFraction(powerFraction float64) (OperatingPoint, error) {
	if err := requireFinite(ControlModulationUnload, field{"power_fraction", powerFraction}); err != nil {
		return OperatingPoint{}, err
	}
	return s.solve(knownPower(powerFraction * s.rated.Power))
}

// CalculateFromFlowFraction evaluates a delivered-flow fraction of the rated flow.
func (s *ModulationUnload) CalculateFromFlowFraction(flowFraction float64) (OperatingPoint, error) {
	if err := requireFinite(ControlModulationUnload, field{"flow_fraction", flowFraction}); err != nil {
		return OperatingPoint{}, err
	}
	return s.solve(knownFlow(flowFraction * s.rated.Flow))
}

// CalculateFromMeasuredPower evaluates a measured power. The segment is
// chosen by comparing it with the transition power.
func (s *ModulationUnload) CalculateFromMeasuredPower(power float64) (OperatingPoint, error) {
	if err := requireFinite(ControlModulationUnload, field{"power", power}); err != nil {
		return OperatingPoint{}, err
	}
	return s.solve(knownPower(power))
}

// CalculateFromMeasuredFlow evaluates a measured delivered flow. The segment
// is chosen by comparing it with the unload flow.
func (s *ModulationUnload) CalculateFromMeasuredFlow(flow float64) (OperatingPoint, error) {
	if err := requireFinite(ControlModulationUnload, field{"flow", flow}); err != nil {
		return OperatingPoint{}, err
	}
	return s.solve(knownFlow(flow))
}

// CalculateFromElectrical converts a meter reading to power and evaluates it
// as a measured power.
func (s *ModulationUnload) CalculateFromElectrical(r ElectricalReading) (OperatingPoint, error) {
	p, err := s.convention.Power(r, s.rated.Power)
	if err != nil {
		return OperatingPoint{}, attribute(ControlModulationUnload, err)
	}
	return s.CalculateFromMeasuredPower(p)
}

// Evaluate dispatches q to the matching entry point.
func (s *ModulationUnload) Evaluate(q Query) (OperatingPoint, error) {
	if err := checkQuery(ControlModulationUnload, q, false); err != nil {
		return OperatingPoint{}, err
	}
	switch q.Entry {
	case EntryPowerFraction:
		return s.CalculateFromPowerFraction(q.Value)
	case EntryFlowFraction:
		return s.CalculateFromFlowFraction(q.Value)
	case EntryMeasuredPower:
		return s.CalculateFromMeasuredPower(q.Value)
	case EntryMeasuredFlow:
		return s.CalculateFromMeasuredFlow(q.Value)
	default:
		return s.CalculateFromElectrical(q.Reading)
	}
}

// AdjustDischargePressure returns a copy whose rated flow is the fitted
// capacity at adj.ActualPressure and whose transition flow is the fitted
// capacity at adj.TransitionPressure, which is required here.
func (s *ModulationUnload) AdjustDischargePressure(adj DischargeAdjustment) (*ModulationUnload, error) {
	const control = ControlModulationUnload

	if adj.TransitionPressure == nil {
		return nil, calibrationError(control, "transition_pressure",
			"modulation-with-unload recalibration needs the transition pressure")
	}
	if err := requireFinite(control, field{"transition_pressure", *adj.TransitionPressure}); err != nil {
		return nil, err
	}
	curve, err := adj.fit()
	if err != nil {
		return nil, attribute(control, err)
	}

	return NewModulationUnload(
		s.rated.Power,
		curve.CapacityAt(adj.ActualPressure),
		s.idlePower,
		curve.CapacityAt(*adj.TransitionPressure),
		s.transition.Power,
		s.transition.Flow,
		WithConvention(s.convention),
	)
}

// Recalibrate implements Strategy.
func (s *ModulationUnload) Recalibrate(adj DischargeAdjustment) (Strategy, error) {
	adjusted, err := s.AdjustDischargePressure(adj)
	if err != nil {
		return nil, err
	}
	return adjusted, nil
}

func (s *ModulationUnload) solve(k known) (OperatingPoint, error) {
	var power, flow float64
	onModulation := false

	if k.power {
		power = k.value
		onModulation = power >= s.transition.Power
		if onModulation {
			flow = s.modulation.FlowAt(power)
		} else {
			flow = s.unload.FlowAt(power)
		}
	} else {
		flow = k.value
		onModulation = flow >= s.transition.Flow
		if onModulation {
			power = s.modulation.PowerAt(flow)
		} else {
			power = s.unload.PowerAt(flow)
		}
	}

	if onModulation {
		return finish(ControlModulationUnload, s.rated, power, flow, nil, RegimeModulation)
	}
	shed := s.transition.Flow - flow
	return finish(ControlModulationUnload, s.rated, power, flow,
		&Auxiliary{Flow: shed, Fraction: shed / s.rated.Flow}, RegimeUnload)
}

package compressor

// LoadUnload models a machine that cycles between full load and idle. Averaged
// over a cycle, power and delivered flow move together along one line from the
// idle point (idlePower, 0) to the rated point:
//
//	power = idlePower + (ratedPower - idlePower) * flowFraction
//	flow  = flowFraction * ratedFlow
type LoadUnload struct {
	rated      CalibrationPoint
	idlePower  float64
	line       PowerFlowLine
	convention ElectricalConvention
}

// NewLoadUnload calibrates a load/unload machine.
func NewLoadUnload(ratedPower, ratedFlow, idlePower float64, opts ...Option) (*LoadUnload, error) {
	const control = ControlLoadUnload

	if err := requireFinite(control,
		field{"rated_power", ratedPower},
		field{"rated_flow", ratedFlow},
		field{"idle_power", idlePower},
	); err != nil {
		return nil, err
	}
	if err := checkPositive(control,
		field{"rated_power", ratedPower},
		field{"rated_flow", ratedFlow},
	); err != nil {
		return nil, err
	}
	if idlePower < 0 {
		return nil, calibrationError(control, "idle_power", "must not be negative, got %v", idlePower)
	}
	if ratedPower <= idlePower {
		return nil, calibrationError(control, "rated_power",
			"must exceed idle power (%v <= %v)", ratedPower, idlePower)
	}

	o, err := buildOptions(control, opts)
	if err != nil {
		return nil, err
	}

	rated := CalibrationPoint{Power: ratedPower, Flow: ratedFlow}
	line, err := NewPowerFlowLine(CalibrationPoint{Power: idlePower}, rated)
	if err != nil {
		return nil, attribute(control, err)
	}

	return &LoadUnload{rated: rated, idlePower: idlePower, line: line, convention: o.convention}, nil
}

func (*LoadUnload) strategy() {}

// Control returns ControlLoadUnload.
func (*LoadUnload) Control() Control { return ControlLoadUnload }

// Rated returns the full-load calibration point.
func (s *LoadUnload) Rated() CalibrationPoint { return s.rated }

// IdlePower returns the no-load power.
func (s *LoadUnload) IdlePower() float64 { return s.idlePower }

// Convention returns the electrical convention.
func (s *LoadUnload) Convention() ElectricalConvention { return s.convention }

// CalculateFromPowerFraction evaluates a commanded fraction of rated power.
func (s *LoadUnload) CalculateFromPowerFraction(powerFraction float64) (OperatingPoint, error) {
	if err := requireFinite(ControlLoadUnload, field{"power_fraction", powerFraction}); err != nil {
		return OperatingPoint{}, err
	}
	return s.solve(knownPower(powerFraction * s.rated.Power))
}

// CalculateFromFlowFraction evaluates a delivered-flow fraction of the rated flow.
func (s *LoadUnload) CalculateFromFlowFraction(flowFraction float64) (OperatingPoint, error) {
	if err := requireFinite(ControlLoadUnload, field{"flow_fraction", flowFraction}); err != nil {
		return OperatingPoint{}, err
	}
	return s.solve(knownFlow(flowFraction * s.rated.Flow))
}

// CalculateFromMeasuredPower evaluates a measured average power.
func (s *LoadUnload) CalculateFromMeasuredPower(power float64) (OperatingPoint, error) {
	if err := requireFinite(ControlLoadUnload, field{"power", power}); err != nil {
		return OperatingPoint{}, err
	}
	return s.solve(knownPower(power))
}

// CalculateFromMeasuredFlow evaluates a measured delivered flow.
func (s *LoadUnload) CalculateFromMeasuredFlow(flow float64) (OperatingPoint, error) {
	if err := requireFinite(ControlLoadUnload, field{"flow", flow}); err != nil {
		return OperatingPoint{}, err
	}
	return s.solve(knownFlow(flow))
}

// CalculateFromElectrical converts a meter reading to power and evaluates it
// as a measured power.
func (s *LoadUnload) CalculateFromElectrical(r ElectricalReading) (OperatingPoint, error) {
	p, err := s.convention.Power(r, s.rated.Power)
	if err != nil {
		return OperatingPoint{}, attribute(ControlLoadUnload, err)
	}
	return s.CalculateFromMeasuredPower(p)
}

// Evaluate dispatches q to the matching entry point. A non-zero
// AuxiliaryFraction is rejected: load/unload has no blow-off.
func (s *LoadUnload) Evaluate(q Query) (OperatingPoint, error) {
	if err := checkQuery(ControlLoadUnload, q, false); err != nil {
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
// capacity at adj.ActualPressure.
func (s *LoadUnload) AdjustDischargePressure(adj DischargeAdjustment) (*LoadUnload, error) {
	curve, err := adj.fit()
	if err != nil {
		return nil, attribute(ControlLoadUnload, err)
	}
	return NewLoadUnload(s.rated.Power, curve.CapacityAt(adj.ActualPressure), s.idlePower,
		WithConvention(s.convention))
}

// Recalibrate implements Strategy.
func (s *LoadUnload) Recalibrate(adj DischargeAdjustment) (Strategy, error) {
	adjusted, err := s.AdjustDischargePressure(adj)
	if err != nil {
		return nil, err
	}
	return adjusted, nil
}

func (s *LoadUnload) solve(k known) (OperatingPoint, error) {
	if k.power {
		return finish(ControlLoadUnload, s.rated, k.value, s.line.FlowAt(k.value), nil, RegimeLoadUnload)
	}
	return finish(ControlLoadUnload, s.rated, s.line.PowerAt(k.value), k.value, nil, RegimeLoadUnload)
}

package compressor

// BlowOff models inlet throttling down to a surge floor with a blow-off valve
// venting whatever the plant does not take.
//
// Internal (pre-vent) flow follows the line from the floor point to the rated
// point. Two regimes resolve a query:
//
//   - throttled: power at or above the floor, internal flow on the line
//   - floor-pinned: the machine cannot go below the floor without surging, so
//     internal flow is held at the floor flow and the shortfall between floor
//     flow and delivered flow is vented
//
// Governing equations: the power/flow line and delivered = internal - blow-off.
type BlowOff struct {
	rated      CalibrationPoint
	floor      CalibrationPoint
	line       PowerFlowLine
	convention ElectricalConvention
}

// NewBlowOff calibrates a blow-off machine from its rated (full-load) point and
// its floor (minimum stable power before surge) point.
func NewBlowOff(ratedPower, ratedFlow, floorPower, floorFlow float64, opts ...Option) (*BlowOff, error) {
	const control = ControlBlowOff

	if err := requireFinite(control,
		field{"rated_power", ratedPower},
		field{"rated_flow", ratedFlow},
		field{"floor_power", floorPower},
		field{"floor_flow", floorFlow},
	); err != nil {
		return nil, err
	}
	if err := checkPositive(control,
		field{"rated_power", ratedPower},
		field{"rated_flow", ratedFlow},
		field{"floor_power", floorPower},
		field{"floor_flow", floorFlow},
	); err != nil {
		return nil, err
	}
	if ratedPower <= floorPower {
		return nil, calibrationError(control, "rated_power",
			"must exceed floor power (%v <= %v)", ratedPower, floorPower)
	}
	if ratedFlow <= floorFlow {
		return nil, calibrationError(control, "rated_flow",
			"must exceed floor flow (%v <= %v)", ratedFlow, floorFlow)
	}

	o, err := buildOptions(control, opts)
	if err != nil {
		return nil, err
	}

	rated := CalibrationPoint{Power: ratedPower, Flow: ratedFlow}
	floor := CalibrationPoint{Power: floorPower, Flow: floorFlow}
	line, err := NewPowerFlowLine(floor, rated)
	if err != nil {
		return nil, attribute(control, err)
	}

	return &BlowOff{
		rated:      rated,
		floor:      floor,
		line:       line,
		convention: o.convention,
	}, nil
}

func (*BlowOff) strategy() {}

// Control returns ControlBlowOff.
func (*BlowOff) Control() Control { return ControlBlowOff }

// Rated returns the full-load calibration point.
func (s *BlowOff) Rated() CalibrationPoint { return s.rated }

// Floor returns the surge-floor calibration point.
func (s *BlowOff) Floor() CalibrationPoint { return s.floor }

// Convention returns the electrical convention.
func (s *BlowOff) Convention() ElectricalConvention { return s.convention }

// CalculateFromPowerFraction evaluates a commanded power fraction with a
// commanded blow-off fraction.
func (s *BlowOff) CalculateFromPowerFraction(powerFraction, blowOffFraction float64) (OperatingPoint, error) {
	if err := requireFinite(ControlBlowOff,
		field{"power_fraction", powerFraction},
		field{"blow_off_fraction", blowOffFraction},
	); err != nil {
		return OperatingPoint{}, err
	}
	return s.solve(knownPower(powerFraction*s.rated.Power), blowOffFraction)
}

// CalculateFromFlowFraction evaluates a delivered-flow fraction. Blow-off is
// solved, not supplied.
func (s *BlowOff) CalculateFromFlowFraction(flowFraction float64) (OperatingPoint, error) {
	if err := requireFinite(ControlBlowOff, field{"flow_fraction", flowFraction}); err != nil {
		return OperatingPoint{}, err
	}
	return s.solve(knownFlow(flowFraction*s.rated.Flow), 0)
}

// CalculateFromMeasuredPower evaluates a measured power with a commanded
// blow-off fraction.
func (s *BlowOff) CalculateFromMeasuredPower(power, blowOffFraction float64) (OperatingPoint, error) {
	if err := requireFinite(ControlBlowOff,
		field{"power", power},
		field{"blow_off_fraction", blowOffFraction},
	); err != nil {
		return OperatingPoint{}, err
	}
	return s.solve(knownPower(power), blowOffFraction)
}

// CalculateFromMeasuredFlow evaluates a measured delivered flow.
func (s *BlowOff) CalculateFromMeasuredFlow(flow float64) (OperatingPoint, error) {
	if err := requireFinite(ControlBlowOff, field{"flow", flow}); err != nil {
		return OperatingPoint{}, err
	}
	return s.solve(knownFlow(flow), 0)
}

// CalculateFromElectrical converts a meter reading to power and evaluates it
// as a measured power.
func (s *BlowOff) CalculateFromElectrical(r ElectricalReading, blowOffFraction float64) (OperatingPoint, error) {
	p, err := s.convention.Power(r, s.rated.Power)
	if err != nil {
		return OperatingPoint{}, attribute(ControlBlowOff, err)
	}
	return s.CalculateFromMeasuredPower(p, blowOffFraction)
}

// Evaluate dispatches q to the matching entry point.
func (s *BlowOff) Evaluate(q Query) (OperatingPoint, error) {
	if err := checkQuery(ControlBlowOff, q, true); err != nil {
		return OperatingPoint{}, err
	}
	switch q.Entry {
	case EntryPowerFraction:
		return s.CalculateFromPowerFraction(q.Value, q.AuxiliaryFraction)
	case EntryFlowFraction:
		return s.CalculateFromFlowFraction(q.Value)
	case EntryMeasuredPower:
		return s.CalculateFromMeasuredPower(q.Value, q.AuxiliaryFraction)
	case EntryMeasuredFlow:
		return s.CalculateFromMeasuredFlow(q.Value)
	default:
		return s.CalculateFromElectrical(q.Reading, q.AuxiliaryFraction)
	}
}

// AdjustDischargePressure returns a copy whose rated flow is the fitted
// capacity at adj.ActualPressure. The floor point is unchanged.
func (s *BlowOff) AdjustDischargePressure(adj DischargeAdjustment) (*BlowOff, error) {
	curve, err := adj.fit()
	if err != nil {
		return nil, attribute(ControlBlowOff, err)
	}
	ratedFlow := curve.CapacityAt(adj.ActualPressure)
	return NewBlowOff(s.rated.Power, ratedFlow, s.floor.Power, s.floor.Flow, WithConvention(s.convention))
}

// Recalibrate implements Strategy.
func (s *BlowOff) Recalibrate(adj DischargeAdjustment) (Strategy, error) {
	adjusted, err := s.AdjustDischargePressure(adj)
	if err != nil {
		return nil, err
	}
	return adjusted, nil
}

// solve resolves the two governing equations for the unknowns left by k.
func (s *BlowOff) solve(k known, blowOffFraction float64) (OperatingPoint, error) {
	if k.power {
		internal, regime := s.floor.Flow, RegimeFloorPinned
		if k.value >= s.floor.Power {
			internal, regime = s.line.FlowAt(k.value), RegimeThrottled
		}
		vented := blowOffFraction * s.rated.Flow
		return finish(ControlBlowOff, s.rated, k.value, internal-vented,
			&Auxiliary{Flow: vented, Fraction: blowOffFraction}, regime)
	}

	delivered := k.value
	if delivered >= s.floor.Flow {
		return finish(ControlBlowOff, s.rated, s.line.PowerAt(delivered), delivered,
			&Auxiliary{}, RegimeThrottled)
	}

	// Below the floor the valve takes up the whole deficit.
	vented := s.floor.Flow - delivered
	return finish(ControlBlowOff, s.rated, s.floor.Power, delivered,
		&Auxiliary{Flow: vented, Fraction: vented / s.rated.Flow}, RegimeFloorPinned)
}

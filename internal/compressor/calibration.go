package compressor

import "math"

// CalibrationPoint is one reference operating condition of a machine.
// It is a value: recalibration replaces points, it never edits them.
type CalibrationPoint struct {
	Power float64 `json:"power"`
	Flow  float64 `json:"flow"`
}

// finite reports whether both coordinates are finite numbers.
func (p CalibrationPoint) finite() bool {
	return isFinite(p.Power) && isFinite(p.Flow)
}

// PowerFlowLine is the affine power/flow relation through two calibration
// points. It is evaluated in both directions with the same coefficient and
// extrapolates freely outside [low, high]: an operating point below the low
// reference is a real condition, not an error.
type PowerFlowLine struct {
	low   CalibrationPoint
	high  CalibrationPoint
	slope float64 // flow per unit power
}

// NewPowerFlowLine builds the line through low and high.
//
// Requires high.Power > low.Power. The flows must differ as well, otherwise
// PowerAt would divide by zero.
func NewPowerFlowLine(low, high CalibrationPoint) (PowerFlowLine, error) {
	if !low.finite() {
		return PowerFlowLine{}, calibrationError("", "low", "calibration point %+v is not finite", low)
	}
	if !high.finite() {
		return PowerFlowLine{}, calibrationError("", "high", "calibration point %+v is not finite", high)
	}
	if high.Power <= low.Power {
		return PowerFlowLine{}, calibrationError("", "high.power",
			"must exceed low power (%v <= %v)", high.Power, low.Power)
	}
	if high.Flow == low.Flow {
		return PowerFlowLine{}, calibrationError("", "high.flow",
			"must differ from low flow (%v)", low.Flow)
	}

	return PowerFlowLine{
		low:   low,
		high:  high,
		slope: (high.Flow - low.Flow) / (high.Power - low.Power),
	}, nil
}

// FlowAt returns the flow on the line at the given power.
func (l PowerFlowLine) FlowAt(power float64) float64 {
	return l.low.Flow + (power-l.low.Power)*l.slope
}

// PowerAt returns the power on the line at the given flow.
func (l PowerFlowLine) PowerAt(flow float64) float64 {
	return l.low.Power + (flow-l.low.Flow)/l.slope
}

// Slope returns the flow-per-power coefficient.
func (l PowerFlowLine) Slope() float64 { return l.slope }

// Low returns the lower calibration point.
func (l PowerFlowLine) Low() CalibrationPoint { return l.low }

// High returns the upper calibration point.
func (l PowerFlowLine) High() CalibrationPoint { return l.high }

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

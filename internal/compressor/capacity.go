package compressor

import "sort"

// CapacityCurve is a quadratic capacity(pressure) relation fitted to a
// discharge-pressure table.
//
// A three-point table is interpolated exactly in Lagrange form, so evaluating
// the curve at a table pressure returns that row's capacity bit for bit.
// Larger tables are fitted by least squares.
type CapacityCurve struct {
	exact bool
	xs    [3]float64
	ys    [3]float64

	// least-squares form: a + b*(p-centre) + c*(p-centre)^2
	centre  float64
	a, b, c float64
}

// FitCapacityCurve fits a quadratic through (pressures[i], capacities[i]).
//
// Requires at least three rows and at least three distinct pressures.
func FitCapacityCurve(pressures, capacities []float64) (CapacityCurve, error) {
	if len(pressures) != len(capacities) {
		return CapacityCurve{}, tableError("capacities",
			"have %d capacities for %d pressures", len(capacities), len(pressures))
	}
	if len(pressures) < 3 {
		return CapacityCurve{}, tableError("pressures",
			"quadratic fit needs at least 3 points, got %d", len(pressures))
	}
	for i := range pressures {
		if !isFinite(pressures[i]) {
			return CapacityCurve{}, nonFiniteInput("", "pressures", pressures[i])
		}
		if !isFinite(capacities[i]) {
			return CapacityCurve{}, nonFiniteInput("", "capacities", capacities[i])
		}
	}
	if n := distinct(pressures); n < 3 {
		return CapacityCurve{}, tableError("pressures",
			"quadratic fit needs at least 3 distinct pressures, got %d", n)
	}

	if len(pressures) == 3 {
		var cc CapacityCurve
		cc.exact = true
		copy(cc.xs[:], pressures)
		copy(cc.ys[:], capacities)
		return cc, nil
	}
	return leastSquares(pressures, capacities)
}

// CapacityAt evaluates the curve at a discharge pressure.
func (cc CapacityCurve) CapacityAt(pressure float64) float64 {
	if cc.exact {
		x, y := cc.xs, cc.ys
		l0 := (pressure - x[1]) * (pressure - x[2]) / ((x[0] - x[1]) * (x[0] - x[2]))
		l1 := (pressure - x[0]) * (pressure - x[2]) / ((x[1] - x[0]) * (x[1] - x[2]))
		l2 := (pressure - x[0]) * (pressure - x[1]) / ((x[2] - x[0]) * (x[2] - x[1]))
		return y[0]*l0 + y[1]*l1 + y[2]*l2
	}
	d := pressure - cc.centre
	return cc.a + d*(cc.b+d*cc.c)
}

// Coefficients returns the curve as capacity = a + b*p + c*p^2.
func (cc CapacityCurve) Coefficients() (a, b, c float64) {
	if cc.exact {
		x, y := cc.xs, cc.ys
		den := (x[0] - x[1]) * (x[0] - x[2]) * (x[1] - x[2])
		c = (x[2]*(y[1]-y[0]) + x[1]*(y[0]-y[2]) + x[0]*(y[2]-y[1])) / den
		b = (x[2]*x[2]*(y[0]-y[1]) + x[1]*x[1]*(y[2]-y[0]) + x[0]*x[0]*(y[1]-y[2])) / den
		a = (x[1]*x[2]*(x[1]-x[2])*y[0] + x[0]*x[2]*(x[2]-x[0])*y[1] + x[0]*x[1]*(x[0]-x[1])*y[2]) / den
		return a, b, c
	}
	m := cc.centre
	return cc.a - cc.b*m + cc.c*m*m, cc.b - 2*cc.c*m, cc.c
}

// leastSquares solves the normal equations on centred pressures by Cramer's rule.
func leastSquares(pressures, capacities []float64) (CapacityCurve, error) {
	n := float64(len(pressures))
	var centre float64
	for _, p := range pressures {
		centre += p
	}
	centre /= n

	var s1, s2, s3, s4, t0, t1, t2 float64
	for i, p := range pressures {
		d := p - centre
		d2 := d * d
		y := capacities[i]
		s1 += d
		s2 += d2
		s3 += d2 * d
		s4 += d2 * d2
		t0 += y
		t1 += d * y
		t2 += d2 * y
	}

	det := det3(
		n, s1, s2,
		s1, s2, s3,
		s2, s3, s4,
	)
	if det == 0 || !isFinite(det) {
		return CapacityCurve{}, tableError("pressures", "normal equations are singular")
	}

	cc := CapacityCurve{centre: centre}
	cc.a = det3(
		t0, s1, s2,
		t1, s2, s3,
		t2, s3, s4,
	) / det
	cc.b = det3(
		n, t0, s2,
		s1, t1, s3,
		s2, t2, s4,
	) / det
	cc.c = det3(
		n, s1, t0,
		s1, s2, t1,
		s2, s3, t2,
	) / det

	if !isFinite(cc.a) || !isFinite(cc.b) || !isFinite(cc.c) {
		return CapacityCurve{}, &Error{
			Code:    ErrCodeNonFiniteResult,
			Field:   "capacities",
			Message: "quadratic fit produced a non-finite coefficient",
		}
	}
	return cc, nil
}

func det3(a, b, c, d, e, f, g, h, i float64) float64 {
	return a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
}

func distinct(vs []float64) int {
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	n := 0
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			n++
		}
	}
	return n
}

// DischargeAdjustment re-anchors a strategy to the plant's discharge pressure.
//
// Capacities are in the same flow unit as the rated flow. TransitionPressure
// is only used (and required) by ModulationUnload.
type DischargeAdjustment struct {
	Pressures          []float64 `json:"pressures" yaml:"pressures" toml:"pressures"`
	Capacities         []float64 `json:"capacities" yaml:"capacities" toml:"capacities"`
	ActualPressure     float64   `json:"actual_pressure" yaml:"actual_pressure" toml:"actual_pressure"`
	TransitionPressure *float64  `json:"transition_pressure,omitempty" yaml:"transition_pressure,omitempty" toml:"transition_pressure,omitempty"`
}

func (adj DischargeAdjustment) fit() (CapacityCurve, error) {
	if !isFinite(adj.ActualPressure) {
		return CapacityCurve{}, nonFiniteInput("", "actual_pressure", adj.ActualPressure)
	}
	return FitCapacityCurve(adj.Pressures, adj.Capacities)
}

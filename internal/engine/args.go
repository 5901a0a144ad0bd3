package engine

import (
	"fmt"
	"math"

	"github.com/roach88/aircurve/internal/compressor"
	"github.com/roach88/aircurve/internal/ir"
)

// Non-finite query values cannot be written as JSON numbers. They are
// recorded as these strings so a rejected query still has a faithful record.
const (
	argNaN    = "NaN"
	argPosInf = "+Inf"
	argNegInf = "-Inf"
)

// QueryArgs encodes the numeric part of a query for the evaluation record.
//
// Electrical queries record voltage, current and power_factor; every other
// entry records value. auxiliary_fraction is recorded only when non-zero.
func QueryArgs(q compressor.Query) ir.IRObject {
	args := ir.IRObject{}
	if q.Entry == compressor.EntryElectrical {
		args["voltage"] = argValue(q.Reading.Voltage)
		args["current"] = argValue(q.Reading.Current)
		args["power_factor"] = argValue(q.Reading.PowerFactor)
	} else {
		args["value"] = argValue(q.Value)
	}
	if q.AuxiliaryFraction != 0 {
		args["auxiliary_fraction"] = argValue(q.AuxiliaryFraction)
	}
	return args
}

func argValue(f float64) ir.IRValue {
	switch {
	case math.IsNaN(f):
		return ir.IRString(argNaN)
	case math.IsInf(f, 1):
		return ir.IRString(argPosInf)
	case math.IsInf(f, -1):
		return ir.IRString(argNegInf)
	default:
		return ir.IRFloat(f)
	}
}

// QueryFromArgs rebuilds the query recorded by QueryArgs.
func QueryFromArgs(entry string, args ir.IRObject) (compressor.Query, error) {
	e, err := compressor.ParseEntry(entry)
	if err != nil {
		return compressor.Query{}, err
	}

	q := compressor.Query{Entry: e}
	if e == compressor.EntryElectrical {
		if q.Reading.Voltage, err = argFloat(args, "voltage"); err != nil {
			return compressor.Query{}, err
		}
		if q.Reading.Current, err = argFloat(args, "current"); err != nil {
			return compressor.Query{}, err
		}
		if q.Reading.PowerFactor, err = argFloat(args, "power_factor"); err != nil {
			return compressor.Query{}, err
		}
	} else if q.Value, err = argFloat(args, "value"); err != nil {
		return compressor.Query{}, err
	}

	if _, ok := args["auxiliary_fraction"]; ok {
		if q.AuxiliaryFraction, err = argFloat(args, "auxiliary_fraction"); err != nil {
			return compressor.Query{}, err
		}
	}
	return q, nil
}

func argFloat(args ir.IRObject, key string) (float64, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing arg %q", key)
	}
	switch val := v.(type) {
	case ir.IRFloat:
		return float64(val), nil
	case ir.IRInt:
		return float64(val), nil
	case ir.IRString:
		switch string(val) {
		case argNaN:
			return math.NaN(), nil
		case argPosInf:
			return math.Inf(1), nil
		case argNegInf:
			return math.Inf(-1), nil
		}
	}
	return 0, fmt.Errorf("arg %q: unsupported value %v", key, v)
}

// PointResult encodes an operating point for the evaluation record.
// Field names match the JSON form of compressor.OperatingPoint.
func PointResult(op compressor.OperatingPoint) ir.IRObject {
	res := ir.IRObject{
		"power":          ir.IRFloat(op.Power),
		"power_fraction": ir.IRFloat(op.PowerFraction),
		"flow":           ir.IRFloat(op.Flow),
		"flow_fraction":  ir.IRFloat(op.FlowFraction),
		"regime":         ir.IRString(op.Regime),
	}
	if op.Auxiliary != nil {
		res["auxiliary"] = ir.IRObject{
			"flow":     ir.IRFloat(op.Auxiliary.Flow),
			"fraction": ir.IRFloat(op.Auxiliary.Fraction),
		}
	}
	return res
}

// PointFromResult decodes a result written by PointResult.
func PointFromResult(res ir.IRObject) (compressor.OperatingPoint, error) {
	var op compressor.OperatingPoint
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"power", &op.Power},
		{"power_fraction", &op.PowerFraction},
		{"flow", &op.Flow},
		{"flow_fraction", &op.FlowFraction},
	} {
		v, ok := res.GetFloat(f.key)
		if !ok {
			return compressor.OperatingPoint{}, fmt.Errorf("result missing %q", f.key)
		}
		*f.dst = v
	}

	regime, ok := res.GetString("regime")
	if !ok {
		return compressor.OperatingPoint{}, fmt.Errorf("result missing %q", "regime")
	}
	op.Regime = compressor.Regime(regime)

	if aux, ok := res.GetObject("auxiliary"); ok {
		flow, okFlow := aux.GetFloat("flow")
		frac, okFrac := aux.GetFloat("fraction")
		if !okFlow || !okFrac {
			return compressor.OperatingPoint{}, fmt.Errorf("result auxiliary is incomplete")
		}
		op.Auxiliary = &compressor.Auxiliary{Flow: flow, Fraction: frac}
	}
	return op, nil
}

package compiler

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/aircurve/internal/compressor"
	"github.com/roach88/aircurve/internal/ir"
)

// machineFields are the fields a machine definition may declare.
var machineFields = []string{"description", "control", "calibration", "electrical_factor", "electrical_basis", "recalibration"}

// recalibrationFields are the fields a recalibration block may declare.
var recalibrationFields = []string{"pressures", "capacities", "actual_pressure", "transition_pressure"}

// CompileMachine parses a CUE value into a MachineSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the machine struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`machine: centac: { control: "blow_off", ... }`)
//	spec, err := CompileMachine(v.LookupPath(cue.ParsePath("machine.centac")))
//
// Compilation checks structure: required fields, field kinds and the
// calibration names the control needs. Whether the numbers describe a real
// machine is left to Validate.
func CompileMachine(v cue.Value) (*ir.MachineSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{Field: "machine", Message: "machine must be a struct", Pos: v.Pos()}
	}

	spec := &ir.MachineSpec{Name: labelOf(v)}

	if err := rejectUnknown(v, machineFields, ""); err != nil {
		return nil, err
	}

	// description (optional)
	if d := v.LookupPath(cue.ParsePath("description")); d.Exists() {
		s, err := d.String()
		if err != nil {
			return nil, fieldError("description", d, err)
		}
		spec.Description = s
	}

	// control (required)
	controlVal := v.LookupPath(cue.ParsePath("control"))
	if !controlVal.Exists() {
		return nil, &CompileError{Field: "control", Message: "control is required", Pos: v.Pos()}
	}
	controlStr, err := controlVal.String()
	if err != nil {
		return nil, fieldError("control", controlVal, err)
	}
	control, err := compressor.ParseControl(controlStr)
	if err != nil {
		return nil, &CompileError{Field: "control", Message: err.Error(), Pos: controlVal.Pos()}
	}
	spec.Control = string(control)

	// calibration (required)
	spec.Calibration, err = parseCalibration(v, control)
	if err != nil {
		return nil, err
	}

	// electrical_factor (optional)
	if f := v.LookupPath(cue.ParsePath("electrical_factor")); f.Exists() {
		n, err := number("electrical_factor", f)
		if err != nil {
			return nil, err
		}
		spec.ElectricalFactor = &n
	}

	// electrical_basis (optional)
	if b := v.LookupPath(cue.ParsePath("electrical_basis")); b.Exists() {
		s, err := b.String()
		if err != nil {
			return nil, fieldError("electrical_basis", b, err)
		}
		if _, err := compressor.ParseBasis(s); err != nil {
			return nil, &CompileError{Field: "electrical_basis", Message: err.Error(), Pos: b.Pos()}
		}
		spec.ElectricalBasis = s
	}

	// recalibration (optional)
	if r := v.LookupPath(cue.ParsePath("recalibration")); r.Exists() {
		spec.Recalibration, err = parseRecalibration(r)
		if err != nil {
			return nil, err
		}
	}

	return spec, nil
}

// parseCalibration reads the calibration struct and checks its field names
// against the ones the control is built from.
func parseCalibration(v cue.Value, control compressor.Control) (map[string]float64, error) {
	calVal := v.LookupPath(cue.ParsePath("calibration"))
	if !calVal.Exists() {
		return nil, &CompileError{Field: "calibration", Message: "calibration is required", Pos: v.Pos()}
	}

	want := compressor.CalibrationFields(control)
	if err := rejectUnknown(calVal, want, "calibration."); err != nil {
		return nil, err
	}

	cal := make(map[string]float64, len(want))
	for _, name := range want {
		f := calVal.LookupPath(cue.MakePath(cue.Str(name)))
		if !f.Exists() {
			return nil, &CompileError{
				Field:   "calibration." + name,
				Message: fmt.Sprintf("%s control requires calibration.%s", control, name),
				Pos:     calVal.Pos(),
			}
		}
		n, err := number("calibration."+name, f)
		if err != nil {
			return nil, err
		}
		cal[name] = n
	}
	return cal, nil
}

func parseRecalibration(v cue.Value) (*ir.DischargeTable, error) {
	if err := rejectUnknown(v, recalibrationFields, "recalibration."); err != nil {
		return nil, err
	}

	t := &ir.DischargeTable{}
	var err error
	if t.Pressures, err = numberList(v, "pressures"); err != nil {
		return nil, err
	}
	if t.Capacities, err = numberList(v, "capacities"); err != nil {
		return nil, err
	}

	actual := v.LookupPath(cue.ParsePath("actual_pressure"))
	if !actual.Exists() {
		return nil, &CompileError{
			Field:   "recalibration.actual_pressure",
			Message: "actual_pressure is required",
			Pos:     v.Pos(),
		}
	}
	if t.ActualPressure, err = number("recalibration.actual_pressure", actual); err != nil {
		return nil, err
	}

	if tp := v.LookupPath(cue.ParsePath("transition_pressure")); tp.Exists() {
		p, err := number("recalibration.transition_pressure", tp)
		if err != nil {
			return nil, err
		}
		t.TransitionPressure = &p
	}
	return t, nil
}

func numberList(v cue.Value, name string) ([]float64, error) {
	field := "recalibration." + name
	lv := v.LookupPath(cue.ParsePath(name))
	if !lv.Exists() {
		return nil, &CompileError{Field: field, Message: name + " is required", Pos: v.Pos()}
	}
	iter, err := lv.List()
	if err != nil {
		return nil, fieldError(field, lv, err)
	}

	out := []float64{}
	for i := 0; iter.Next(); i++ {
		n, err := number(fmt.Sprintf("%s[%d]", field, i), iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// number reads a concrete int or float.
func number(field string, v cue.Value) (float64, error) {
	switch v.IncompleteKind() {
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
	default:
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("must be a number, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
	f, err := v.Float64()
	if err != nil {
		return 0, fieldError(field, v, err)
	}
	return f, nil
}

// rejectUnknown fails on the first regular field of v not listed in allowed.
func rejectUnknown(v cue.Value, allowed []string, prefix string) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := selectorName(iter.Selector())
		if !slices.Contains(allowed, name) {
			return &CompileError{
				Field:   prefix + name,
				Message: fmt.Sprintf("unknown field, expected one of %v", allowed),
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}

// labelOf returns the last path label of v, unquoted.
func labelOf(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	return selectorName(sels[len(sels)-1])
}

func selectorName(sel cue.Selector) string {
	if sel.LabelType() == cue.StringLabel {
		return sel.Unquoted()
	}
	return sel.String()
}

// fieldError attributes a CUE evaluation error to a field, keeping CUE's
// position when it has one.
func fieldError(field string, v cue.Value, err error) error {
	pos := v.Pos()
	if ps := errors.Positions(err); len(ps) > 0 {
		pos = ps[0]
	}
	return &CompileError{Field: field, Message: err.Error(), Pos: pos}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

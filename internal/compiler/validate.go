package compiler

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/aircurve/internal/compressor"
	"github.com/roach88/aircurve/internal/ir"
)

// Validation error codes (E200-E299)
const (
	// Definition shape (E200-E209)
	ErrUnknownControl       = "E201" // control is not one of the supported strategies
	ErrMissingCalibration   = "E202" // calibration field required by the control is absent
	ErrUnknownCalibration   = "E203" // calibration field the control doesn't use
	ErrDuplicateMachine     = "E204" // two definitions share a name
	ErrInvalidElectrical    = "E205" // electrical_factor not positive and finite, or unknown electrical_basis
	ErrMalformedCalibration = "E206" // numbers cannot describe a real machine

	// Recalibration (E210-E219)
	ErrRecalibrationTable      = "E210" // table cannot support a quadratic fit
	ErrRecalibrationTransition = "E211" // modulation recalibration without transition_pressure
	ErrRecalibrationResult     = "E212" // recalibrated machine is malformed
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Machine string `json:"machine,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	field := e.Field
	if e.Machine != "" {
		field = e.Machine + "." + e.Field
	}
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, field, e.Message)
}

// Validate checks that a compiled definition describes a buildable machine.
// Returns all errors found (does not fail-fast).
//
// Structural problems are reported without building anything. Once the
// structure is sound the strategy is built (and recalibrated) exactly as the
// engine would build it, so any calibration the engine would reject is
// reported here first.
func Validate(spec ir.MachineSpec) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Machine: spec.Name,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	control, err := compressor.ParseControl(spec.Control)
	if err != nil {
		add("control", ErrUnknownControl, "%v", err)
		return errs
	}

	want := compressor.CalibrationFields(control)
	for _, name := range want {
		if _, ok := spec.Calibration[name]; !ok {
			add("calibration."+name, ErrMissingCalibration, "%s control requires %s", control, name)
		}
	}
	for _, name := range spec.CalibrationKeys() {
		if !slices.Contains(want, name) {
			add("calibration."+name, ErrUnknownCalibration, "%s control has no %s", control, name)
		}
	}

	conv, err := compressor.NewConvention(spec.ElectricalFactor, spec.ElectricalBasis)
	if err != nil {
		field := "electrical_factor"
		var me *compressor.Error
		if errors.As(err, &me) && me.Field == "electrical.basis" {
			field = "electrical_basis"
		}
		add(field, ErrInvalidElectrical, "%s", modelMessage(err))
	}

	if t := spec.Recalibration; t != nil {
		errs = append(errs, validateTable(spec.Name, control, t)...)
	}

	if len(errs) > 0 {
		return errs
	}

	strategy, err := compressor.Build(control, spec.Calibration, compressor.WithConvention(conv))
	if err != nil {
		add(modelField(err, "calibration"), ErrMalformedCalibration, "%s", modelMessage(err))
		return errs
	}
	if t := spec.Recalibration; t != nil {
		adj := compressor.DischargeAdjustment{
			Pressures:          t.Pressures,
			Capacities:         t.Capacities,
			ActualPressure:     t.ActualPressure,
			TransitionPressure: t.TransitionPressure,
		}
		if _, err := strategy.Recalibrate(adj); err != nil {
			add("recalibration", ErrRecalibrationResult, "%s", modelMessage(err))
		}
	}
	return errs
}

// validateTable checks a recalibration table's shape without fitting it.
func validateTable(machine string, control compressor.Control, t *ir.DischargeTable) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Machine: machine,
			Field:   "recalibration." + field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	if len(t.Pressures) != len(t.Capacities) {
		add("capacities", ErrRecalibrationTable,
			"have %d capacities for %d pressures", len(t.Capacities), len(t.Pressures))
	}
	if len(t.Pressures) < 3 {
		add("pressures", ErrRecalibrationTable,
			"quadratic fit needs at least 3 points, got %d", len(t.Pressures))
	}
	if control == compressor.ControlModulationUnload && t.TransitionPressure == nil {
		add("transition_pressure", ErrRecalibrationTransition,
			"modulation_unload recalibration needs transition_pressure")
	}
	return errs
}

// ValidateAll validates every definition and checks names are unique.
func ValidateAll(specs []ir.MachineSpec) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if seen[spec.Name] {
			errs = append(errs, ValidationError{
				Machine: spec.Name,
				Field:   "name",
				Message: fmt.Sprintf("duplicate machine name: %q", spec.Name),
				Code:    ErrDuplicateMachine,
			})
		}
		seen[spec.Name] = true
		errs = append(errs, Validate(spec)...)
	}
	return errs
}

func modelField(err error, fallback string) string {
	var me *compressor.Error
	if errors.As(err, &me) && me.Field != "" {
		return fallback + "." + me.Field
	}
	return fallback
}

func modelMessage(err error) string {
	var me *compressor.Error
	if errors.As(err, &me) {
		return me.Message
	}
	return err.Error()
}

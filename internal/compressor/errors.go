package compressor

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes model errors.
type ErrorCode string

const (
	// ErrCodeMalformedCalibration indicates calibration numbers that cannot
	// describe a real machine (e.g. rated power not above floor power).
	ErrCodeMalformedCalibration ErrorCode = "MALFORMED_CALIBRATION"

	// ErrCodeNonFiniteInput indicates a NaN or infinite query or calibration value.
	ErrCodeNonFiniteInput ErrorCode = "NON_FINITE_INPUT"

	// ErrCodeNonFiniteResult indicates the arithmetic overflowed to NaN/Inf.
	ErrCodeNonFiniteResult ErrorCode = "NON_FINITE_RESULT"

	// ErrCodeUnderdeterminedTable indicates a discharge-pressure table that
	// cannot support a quadratic fit.
	ErrCodeUnderdeterminedTable ErrorCode = "UNDERDETERMINED_TABLE"

	// ErrCodeUnsupportedQuery indicates a query the strategy cannot answer
	// (unknown entry, or a blow-off fraction on a strategy without blow-off).
	ErrCodeUnsupportedQuery ErrorCode = "UNSUPPORTED_QUERY"
)

// Error is returned by every fallible operation in this package.
//
// Errors are always caused by invalid input and are deterministic: the same
// input yields the same error. There is nothing to retry.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Control is the strategy that rejected the input, empty for
	// strategy-independent failures (lines, curves, conversions).
	Control Control

	// Field names the offending input.
	Field string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Control != "" && e.Field != "":
		return fmt.Sprintf("%s: %s: %s (%s)", e.Code, e.Field, e.Message, e.Control)
	case e.Field != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not a model error.
func CodeOf(err error) ErrorCode {
	var me *Error
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// IsCalibrationError reports whether err is a malformed-calibration error.
func IsCalibrationError(err error) bool {
	return CodeOf(err) == ErrCodeMalformedCalibration
}

// IsNonFiniteError reports whether err was caused by NaN/Inf input or output.
func IsNonFiniteError(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeNonFiniteInput || code == ErrCodeNonFiniteResult
}

// IsTableError reports whether err rejected a discharge-pressure table.
func IsTableError(err error) bool {
	return CodeOf(err) == ErrCodeUnderdeterminedTable
}

// IsUnsupportedQuery reports whether err rejected the shape of a query.
func IsUnsupportedQuery(err error) bool {
	return CodeOf(err) == ErrCodeUnsupportedQuery
}

func calibrationError(control Control, field, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeMalformedCalibration,
		Control: control,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

func nonFiniteInput(control Control, field string, v float64) *Error {
	return &Error{
		Code:    ErrCodeNonFiniteInput,
		Control: control,
		Field:   field,
		Message: fmt.Sprintf("value %v is not finite", v),
	}
}

func tableError(field, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeUnderdeterminedTable,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

func unsupported(control Control, field, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeUnsupportedQuery,
		Control: control,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

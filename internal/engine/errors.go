package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an infrastructure failure during evaluation.
//
// Model errors (bad calibration, non-finite input, unsupported query) are
// not RuntimeErrors: they are recorded in the evaluation's Outcome and the
// evaluation itself succeeds. RuntimeError covers what stops the engine from
// producing a record at all:
//   - Unknown machine: the query names a machine that was never loaded
//   - Invalid machine: a definition cannot be built into a strategy
//   - Store failure: the evaluation log could not be read or written
//   - Invalid record: a stored evaluation cannot be replayed
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Machine names the machine involved, if any.
	Machine string

	// RunToken identifies the affected run, if any.
	RunToken string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownMachine indicates a query for a machine that isn't loaded.
	ErrCodeUnknownMachine RuntimeErrorCode = "UNKNOWN_MACHINE"

	// ErrCodeInvalidMachine indicates a definition that cannot be built.
	ErrCodeInvalidMachine RuntimeErrorCode = "INVALID_MACHINE"

	// ErrCodeStoreFailure indicates the evaluation log failed.
	ErrCodeStoreFailure RuntimeErrorCode = "STORE_FAILURE"

	// ErrCodeInvalidRecord indicates a stored evaluation that can't be decoded.
	ErrCodeInvalidRecord RuntimeErrorCode = "INVALID_RECORD"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Machine != "" && e.RunToken != "" {
		return fmt.Sprintf("%s: %s (machine=%s, run=%s)", e.Code, msg, e.Machine, e.RunToken)
	}
	if e.Machine != "" {
		return fmt.Sprintf("%s: %s (machine=%s)", e.Code, msg, e.Machine)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause, so compressor.CodeOf sees through an
// invalid-machine error to the calibration problem behind it.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsUnknownMachine returns true if err is an unknown-machine error.
// Uses errors.As to handle wrapped errors.
func IsUnknownMachine(err error) bool {
	return hasCode(err, ErrCodeUnknownMachine)
}

// IsInvalidMachine returns true if err is an invalid-machine error.
func IsInvalidMachine(err error) bool {
	return hasCode(err, ErrCodeInvalidMachine)
}

// IsStoreError returns true if err is a store failure.
func IsStoreError(err error) bool {
	return hasCode(err, ErrCodeStoreFailure)
}

// NewInvalidMachineError wraps a build failure for the named machine.
func NewInvalidMachineError(machine string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidMachine,
		Message: "machine definition cannot be built",
		Machine: machine,
		Err:     err,
	}
}

func storeError(runToken, message string, err error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeStoreFailure,
		Message:  message,
		RunToken: runToken,
		Err:      err,
	}
}

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/aircurve/internal/compiler"
	"github.com/roach88/aircurve/internal/ir"
)

// LoadMode controls how errors are handled during definition loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the machines loaded from a definitions directory.
type LoadResult struct {
	Machines  []ir.MachineSpec
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// Machine returns the named machine, if loaded.
func (r *LoadResult) Machine(name string) (ir.MachineSpec, bool) {
	for _, m := range r.Machines {
		if m.Name == name {
			return m, true
		}
	}
	return ir.MachineSpec{}, false
}

// LoadError represents an error that occurred during definition loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadMachines loads and compiles the machine definitions in dir.
//
// Definitions live under the top-level "machine" struct, one field per
// machine:
//
//	machine: centac: {
//		control: "blow_off"
//		calibration: { rated_power: 500, rated_flow: 2000, floor_power: 300, floor_flow: 1400 }
//	}
//
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadMachines(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	// Verify directory exists
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("definitions directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing definitions directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	machinesVal := value.LookupPath(cue.ParsePath("machine"))
	if machinesVal.Exists() {
		iter, iterErr := machinesVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating machines: %v", iterErr)})
			return result, errs
		}
		for iter.Next() {
			spec, compileErr := compiler.CompileMachine(iter.Value())
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, "machine."+iter.Label()))
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			result.Machines = append(result.Machines, *spec)
		}
	}

	if len(result.Machines) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoMachines, Message: "no machines found in definitions"})
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s: %s", context, compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeNoMachines  = "E008" // Definitions declare no machine
	ErrCodeStore       = "E009" // Evaluation log could not be opened or read
	ErrCodeQuery       = "E010" // Query flags are inconsistent

	// Definition errors
	ErrCodeMachineShape       = "E100" // Machine is not a struct or has an unknown field
	ErrCodeMachineControl     = "E101" // Missing or unknown control
	ErrCodeMachineCalibration = "E102" // Missing, unknown or non-numeric calibration field
	ErrCodeMachineElectrical  = "E103" // electrical_factor is not a number or electrical_basis is unknown
	ErrCodeMachineRecalibrate = "E104" // Malformed recalibration block
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "control":
		return ErrCodeMachineControl
	case field == "calibration" || strings.HasPrefix(field, "calibration."):
		return ErrCodeMachineCalibration
	case field == "electrical_factor" || field == "electrical_basis":
		return ErrCodeMachineElectrical
	case field == "recalibration" || strings.HasPrefix(field, "recalibration."):
		return ErrCodeMachineRecalibrate
	case field == "machine" || field == "description":
		return ErrCodeMachineShape
	default:
		return ErrCodeGeneric
	}
}

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/aircurve/internal/compiler"
	"github.com/roach88/aircurve/internal/compressor"
	"github.com/roach88/aircurve/internal/engine"
	"github.com/roach88/aircurve/internal/ir"
	"github.com/roach88/aircurve/internal/store"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Database string
	RunToken string

	Entry       string
	Value       float64
	Auxiliary   float64
	Voltage     float64
	Current     float64
	PowerFactor float64

	Recalibrate       string  // discharge-pressure table, YAML or TOML
	DischargePressure float64 // overrides the table's actual_pressure

	// RunGenerator allows overriding the run token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunGenerator engine.RunTokenGenerator
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	return newEvalCommand(&EvalOptions{RootOptions: rootOpts})
}

func newEvalCommand(opts *EvalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <defs-dir> <machine>",
		Short: "Evaluate one operating point",
		Long: `Evaluate a machine at one operating point.

The query names which quantity is known (--entry) and its value. For
electrical queries the power comes from --voltage, --current and
--power-factor instead of --value, read with the machine's electrical
convention. The default is the meter-sheet one: volts, kiloamps and a
percent power factor, where 1.732*V*I*PF/1000 is the fraction of rated
power. A machine declaring electrical_basis: "absolute" reads the scaled
product as power instead. Blow-off machines accept a commanded blow-off
fraction (--aux) with power-based entries.

A discharge-pressure table (--recalibrate) re-anchors the machine's
rated flow before the query is answered; --discharge-pressure moves the
actual pressure of whichever table applies.

With --db the evaluation is recorded and can be traced and replayed.

Examples:
  aircurve eval ./defs centac --entry power_fraction --value 0.75
  aircurve eval ./defs centac --entry electrical --voltage 440 --current 0.02152 --power-factor 50 --aux 0.6798
  aircurve eval ./defs centac --entry flow_fraction --value 0.5 --recalibrate table.yaml --db ./air.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (evaluation is not recorded without it)")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "record under an existing run token instead of starting a run")
	cmd.Flags().StringVar(&opts.Entry, "entry", string(compressor.EntryPowerFraction), "known quantity: power_fraction|flow_fraction|measured_power|measured_flow|electrical")
	cmd.Flags().Float64Var(&opts.Value, "value", 0, "value of the known quantity")
	cmd.Flags().Float64Var(&opts.Auxiliary, "aux", 0, "commanded blow-off fraction (blow_off only)")
	cmd.Flags().Float64Var(&opts.Voltage, "voltage", 0, "line-to-line voltage (electrical entry)")
	cmd.Flags().Float64Var(&opts.Current, "current", 0, "line current, kiloamps under the default convention (electrical entry)")
	cmd.Flags().Float64Var(&opts.PowerFactor, "power-factor", 0, "power factor, percent under the default convention (electrical entry)")
	cmd.Flags().StringVar(&opts.Recalibrate, "recalibrate", "", "discharge-pressure table (.yaml or .toml) to apply before evaluating")
	cmd.Flags().Float64Var(&opts.DischargePressure, "discharge-pressure", 0, "actual discharge pressure to recalibrate to")

	return cmd
}

func runEval(opts *EvalOptions, defsDir, machine string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	q, err := evalQuery(opts, cmd)
	if err != nil {
		return outputEvalError(formatter, ExitCommandError, ErrCodeQuery, err.Error())
	}

	loadResult, loadErrors := LoadMachines(defsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return outputEvalError(formatter, ExitCommandError, code, message)
	}
	spec, ok := loadResult.Machine(machine)
	if !ok {
		if len(loadErrors) > 0 {
			// The machine may be the one that failed to compile.
			code, message := parseCompileError(loadErrors[0])
			return outputEvalError(formatter, ExitCommandError, code, message)
		}
		return outputEvalError(formatter, ExitCommandError, ErrCodeNotFound,
			fmt.Sprintf("machine %q not found in %s", machine, defsDir))
	}
	formatter.VerboseLog("Loaded machine %s (%s) from %s", spec.Name, spec.Control, defsDir)

	if spec, err = applyRecalibration(opts, spec, cmd); err != nil {
		return outputEvalError(formatter, ExitCommandError, ErrCodeQuery, err.Error())
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return outputEvalError(formatter, ExitCommandError, ErrCodeStore,
				fmt.Sprintf("failed to open database: %v", err))
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	gen := opts.RunGenerator
	if gen == nil {
		gen = engine.UUIDv7Generator{}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ev, err := evaluate(ctx, st, spec, gen, opts.RunToken, q, engine.WithLogger(logger))
	if err != nil {
		if engine.IsInvalidMachine(err) {
			return outputEvalError(formatter, ExitFailure, compiler.ErrMalformedCalibration, err.Error())
		}
		return outputEvalError(formatter, ExitCommandError, ErrCodeStore, err.Error())
	}

	return outputEvalResult(formatter, ev, st != nil)
}

// evaluate builds the single machine and answers one query.
func evaluate(ctx context.Context, st *store.Store, spec ir.MachineSpec, gen engine.RunTokenGenerator, runToken string, q compressor.Query, opts ...engine.Option) (ir.Evaluation, error) {
	e, err := engine.New(ctx, st, []ir.MachineSpec{spec}, gen, opts...)
	if err != nil {
		return ir.Evaluation{}, err
	}
	if runToken == "" {
		runToken = e.NewRun()
	}
	return e.Evaluate(ctx, runToken, spec.Name, q)
}

// evalQuery assembles the query from flags. Electrical entries need the
// full meter reading; every other entry needs --value.
func evalQuery(opts *EvalOptions, cmd *cobra.Command) (compressor.Query, error) {
	flags := cmd.Flags()
	q := compressor.Query{
		Entry:             compressor.Entry(opts.Entry),
		AuxiliaryFraction: opts.Auxiliary,
	}

	if q.Entry == compressor.EntryElectrical {
		for _, name := range []string{"voltage", "current", "power-factor"} {
			if !flags.Changed(name) {
				return compressor.Query{}, fmt.Errorf("electrical entry requires --%s", name)
			}
		}
		if flags.Changed("value") {
			return compressor.Query{}, errors.New("electrical entry takes --voltage, --current and --power-factor, not --value")
		}
		q.Reading = compressor.ElectricalReading{
			Voltage:     opts.Voltage,
			Current:     opts.Current,
			PowerFactor: opts.PowerFactor,
		}
		return q, nil
	}

	if !flags.Changed("value") {
		return compressor.Query{}, fmt.Errorf("%s entry requires --value", opts.Entry)
	}
	q.Value = opts.Value
	return q, nil
}

// applyRecalibration replaces or adjusts spec's discharge-pressure table
// from --recalibrate and --discharge-pressure.
func applyRecalibration(opts *EvalOptions, spec ir.MachineSpec, cmd *cobra.Command) (ir.MachineSpec, error) {
	if opts.Recalibrate != "" {
		table, err := loadDischargeTable(opts.Recalibrate)
		if err != nil {
			return spec, err
		}
		spec.Recalibration = table
	}

	if cmd.Flags().Changed("discharge-pressure") {
		if spec.Recalibration == nil {
			return spec, fmt.Errorf("--discharge-pressure needs a discharge-pressure table: machine %s declares none and --recalibrate was not given", spec.Name)
		}
		table := *spec.Recalibration
		table.ActualPressure = opts.DischargePressure
		spec.Recalibration = &table
	}
	return spec, nil
}

// loadDischargeTable reads a discharge-pressure table. Files ending in
// .toml are TOML; anything else is YAML:
//
//	pressures: [100, 110, 120]
//	capacities: [2100, 2000, 1880]
//	actual_pressure: 115
//	transition_pressure: 112   # modulation_unload only
//
// Unknown keys are rejected in both formats.
func loadDischargeTable(path string) (*ir.DischargeTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading discharge table: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("discharge table %s is empty", path)
	}

	var adj compressor.DischargeAdjustment
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		meta, err := toml.Decode(string(data), &adj)
		if err != nil {
			return nil, fmt.Errorf("parsing discharge table %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parsing discharge table %s: unknown key %q", path, undecoded[0].String())
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&adj); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("discharge table %s is empty", path)
			}
			return nil, fmt.Errorf("parsing discharge table %s: %w", path, err)
		}
	}

	return &ir.DischargeTable{
		Pressures:          adj.Pressures,
		Capacities:         adj.Capacities,
		ActualPressure:     adj.ActualPressure,
		TransitionPressure: adj.TransitionPressure,
	}, nil
}

// outputEvalError reports a failure that produced no evaluation.
func outputEvalError(formatter *OutputFormatter, exitCode int, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(exitCode, fmt.Sprintf("%s: %s", code, message))
}

// outputEvalResult reports an evaluation. A model error is a recorded
// outcome, not a command error, but still exits non-zero.
func outputEvalResult(formatter *OutputFormatter, ev ir.Evaluation, recorded bool) error {
	var exitErr error
	if !ev.Outcome.OK() {
		exitErr = NewExitError(ExitFailure, fmt.Sprintf("%s: %s", ev.Outcome.ErrorCode, ev.Outcome.ErrorMessage))
	}

	if formatter.Format == "json" {
		if err := formatter.SuccessWithTrace(ev, ev.RunToken); err != nil {
			return err
		}
		return exitErr
	}

	w := formatter.Writer
	if !ev.Outcome.OK() {
		fmt.Fprintf(w, "✗ %s %s rejected\n", ev.Machine, ev.Entry)
		fmt.Fprintf(w, "  %s: %s\n", ev.Outcome.ErrorCode, ev.Outcome.ErrorMessage)
	} else {
		op, err := engine.PointFromResult(ev.Outcome.Result)
		if err != nil {
			return WrapExitError(ExitCommandError, "decoding result", err)
		}
		fmt.Fprintf(w, "✓ %s (%s) %s\n\n", ev.Machine, ev.Control, ev.Entry)
		writePoint(w, op)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run:  %s  seq %d\n", ev.RunToken, ev.Seq)
	fmt.Fprintf(w, "ID:   %s\n", ev.ID)
	if !recorded {
		fmt.Fprintln(w, "(not recorded: no --db)")
	}
	return exitErr
}

func writePoint(w io.Writer, op compressor.OperatingPoint) {
	fmt.Fprintf(w, "  regime:  %s\n", op.Regime)
	fmt.Fprintf(w, "  power:   %.4f  (%.2f%%)\n", op.Power, 100*op.PowerFraction)
	fmt.Fprintf(w, "  flow:    %.4f  (%.2f%%)\n", op.Flow, 100*op.FlowFraction)
	if op.Auxiliary != nil {
		fmt.Fprintf(w, "  aux:     %.4f  (%.2f%%)\n", op.Auxiliary.Flow, 100*op.Auxiliary.Fraction)
	}
}

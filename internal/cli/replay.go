package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/aircurve/internal/engine"
	"github.com/roach88/aircurve/internal/ir"
	"github.com/roach88/aircurve/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunToken string // optional - specific run only
}

// Drift is a recorded machine whose current definition hashes differently.
// CurrentHash is empty when the machine is no longer defined.
type Drift struct {
	Machine      string `json:"machine"`
	RecordedHash string `json:"recorded_hash"`
	CurrentHash  string `json:"current_hash,omitempty"`
}

// ReplayReport holds the overall replay result.
type ReplayReport struct {
	RunToken      string            `json:"run_token,omitempty"`
	Checked       int               `json:"checked"`
	Mismatches    []engine.Mismatch `json:"mismatches"`
	Drift         []Drift           `json:"drift,omitempty"`
	Deterministic bool              `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [defs-dir]",
		Short: "Re-evaluate recorded queries and verify determinism",
		Long: `Re-evaluate every recorded query and verify the model reproduces it.

Each evaluation is replayed against the machine definition stored with
it, so a mismatch means the model itself changed: a different status,
error code or result, compared as canonical JSON. Record IDs are
recomputed too, which detects records edited after they were written.

When a definitions directory is given, recorded machines are also
compared with the current definitions and any machine whose definition
has changed since it was recorded is reported as drift. Drift is
informational and does not fail the replay.

Exit codes:
  0 - Every evaluation replayed identically
  1 - One or more evaluations replayed differently
  2 - Command error (database not found, etc.)

Examples:
  aircurve replay --db ./air.db
  aircurve replay --db ./air.db --run 0190c3e4-...
  aircurve replay --db ./air.db ./defs --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			defsDir := ""
			if len(args) == 1 {
				defsDir = args[0]
			}
			return runReplay(opts, defsDir, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, defsDir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	replayed, err := engine.Replay(ctx, st, opts.RunToken, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay evaluations", err)
	}

	report := ReplayReport{
		RunToken:      opts.RunToken,
		Checked:       replayed.Checked,
		Mismatches:    replayed.Mismatches,
		Deterministic: replayed.OK(),
	}

	if defsDir != "" {
		loadResult, loadErrors := LoadMachines(defsDir, LoadModeFailFast)
		if len(loadErrors) > 0 {
			return WrapExitError(ExitCommandError, "failed to load machine definitions", loadErrors[0])
		}
		report.Drift, err = detectDrift(ctx, st, opts.RunToken, loadResult.Machines)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to check definition drift", err)
		}
		for _, d := range report.Drift {
			logger.Info("machine definition drift",
				"machine", d.Machine,
				"recorded", d.RecordedHash,
				"current", d.CurrentHash,
			)
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, report)
	}

	return outputReplayText(cmd, report, opts.Verbose)
}

// detectDrift compares the machine hashes recorded in scope with the
// hashes of the current definitions of the same names.
func detectDrift(ctx context.Context, st *store.Store, runToken string, current []ir.MachineSpec) ([]Drift, error) {
	evs, err := st.FindEvaluations(ctx, store.Filter{RunToken: runToken})
	if err != nil {
		return nil, err
	}

	currentHash := make(map[string]string, len(current))
	for _, spec := range current {
		h, err := ir.MachineHash(spec)
		if err != nil {
			return nil, fmt.Errorf("hashing %s: %w", spec.Name, err)
		}
		currentHash[spec.Name] = h
	}

	type key struct{ machine, hash string }
	seen := make(map[key]bool)
	var drift []Drift
	for _, ev := range evs {
		k := key{ev.Machine, ev.MachineHash}
		if seen[k] {
			continue
		}
		seen[k] = true
		if h := currentHash[ev.Machine]; h != ev.MachineHash {
			drift = append(drift, Drift{Machine: ev.Machine, RecordedHash: ev.MachineHash, CurrentHash: h})
		}
	}

	sort.Slice(drift, func(i, j int) bool {
		if drift[i].Machine != drift[j].Machine {
			return drift[i].Machine < drift[j].Machine
		}
		return drift[i].RecordedHash < drift[j].RecordedHash
	})
	return drift, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, report ReplayReport) error {
	response := CLIResponse{
		Status:  "ok",
		Data:    report,
		TraceID: report.RunToken,
	}

	if !report.Deterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: fmt.Sprintf("%d field(s) replayed differently", len(report.Mismatches)),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !report.Deterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, report ReplayReport, verbose bool) error {
	w := cmd.OutOrStdout()

	scope := "all runs"
	if report.RunToken != "" {
		scope = "run " + report.RunToken
	}
	fmt.Fprintf(w, "Replay Summary: %d evaluation(s), %s\n", report.Checked, scope)
	fmt.Fprintln(w)

	for _, mm := range report.Mismatches {
		fmt.Fprintf(w, "✗ [%d] %s %s\n", mm.Seq, mm.Machine, mm.Field)
		fmt.Fprintf(w, "  expected: %s\n", mm.Expected)
		fmt.Fprintf(w, "  actual:   %s\n", mm.Actual)
		if verbose {
			fmt.Fprintf(w, "  ID: %s\n", mm.EvaluationID)
		}
	}

	for _, d := range report.Drift {
		if d.CurrentHash == "" {
			fmt.Fprintf(w, "! %s: no longer defined (recorded %s)\n", d.Machine, truncateID(d.RecordedHash))
			continue
		}
		fmt.Fprintf(w, "! %s: definition changed (recorded %s, current %s)\n",
			d.Machine, truncateID(d.RecordedHash), truncateID(d.CurrentHash))
	}
	if len(report.Mismatches) > 0 || len(report.Drift) > 0 {
		fmt.Fprintln(w)
	}

	if report.Deterministic {
		fmt.Fprintln(w, "✓ All evaluations replayed identically")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}

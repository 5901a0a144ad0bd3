package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/aircurve/internal/ir"
	"github.com/roach88/aircurve/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunToken string // optional - list runs when empty
	Machine  string // optional - filter to one machine
	Status   string // optional - "ok" or "error"
}

// TraceEvent is one evaluation in a run's timeline.
type TraceEvent struct {
	Seq          int64                  `json:"seq"`
	ID           string                 `json:"id"`
	Machine      string                 `json:"machine"`
	MachineHash  string                 `json:"machine_hash"`
	Entry        string                 `json:"entry"`
	Args         map[string]interface{} `json:"args,omitempty"`
	Status       string                 `json:"status"`
	Result       map[string]interface{} `json:"result,omitempty"`
	ErrorCode    string                 `json:"error_code,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// TraceResult holds the complete trace output for one run.
type TraceResult struct {
	RunToken string       `json:"run_token"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Evaluations int      `json:"evaluations"`
	OK          int      `json:"ok"`
	Errors      int      `json:"errors"`
	Machines    []string `json:"machines"`
}

// RunList is the trace output when no run is selected.
type RunList struct {
	Runs []store.RunSummary `json:"runs"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded evaluations of a run",
		Long: `Show the evaluations recorded under a run token, in seq order.

Each entry shows the query (entry and arguments) and its outcome: the
operating point, or the model error that rejected the query. Without
--run, the recorded runs are listed instead.

Examples:
  aircurve trace --db ./air.db
  aircurve trace --db ./air.db --run 0190c3e4-...
  aircurve trace --db ./air.db --run 0190c3e4-... --machine centac
  aircurve trace --db ./air.db --run 0190c3e4-... --status error
  aircurve trace --db ./air.db --run 0190c3e4-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to trace (lists runs when omitted)")
	cmd.Flags().StringVar(&opts.Machine, "machine", "", "filter to one machine")
	cmd.Flags().StringVar(&opts.Status, "status", "", "filter by outcome (ok, error)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.RunToken == "" {
		return listRuns(ctx, st, opts, cmd)
	}

	if opts.Status != "" && opts.Status != ir.StatusOK && opts.Status != ir.StatusError {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --status %q: must be ok or error", opts.Status))
	}

	evs, err := st.FindEvaluations(ctx, store.Filter{
		RunToken: opts.RunToken,
		Machine:  opts.Machine,
		Status:   opts.Status,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if len(evs) == 0 {
		if opts.Format == "json" {
			return outputTraceJSON(cmd, TraceResult{
				RunToken: opts.RunToken,
				Timeline: []TraceEvent{},
				Stats:    TraceStats{Machines: []string{}},
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No evaluations found for run: %s\n", opts.RunToken)
		return nil
	}

	result := TraceResult{
		RunToken: opts.RunToken,
		Timeline: buildTimeline(evs),
	}
	result.Stats = traceStats(result.Timeline)

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}

	return outputTraceText(cmd, result, opts.Verbose)
}

// openExistingStore opens a database that must already exist; store.Open
// would otherwise create an empty one.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: database not found: %s", ErrCodeNotFound, path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func listRuns(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, RunList{Runs: runs})
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}
	fmt.Fprintf(w, "%d run(s)\n\n", len(runs))
	for _, r := range runs {
		fmt.Fprintf(w, "  %s  %d evaluation(s), %d error(s), seq %d-%d\n",
			r.RunToken, r.Count, r.Errors, r.FirstSeq, r.LastSeq)
	}
	return nil
}

// buildTimeline converts recorded evaluations to timeline events.
func buildTimeline(evs []ir.Evaluation) []TraceEvent {
	timeline := []TraceEvent{}
	for _, ev := range evs {
		timeline = append(timeline, TraceEvent{
			Seq:          ev.Seq,
			ID:           ev.ID,
			Machine:      ev.Machine,
			MachineHash:  ev.MachineHash,
			Entry:        ev.Entry,
			Args:         irObjectToMap(ev.Args),
			Status:       ev.Outcome.Status,
			Result:       irObjectToMap(ev.Outcome.Result),
			ErrorCode:    ev.Outcome.ErrorCode,
			ErrorMessage: ev.Outcome.ErrorMessage,
		})
	}
	return timeline
}

func traceStats(timeline []TraceEvent) TraceStats {
	stats := TraceStats{Evaluations: len(timeline), Machines: []string{}}
	seen := make(map[string]bool)
	for _, ev := range timeline {
		if ev.Status == ir.StatusOK {
			stats.OK++
		} else {
			stats.Errors++
		}
		if !seen[ev.Machine] {
			seen[ev.Machine] = true
			stats.Machines = append(stats.Machines, ev.Machine)
		}
	}
	sort.Strings(stats.Machines)
	return stats
}

// irObjectToMap converts an ir.IRObject to a plain map.
func irObjectToMap(obj ir.IRObject) map[string]interface{} {
	if obj == nil {
		return nil
	}

	result := make(map[string]interface{})
	for k, v := range obj {
		result[k] = irValueToInterface(v)
	}
	return result
}

// irValueToInterface converts an ir.IRValue to a plain interface{}.
func irValueToInterface(v ir.IRValue) interface{} {
	switch val := v.(type) {
	case ir.IRString:
		return string(val)
	case ir.IRFloat:
		return float64(val)
	case ir.IRInt:
		return int64(val)
	case ir.IRBool:
		return bool(val)
	case ir.IRArray:
		result := make([]interface{}, len(val))
		for i, elem := range val {
			result[i] = irValueToInterface(elem)
		}
		return result
	case ir.IRObject:
		return irObjectToMap(val)
	default:
		return nil
	}
}

// outputTraceJSON outputs a trace or run list as JSON.
func outputTraceJSON(cmd *cobra.Command, data interface{}) error {
	response := CLIResponse{
		Status: "ok",
		Data:   data,
	}
	if tr, ok := data.(TraceResult); ok {
		response.TraceID = tr.RunToken
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for Run: %s\n", result.RunToken)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no evaluations)")
	} else {
		for _, event := range result.Timeline {
			formatTimelineEvent(w, event, verbose)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Evaluations: %d\n", result.Stats.Evaluations)
	fmt.Fprintf(w, "  OK:          %d\n", result.Stats.OK)
	fmt.Fprintf(w, "  Errors:      %d\n", result.Stats.Errors)
	fmt.Fprintf(w, "  Machines:    %s\n", strings.Join(result.Stats.Machines, ", "))

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	fmt.Fprintf(w, "  [%d] %s %s %s\n", event.Seq, event.Machine, event.Entry, formatArgs(event.Args))
	if event.Status == ir.StatusOK {
		fmt.Fprintf(w, "       -> %s\n", formatArgs(event.Result))
	} else {
		fmt.Fprintf(w, "       -> %s: %s\n", event.ErrorCode, event.ErrorMessage)
	}
	if verbose {
		fmt.Fprintf(w, "       ID: %s\n", truncateID(event.ID))
		fmt.Fprintf(w, "       Machine: %s\n", truncateID(event.MachineHash))
	}
}

// formatArgs formats a map of args for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case map[string]interface{}:
		return formatArgs(val)
	case []interface{}:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

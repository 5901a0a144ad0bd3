package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/roach88/aircurve/internal/engine"
	"github.com/roach88/aircurve/internal/ir"
	"github.com/roach88/aircurve/internal/store"
	"github.com/roach88/aircurve/internal/testutil"
)

// DefaultTolerance is the relative tolerance used when a scenario gives none.
const DefaultTolerance = 1e-9

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and run token.
type Harness struct {
	store     *store.Store
	evaluator *engine.Evaluator
	runToken  string
	logger    *slog.Logger
}

// Run executes a test scenario against the given machine definitions and
// returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Build every machine in specs
// 3. Evaluate each step and check its expect clause
// 4. Evaluate assertions against the trace and the recorded run
//
// A step naming an unknown machine fails the scenario; it does not abort it.
// The error return is reserved for infrastructure failures and definitions
// that cannot be built.
func Run(scenario *Scenario, specs []ir.MachineSpec) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	eval, err := engine.New(ctx, st, specs,
		testutil.NewFixedRunGenerator(scenario.RunToken),
		engine.WithClock(testutil.NewClock()),
		engine.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load machines: %w", err)
	}

	h := &Harness{
		store:     st,
		evaluator: eval,
		runToken:  eval.NewRun(),
		logger:    logger,
	}

	result := NewResult(h.runToken)
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	actx := &AssertionContext{
		Store:    st,
		Ctx:      ctx,
		RunToken: h.runToken,
		Logger:   logger,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeSteps evaluates every step and validates its expect clause.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		ev, err := h.evaluator.Evaluate(ctx, h.runToken, step.Machine, step.Query)
		if engine.IsUnknownMachine(err) {
			result.AddError(fmt.Sprintf("step %d: unknown machine %q", i, step.Machine))
			continue
		}
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		result.AddEvaluationTrace(i, ev)

		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, ev.Outcome) {
				result.AddError(fmt.Sprintf("step %d (%s %s): %s", i, step.Machine, step.Query.Entry, msg))
			}
		}

		h.logger.Info("step completed",
			"step", i,
			"machine", step.Machine,
			"entry", ev.Entry,
			"evaluation_id", ev.ID,
			"status", ev.Outcome.Status,
		)
	}
	return nil
}

// checkExpect compares an outcome against an expect clause and returns one
// message per mismatch.
func checkExpect(e *ExpectClause, out ir.Outcome) []string {
	if e.Error != "" {
		if out.OK() {
			return []string{fmt.Sprintf("expected error %s, got an operating point", e.Error)}
		}
		if out.ErrorCode != e.Error {
			return []string{fmt.Sprintf("expected error %s, got %s", e.Error, out.ErrorCode)}
		}
		return nil
	}

	if !out.OK() {
		return []string{fmt.Sprintf("expected an operating point, got error %s: %s", out.ErrorCode, out.ErrorMessage)}
	}

	tol := e.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}

	var msgs []string
	if e.Regime != "" {
		if got, _ := out.Result.GetString("regime"); got != e.Regime {
			msgs = append(msgs, fmt.Sprintf("regime: expected %s, got %s", e.Regime, got))
		}
	}
	for _, f := range []struct {
		name string
		want *float64
	}{
		{"power", e.Power},
		{"power_fraction", e.PowerFraction},
		{"flow", e.Flow},
		{"flow_fraction", e.FlowFraction},
		{"auxiliary.flow", e.AuxiliaryFlow},
		{"auxiliary.fraction", e.AuxiliaryFraction},
	} {
		if f.want == nil {
			continue
		}
		got, ok := resultField(out.Result, f.name)
		if !ok {
			msgs = append(msgs, fmt.Sprintf("%s: expected %v, not in result", f.name, *f.want))
			continue
		}
		if !withinTolerance(got, *f.want, tol) {
			msgs = append(msgs, fmt.Sprintf("%s: expected %v, got %v (tolerance %g)", f.name, *f.want, got, tol))
		}
	}
	return msgs
}

// resultField reads a numeric result field; "auxiliary.flow" and
// "auxiliary.fraction" address the nested auxiliary object.
func resultField(res ir.IRObject, name string) (float64, bool) {
	switch name {
	case "auxiliary.flow", "auxiliary.fraction":
		aux, ok := res.GetObject("auxiliary")
		if !ok {
			return 0, false
		}
		return aux.GetFloat(name[len("auxiliary."):])
	default:
		return res.GetFloat(name)
	}
}

// withinTolerance compares relative to the expected magnitude, falling back
// to an absolute comparison near zero.
func withinTolerance(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol*math.Max(1, math.Abs(want))
}

package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/aircurve/internal/engine"
	"github.com/roach88/aircurve/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %v -> %s\n", event.Step, event.Machine, event.Entry, event.Args, describeEvent(event))
		}
	}

	return buf.String()
}

func describeEvent(ev TraceEvent) string {
	if ev.ErrorCode != "" {
		return ev.ErrorCode
	}
	return fmt.Sprintf("%v", ev.Result)
}

// stepValues returns field for each listed step, failing on a step that has
// no operating point.
func stepValues(result *Result, kind string, steps []int, field string) ([]float64, error) {
	vals := make([]float64, len(steps))
	for i, step := range steps {
		ev, ok := result.Event(step)
		if !ok {
			return nil, &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("step %d in trace", step),
				Actual:   "step was not evaluated",
				Trace:    result.Trace,
			}
		}
		v, ok := resultField(ev.Result, field)
		if !ok {
			return nil, &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("step %d to have %s", step, field),
				Actual:   describeEvent(ev),
				Trace:    result.Trace,
			}
		}
		vals[i] = v
	}
	return vals, nil
}

// assertAgree checks that the listed steps resolved to the same point, for
// example a power-fraction query and the flow-fraction query of the same
// operating condition.
func assertAgree(result *Result, assertion Assertion) error {
	fields := assertion.Fields
	if len(fields) == 0 {
		fields = []string{"power", "flow"}
	}
	tol := assertion.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}

	for _, field := range fields {
		vals, err := stepValues(result, AssertAgree, assertion.Steps, field)
		if err != nil {
			return err
		}
		for i := 1; i < len(vals); i++ {
			if !withinTolerance(vals[i], vals[0], tol) {
				return &AssertionError{
					Type: AssertAgree,
					Expected: fmt.Sprintf("steps %v agree on %s within %g",
						assertion.Steps, field, tol),
					Actual: fmt.Sprintf("step %d has %v, step %d has %v",
						assertion.Steps[0], vals[0], assertion.Steps[i], vals[i]),
					Trace: result.Trace,
				}
			}
		}
	}
	return nil
}

// assertMonotonic checks that a field strictly increases or decreases across
// the listed steps.
func assertMonotonic(result *Result, assertion Assertion) error {
	vals, err := stepValues(result, AssertMonotonic, assertion.Steps, assertion.Field)
	if err != nil {
		return err
	}
	for i := 1; i < len(vals); i++ {
		ok := vals[i] > vals[i-1]
		if assertion.Direction == DirectionDecreasing {
			ok = vals[i] < vals[i-1]
		}
		if !ok {
			return &AssertionError{
				Type:     AssertMonotonic,
				Expected: fmt.Sprintf("%s %s across steps %v", assertion.Field, assertion.Direction, assertion.Steps),
				Actual: fmt.Sprintf("step %d has %v, step %d has %v",
					assertion.Steps[i-1], vals[i-1], assertion.Steps[i], vals[i]),
				Trace: result.Trace,
			}
		}
	}
	return nil
}

// assertCount checks how many evaluations the run recorded in the store.
func assertCount(ctx context.Context, st *store.Store, runToken string, assertion Assertion) error {
	evs, err := st.ReadRun(ctx, runToken)
	if err != nil {
		return fmt.Errorf("count: read run: %w", err)
	}

	count := 0
	for _, ev := range evs {
		if assertion.Machine != "" && ev.Machine != assertion.Machine {
			continue
		}
		if assertion.Status != "" && ev.Outcome.Status != assertion.Status {
			continue
		}
		count++
	}

	if count != assertion.Count {
		what := "evaluations"
		if assertion.Machine != "" {
			what += " of " + assertion.Machine
		}
		if assertion.Status != "" {
			what += " with status " + assertion.Status
		}
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d recorded", count),
		}
	}
	return nil
}

// assertReplay re-evaluates the recorded run and requires identical results.
func assertReplay(ctx context.Context, st *store.Store, runToken string, logger *slog.Logger) error {
	rr, err := engine.Replay(ctx, st, runToken, logger)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	if rr.OK() {
		return nil
	}

	first := rr.Mismatches[0]
	return &AssertionError{
		Type:     AssertReplay,
		Expected: fmt.Sprintf("%d evaluations to replay identically", rr.Checked),
		Actual: fmt.Sprintf("%d mismatches, first at seq %d (%s %s): expected %s, got %s",
			len(rr.Mismatches), first.Seq, first.Machine, first.Field, first.Expected, first.Actual),
	}
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store    *store.Store
	Ctx      context.Context
	RunToken string
	Logger   *slog.Logger
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for count and replay assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertAgree:
			err = assertAgree(result, assertion)
		case AssertMonotonic:
			err = assertMonotonic(result, assertion)
		case AssertCount, AssertReplay:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
			} else if assertion.Type == AssertCount {
				err = assertCount(actx.Ctx, actx.Store, actx.RunToken, assertion)
			} else {
				err = assertReplay(actx.Ctx, actx.Store, actx.RunToken, actx.Logger)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

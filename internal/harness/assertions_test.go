package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aircurve/internal/compressor"
	"github.com/roach88/aircurve/internal/engine"
	"github.com/roach88/aircurve/internal/ir"
	"github.com/roach88/aircurve/internal/store"
	"github.com/roach88/aircurve/internal/testutil"
)

func point(power, flow float64) ir.IRObject {
	return ir.IRObject{
		"power":          ir.IRFloat(power),
		"power_fraction": ir.IRFloat(power / 452.3),
		"flow":           ir.IRFloat(flow),
		"flow_fraction":  ir.IRFloat(flow / 3138),
		"regime":         ir.IRString("load_unload"),
	}
}

func traceOf(results ...ir.IRObject) *Result {
	r := NewResult("run")
	for i, res := range results {
		ev := TraceEvent{Step: i, Seq: int64(i + 1), Machine: "lu", Entry: "measured_power", Status: ir.StatusOK, Result: res}
		if res == nil {
			ev.Status = ir.StatusError
			ev.ErrorCode = "NON_FINITE_INPUT"
		}
		r.Trace = append(r.Trace, ev)
	}
	return r
}

func TestAssertAgree(t *testing.T) {
	result := traceOf(point(162.828, 753.845), point(162.74, 753.12), point(300, 1900))

	t.Run("within tolerance", func(t *testing.T) {
		err := assertAgree(result, Assertion{Type: AssertAgree, Steps: []int{0, 1}, Tolerance: 1e-3})
		assert.NoError(t, err)
	})

	t.Run("default tolerance is tight", func(t *testing.T) {
		err := assertAgree(result, Assertion{Type: AssertAgree, Steps: []int{0, 1}})
		require.Error(t, err)

		var ae *AssertionError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, AssertAgree, ae.Type)
		assert.Contains(t, ae.Expected, "agree on power")
		assert.Contains(t, ae.Actual, "step 0 has 162.828, step 1 has 162.74")
	})

	t.Run("selected fields only", func(t *testing.T) {
		err := assertAgree(result, Assertion{
			Type:      AssertAgree,
			Steps:     []int{0, 1},
			Fields:    []string{"flow_fraction"},
			Tolerance: 1e-3,
		})
		assert.NoError(t, err)
	})

	t.Run("different points", func(t *testing.T) {
		err := assertAgree(result, Assertion{Type: AssertAgree, Steps: []int{0, 2}, Tolerance: 1e-3})
		assert.Error(t, err)
	})

	t.Run("missing auxiliary", func(t *testing.T) {
		err := assertAgree(result, Assertion{
			Type:   AssertAgree,
			Steps:  []int{0, 1},
			Fields: []string{"auxiliary.flow"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "step 0 to have auxiliary.flow")
	})
}

func TestAssertAgree_ErrorStep(t *testing.T) {
	result := traceOf(point(100, 500), nil)

	err := assertAgree(result, Assertion{Type: AssertAgree, Steps: []int{0, 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NON_FINITE_INPUT")
}

func TestAssertAgree_StepNotEvaluated(t *testing.T) {
	result := traceOf(point(100, 500))

	err := assertAgree(result, Assertion{Type: AssertAgree, Steps: []int{0, 4}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step was not evaluated")
}

func TestAssertMonotonic(t *testing.T) {
	result := traceOf(point(100, 500), point(200, 1200), point(300, 1900), point(300, 1900))

	tests := []struct {
		name      string
		steps     []int
		field     string
		direction string
		ok        bool
	}{
		{"increasing", []int{0, 1, 2}, "power", DirectionIncreasing, true},
		{"decreasing", []int{2, 1, 0}, "flow", DirectionDecreasing, true},
		{"wrong direction", []int{0, 1, 2}, "flow", DirectionDecreasing, false},
		{"equal values are not strict", []int{2, 3}, "power", DirectionIncreasing, false},
		{"out of order", []int{1, 0, 2}, "power", DirectionIncreasing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertMonotonic(result, Assertion{
				Type:      AssertMonotonic,
				Steps:     tt.steps,
				Field:     tt.field,
				Direction: tt.direction,
			})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

// recordedRun evaluates queries through a real evaluator into a fresh store.
func recordedRun(t *testing.T, queries ...compressor.Query) (*store.Store, string) {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	eval, err := engine.New(ctx, st, testSpecs(), testutil.NewFixedRunGenerator("run-assert"),
		engine.WithClock(testutil.NewClock()))
	require.NoError(t, err)

	run := eval.NewRun()
	for _, q := range queries {
		_, err := eval.Evaluate(ctx, run, "lu", q)
		require.NoError(t, err)
	}
	return st, run
}

func TestAssertCount(t *testing.T) {
	st, run := recordedRun(t,
		compressor.Query{Entry: compressor.EntryFlowFraction, Value: 0.24},
		compressor.Query{Entry: compressor.EntryPowerFraction, Value: 0.36},
		compressor.Query{Entry: compressor.EntryPowerFraction, Value: 0.36, AuxiliaryFraction: 0.1},
	)
	ctx := context.Background()

	tests := []struct {
		name      string
		assertion Assertion
		ok        bool
	}{
		{"all", Assertion{Type: AssertCount, Count: 3}, true},
		{"by machine", Assertion{Type: AssertCount, Machine: "lu", Count: 3}, true},
		{"other machine", Assertion{Type: AssertCount, Machine: "bo", Count: 0}, true},
		{"errors", Assertion{Type: AssertCount, Status: ir.StatusError, Count: 1}, true},
		{"ok", Assertion{Type: AssertCount, Status: ir.StatusOK, Count: 2}, true},
		{"wrong count", Assertion{Type: AssertCount, Count: 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertCount(ctx, st, run, tt.assertion)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "3 recorded")
			}
		})
	}
}

func TestAssertReplay(t *testing.T) {
	st, run := recordedRun(t,
		compressor.Query{Entry: compressor.EntryFlowFraction, Value: 0.24},
		compressor.Query{Entry: compressor.EntryMeasuredPower, Value: 200},
	)
	ctx := context.Background()

	require.NoError(t, assertReplay(ctx, st, run, nil))

	// Tamper with a recorded result.
	_, err := st.DB().ExecContext(ctx,
		`UPDATE evaluations SET result = '{"flow":1,"flow_fraction":1,"power":1,"power_fraction":1,"regime":"load_unload"}' WHERE seq = 2`)
	require.NoError(t, err)

	err = assertReplay(ctx, st, run, nil)
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertReplay, ae.Type)
	assert.Contains(t, ae.Actual, "first at seq 2")
}

func TestEvaluateAssertions(t *testing.T) {
	result := traceOf(point(100, 500), point(200, 1200))

	t.Run("store assertions need a store", func(t *testing.T) {
		errs := EvaluateAssertions(result, []Assertion{{Type: AssertCount}, {Type: AssertReplay}}, nil)
		require.Len(t, errs, 2)
		assert.Contains(t, errs[0], "count requires database context")
		assert.Contains(t, errs[1], "replay requires database context")
	})

	t.Run("unknown type", func(t *testing.T) {
		errs := EvaluateAssertions(result, []Assertion{{Type: "bogus"}}, nil)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], `unknown assertion type "bogus"`)
	})

	t.Run("all pass", func(t *testing.T) {
		errs := EvaluateAssertions(result, []Assertion{
			{Type: AssertMonotonic, Steps: []int{0, 1}, Field: "flow", Direction: DirectionIncreasing},
		}, nil)
		assert.Empty(t, errs)
	})
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertAgree,
		Expected: "steps [0 1] agree on power within 1e-09",
		Actual:   "step 0 has 1, step 1 has 2",
		Trace:    traceOf(point(1, 5), nil).Trace,
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: agree")
	assert.Contains(t, msg, "Expected: steps [0 1] agree on power")
	assert.Contains(t, msg, "Actual: step 0 has 1, step 1 has 2")
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, "[1] lu measured_power")
	assert.Contains(t, msg, "NON_FINITE_INPUT")
}

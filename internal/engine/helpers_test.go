package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/aircurve/internal/ir"
	"github.com/roach88/aircurve/internal/store"
	"github.com/roach88/aircurve/internal/testutil"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(dir + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func blowOffSpec() ir.MachineSpec {
	return ir.MachineSpec{
		Name:    "bo",
		Control: "blow_off",
		Calibration: map[string]float64{
			"rated_power": 452.3,
			"rated_flow":  3138,
			"floor_power": 370.9,
			"floor_flow":  2510,
		},
	}
}

func loadUnloadSpec() ir.MachineSpec {
	return ir.MachineSpec{
		Name:    "lu",
		Control: "load_unload",
		Calibration: map[string]float64{
			"rated_power": 452.3,
			"rated_flow":  3138,
			"idle_power":  71.3,
		},
	}
}

func modulationSpec() ir.MachineSpec {
	return ir.MachineSpec{
		Name:    "mu",
		Control: "modulation_unload",
		Calibration: map[string]float64{
			"rated_power":      452.3,
			"rated_flow":       3138,
			"idle_power":       71.3,
			"transition_flow":  3005,
			"transition_power": 411.9,
			"unload_flow":      2731,
		},
	}
}

// newTestEvaluator builds an evaluator over all three test machines with a
// deterministic clock and a fixed run token.
func newTestEvaluator(t *testing.T, st *store.Store) *Evaluator {
	t.Helper()
	e, err := New(context.Background(), st,
		[]ir.MachineSpec{blowOffSpec(), loadUnloadSpec(), modulationSpec()},
		testutil.NewFixedRunGenerator("run-1"),
		WithClock(testutil.NewClock()),
	)
	require.NoError(t, err)
	return e
}

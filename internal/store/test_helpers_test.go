package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/aircurve/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testMachine returns the blow-off machine used across store tests.
func testMachine() ir.MachineSpec {
	return ir.MachineSpec{
		Name:    "centac-1",
		Control: "blow_off",
		Calibration: map[string]float64{
			"rated_power": 452.3,
			"rated_flow":  3138,
			"floor_power": 370.9,
			"floor_flow":  2510,
		},
	}
}

// writeTestMachine stores testMachine and returns its hash.
func writeTestMachine(t *testing.T, s *Store) string {
	t.Helper()
	spec := testMachine()
	hash, err := ir.MachineHash(spec)
	if err != nil {
		t.Fatalf("MachineHash() failed: %v", err)
	}
	if err := s.WriteMachine(context.Background(), hash, spec); err != nil {
		t.Fatalf("WriteMachine() failed: %v", err)
	}
	return hash
}

// createTestEvaluation creates a successful evaluation with minimal fields.
func createTestEvaluation(id, runToken, machineHash string, seq int64) ir.Evaluation {
	return ir.Evaluation{
		ID:          id,
		RunToken:    runToken,
		Machine:     "centac-1",
		MachineHash: machineHash,
		Control:     "blow_off",
		Entry:       "flow_fraction",
		Args:        ir.IRObject{"value": ir.IRFloat(0.01)},
		Seq:         seq,
		Outcome: ir.Outcome{
			Status: ir.StatusOK,
			Result: ir.IRObject{
				"power":  ir.IRFloat(370.9),
				"flow":   ir.IRFloat(31.38),
				"regime": ir.IRString("floor_pinned"),
			},
		},
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
}

// createTestFailure creates an evaluation that ended in a model error.
func createTestFailure(id, runToken, machineHash string, seq int64) ir.Evaluation {
	ev := createTestEvaluation(id, runToken, machineHash, seq)
	ev.Entry = "measured_power"
	ev.Args = ir.IRObject{"value": ir.IRString("NaN")}
	ev.Outcome = ir.Outcome{
		Status:       ir.StatusError,
		ErrorCode:    "NON_FINITE_INPUT",
		ErrorMessage: "NON_FINITE_INPUT: power: value NaN is not finite (blow_off)",
	}
	return ev
}

package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/aircurve/internal/ir"
	"github.com/roach88/aircurve/internal/store"
)

// Mismatch describes one field that replayed differently.
type Mismatch struct {
	EvaluationID string `json:"evaluation_id"`
	Seq          int64  `json:"seq"`
	Machine      string `json:"machine"`
	Field        string `json:"field"` // "id", "status", "error_code" or "result"
	Expected     string `json:"expected"`
	Actual       string `json:"actual"`
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Checked    int        `json:"checked"`
	Mismatches []Mismatch `json:"mismatches"`
}

// OK reports whether every record replayed identically.
func (r *ReplayResult) OK() bool {
	return len(r.Mismatches) == 0
}

// Replay re-evaluates recorded evaluations and checks that the model still
// produces them exactly.
//
// Each record is replayed against the machine definition stored with it,
// not against whatever definitions are current, so a replay checks the
// model's determinism in isolation. Results are compared as canonical JSON:
// a float that differs in its last bit is a mismatch.
//
// The record's content-addressed ID is recomputed too. An ID that no longer
// matches its fields means the record was edited after it was written.
//
// Replay covers one run, or every evaluation in the store when runToken is
// empty. logger may be nil.
func Replay(ctx context.Context, st *store.Store, runToken string, logger *slog.Logger) (*ReplayResult, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var (
		evs []ir.Evaluation
		err error
	)
	if runToken == "" {
		evs, err = st.ReadAllEvaluations(ctx)
	} else {
		evs, err = st.ReadRun(ctx, runToken)
	}
	if err != nil {
		return nil, storeError(runToken, "read evaluations", err)
	}

	machines := make(map[string]*Machine)
	result := &ReplayResult{Mismatches: []Mismatch{}}

	for _, ev := range evs {
		m, ok := machines[ev.MachineHash]
		if !ok {
			spec, err := st.ReadMachine(ctx, ev.MachineHash)
			if err != nil {
				return nil, storeError(ev.RunToken, fmt.Sprintf("read machine %s", ev.MachineHash), err)
			}
			if m, err = BuildMachine(spec); err != nil {
				return nil, err
			}
			machines[ev.MachineHash] = m
		}

		mismatches, err := replayOne(m, ev)
		if err != nil {
			return nil, err
		}
		result.Checked++
		for _, mm := range mismatches {
			logger.Warn("replay mismatch",
				"evaluation", mm.EvaluationID,
				"seq", mm.Seq,
				"field", mm.Field,
				"expected", mm.Expected,
				"actual", mm.Actual,
			)
		}
		result.Mismatches = append(result.Mismatches, mismatches...)
	}

	logger.Info("replay complete",
		"run", runToken,
		"checked", result.Checked,
		"mismatches", len(result.Mismatches),
	)
	return result, nil
}

func replayOne(m *Machine, ev ir.Evaluation) ([]Mismatch, error) {
	invalid := func(err error) error {
		return &RuntimeError{
			Code:     ErrCodeInvalidRecord,
			Message:  fmt.Sprintf("evaluation %s", ev.ID),
			Machine:  ev.Machine,
			RunToken: ev.RunToken,
			Err:      err,
		}
	}

	var out []Mismatch
	mismatch := func(field, expected, actual string) {
		out = append(out, Mismatch{
			EvaluationID: ev.ID,
			Seq:          ev.Seq,
			Machine:      ev.Machine,
			Field:        field,
			Expected:     expected,
			Actual:       actual,
		})
	}

	id, err := ir.EvaluationID(ev.RunToken, ev.Machine, ev.Entry, ev.Args, ev.Seq)
	if err != nil {
		return nil, invalid(err)
	}
	if id != ev.ID {
		mismatch("id", ev.ID, id)
	}

	q, err := QueryFromArgs(ev.Entry, ev.Args)
	if err != nil {
		return nil, invalid(err)
	}
	got, err := outcomeOf(m.Strategy, q)
	if err != nil {
		return nil, invalid(err)
	}

	want := ev.Outcome
	if got.Status != want.Status {
		mismatch("status", want.Status, got.Status)
		return out, nil
	}
	if !got.OK() {
		if got.ErrorCode != want.ErrorCode {
			mismatch("error_code", want.ErrorCode, got.ErrorCode)
		}
		return out, nil
	}

	wantJSON, err := ir.MarshalCanonical(want.Result)
	if err != nil {
		return nil, invalid(err)
	}
	gotJSON, err := ir.MarshalCanonical(got.Result)
	if err != nil {
		return nil, invalid(err)
	}
	if !bytes.Equal(wantJSON, gotJSON) {
		mismatch("result", string(wantJSON), string(gotJSON))
	}
	return out, nil
}

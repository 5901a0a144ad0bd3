package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/aircurve/internal/ir"
)

const evaluationColumns = `
	id, run_token, machine, machine_hash, control, entry, args, seq,
	status, result, error_code, error_message, engine_version, ir_version`

// RunSummary aggregates the evaluations recorded under one run token.
type RunSummary struct {
	RunToken string `json:"run_token"`
	Count    int64  `json:"count"`
	Errors   int64  `json:"errors"`
	FirstSeq int64  `json:"first_seq"`
	LastSeq  int64  `json:"last_seq"`
}

// ReadMachine retrieves a machine definition by content hash.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadMachine(ctx context.Context, hash string) (ir.MachineSpec, error) {
	var specJSON string
	err := s.db.QueryRowContext(ctx, `SELECT spec FROM machines WHERE hash = ?`, hash).Scan(&specJSON)
	if err != nil {
		return ir.MachineSpec{}, err
	}
	return unmarshalSpec(specJSON)
}

// ReadEvaluation retrieves a single evaluation by ID.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadEvaluation(ctx context.Context, id string) (ir.Evaluation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+evaluationColumns+` FROM evaluations WHERE id = ?`, id)
	return scanEvaluation(row)
}

// ReadRun returns all evaluations for a run token, in FindEvaluations order.
// An empty token matches every run.
func (s *Store) ReadRun(ctx context.Context, runToken string) ([]ir.Evaluation, error) {
	return s.FindEvaluations(ctx, Filter{RunToken: runToken})
}

// ReadAllEvaluations returns every evaluation in the log, in the same
// deterministic order as ReadRun.
func (s *Store) ReadAllEvaluations(ctx context.Context) ([]ir.Evaluation, error) {
	return s.FindEvaluations(ctx, Filter{})
}

// ListRuns summarizes every run in the log, ordered by first seq.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_token,
		       COUNT(*),
		       SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END),
		       MIN(seq),
		       MAX(seq)
		FROM evaluations
		GROUP BY run_token
		ORDER BY MIN(seq) ASC, run_token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunToken, &r.Count, &r.Errors, &r.FirstSeq, &r.LastSeq); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LastSeq returns the highest seq in the log, or 0 for an empty log.
// The engine resumes its clock from here so seq stays monotonic across
// processes sharing one database.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM evaluations`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

func (s *Store) queryEvaluations(ctx context.Context, query string, args ...any) ([]ir.Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	evs := []ir.Evaluation{}
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evs = append(evs, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return evs, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row scanner) (ir.Evaluation, error) {
	var (
		ev         ir.Evaluation
		argsJSON   string
		resultJSON string
	)
	err := row.Scan(
		&ev.ID,
		&ev.RunToken,
		&ev.Machine,
		&ev.MachineHash,
		&ev.Control,
		&ev.Entry,
		&argsJSON,
		&ev.Seq,
		&ev.Outcome.Status,
		&resultJSON,
		&ev.Outcome.ErrorCode,
		&ev.Outcome.ErrorMessage,
		&ev.EngineVersion,
		&ev.IRVersion,
	)
	if err != nil {
		return ir.Evaluation{}, fmt.Errorf("scan evaluation: %w", err)
	}

	if ev.Args, err = unmarshalObject("args", argsJSON); err != nil {
		return ir.Evaluation{}, err
	}
	if ev.Outcome.Status == ir.StatusOK {
		if ev.Outcome.Result, err = unmarshalObject("result", resultJSON); err != nil {
			return ir.Evaluation{}, err
		}
	}
	return ev, nil
}

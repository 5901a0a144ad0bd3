package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/aircurve/internal/ir"
)

// WriteMachine records a machine definition under its content hash.
// Uses ON CONFLICT(hash) DO NOTHING: the same definition is stored once no
// matter how many runs evaluate it.
func (s *Store) WriteMachine(ctx context.Context, hash string, spec ir.MachineSpec) error {
	specJSON, err := marshalSpec(spec)
	if err != nil {
		return fmt.Errorf("write machine: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO machines (hash, name, control, spec)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, spec.Name, spec.Control, specJSON)
	if err != nil {
		return fmt.Errorf("write machine: %w", err)
	}
	return nil
}

// ErrConflict is returned when an evaluation ID is already stored with
// different content.
var ErrConflict = errors.New("evaluation already recorded with different content")

// WriteEvaluation appends an evaluation record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency; inserted reports whether
// a new row was written. When the ID is already stored the stored row must
// hold the same content, otherwise the write fails with ErrConflict.
// Engine and IR versions are not compared. The referenced machine must
// already be stored (foreign key constraint).
//
// Args and Result are serialized to canonical JSON.
func (s *Store) WriteEvaluation(ctx context.Context, ev ir.Evaluation) (inserted bool, err error) {
	argsJSON, err := marshalObject("args", ev.Args)
	if err != nil {
		return false, fmt.Errorf("write evaluation: %w", err)
	}
	resultJSON, err := marshalObject("result", ev.Outcome.Result)
	if err != nil {
		return false, fmt.Errorf("write evaluation: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluations
		(id, run_token, machine, machine_hash, control, entry, args, seq,
		 status, result, error_code, error_message, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		ev.ID,
		ev.RunToken,
		ev.Machine,
		ev.MachineHash,
		ev.Control,
		ev.Entry,
		argsJSON,
		ev.Seq,
		ev.Outcome.Status,
		resultJSON,
		ev.Outcome.ErrorCode,
		ev.Outcome.ErrorMessage,
		ev.EngineVersion,
		ev.IRVersion,
	)
	if err != nil {
		return false, fmt.Errorf("write evaluation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write evaluation: rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	want := storedContent{
		ev.RunToken, ev.Machine, ev.MachineHash, ev.Control, ev.Entry, argsJSON, ev.Seq,
		ev.Outcome.Status, resultJSON, ev.Outcome.ErrorCode, ev.Outcome.ErrorMessage,
	}
	var got storedContent
	err = s.db.QueryRowContext(ctx, `
		SELECT run_token, machine, machine_hash, control, entry, args, seq,
		       status, result, error_code, error_message
		FROM evaluations WHERE id = ?
	`, ev.ID).Scan(
		&got.runToken, &got.machine, &got.machineHash, &got.control, &got.entry, &got.args, &got.seq,
		&got.status, &got.result, &got.errorCode, &got.errorMessage,
	)
	if err != nil {
		return false, fmt.Errorf("write evaluation: read existing %s: %w", ev.ID, err)
	}
	if got != want {
		return false, fmt.Errorf("write evaluation %s: %w", ev.ID, ErrConflict)
	}
	return false, nil
}

// storedContent is the part of an evaluation row a duplicate write must match.
type storedContent struct {
	runToken, machine, machineHash, control, entry, args string
	seq                                                  int64
	status, result, errorCode, errorMessage              string
}

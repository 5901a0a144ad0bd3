package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/aircurve/internal/compressor"
	"github.com/roach88/aircurve/internal/ir"
	"github.com/roach88/aircurve/internal/store"
)

// Evaluator answers queries against a fixed set of machines and records
// every answer as an ir.Evaluation.
//
// Thread-safety model:
//   - Machines are immutable after New; queries may run concurrently
//   - Seq numbers come from the clock, which is safe for concurrent use
//   - Store writes are serialized by the store's single connection
type Evaluator struct {
	store  *store.Store // nil: evaluations are returned but not persisted
	clock  SeqClock
	runGen RunTokenGenerator
	logger *slog.Logger

	machines map[string]*Machine
	order    []string // declaration order

	mu       sync.Mutex
	recorded map[string]bool // machine hashes already written to the store
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock replaces the seq clock. Without it the evaluator resumes after
// the highest seq in the store (or starts at 0 without a store).
func WithClock(c SeqClock) Option {
	return func(e *Evaluator) {
		e.clock = c
	}
}

// WithLogger sets the structured logger. Defaults to discarding output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// New builds every machine in specs and returns an evaluator for them.
//
// Machine names must be unique. st may be nil, in which case evaluations are
// computed but not persisted.
func New(ctx context.Context, st *store.Store, specs []ir.MachineSpec, gen RunTokenGenerator, opts ...Option) (*Evaluator, error) {
	e := &Evaluator{
		store:    st,
		runGen:   gen,
		machines: make(map[string]*Machine, len(specs)),
		recorded: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	for _, spec := range specs {
		if _, dup := e.machines[spec.Name]; dup {
			return nil, &RuntimeError{
				Code:    ErrCodeInvalidMachine,
				Message: "duplicate machine name",
				Machine: spec.Name,
			}
		}
		m, err := BuildMachine(spec)
		if err != nil {
			return nil, err
		}
		e.machines[spec.Name] = m
		e.order = append(e.order, spec.Name)
	}

	if e.clock == nil {
		var last int64
		if st != nil {
			var err error
			if last, err = st.LastSeq(ctx); err != nil {
				return nil, storeError("", "resume clock", err)
			}
		}
		e.clock = NewClockAt(last)
	}

	return e, nil
}

// NewRun returns a fresh run token from the evaluator's generator.
func (e *Evaluator) NewRun() string {
	return e.runGen.Generate()
}

// Machine returns the named machine.
func (e *Evaluator) Machine(name string) (*Machine, bool) {
	m, ok := e.machines[name]
	return m, ok
}

// Machines returns machine names in declaration order.
func (e *Evaluator) Machines() []string {
	return append([]string(nil), e.order...)
}

// Evaluate answers q against the named machine and records the result.
//
// A model error (bad input, unsupported query) is not a Go error: it is
// returned inside the evaluation's Outcome with status "error". The error
// return is reserved for unknown machines and store failures.
func (e *Evaluator) Evaluate(ctx context.Context, runToken, machine string, q compressor.Query) (ir.Evaluation, error) {
	m, ok := e.machines[machine]
	if !ok {
		return ir.Evaluation{}, &RuntimeError{
			Code:     ErrCodeUnknownMachine,
			Message:  "no machine with this name is loaded",
			Machine:  machine,
			RunToken: runToken,
		}
	}

	args := QueryArgs(q)
	seq := e.clock.Next()
	id, err := ir.EvaluationID(runToken, machine, string(q.Entry), args, seq)
	if err != nil {
		return ir.Evaluation{}, fmt.Errorf("evaluation id: %w", err)
	}

	outcome, err := outcomeOf(m.Strategy, q)
	if err != nil {
		return ir.Evaluation{}, err
	}

	ev := ir.Evaluation{
		ID:            id,
		RunToken:      runToken,
		Machine:       machine,
		MachineHash:   m.Hash,
		Control:       m.Spec.Control,
		Entry:         string(q.Entry),
		Args:          args,
		Seq:           seq,
		Outcome:       outcome,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}

	if err := e.record(ctx, m, ev); err != nil {
		return ir.Evaluation{}, err
	}

	e.logger.Debug("evaluation",
		"run", runToken,
		"seq", seq,
		"machine", machine,
		"entry", ev.Entry,
		"status", outcome.Status,
		"error_code", outcome.ErrorCode,
	)
	return ev, nil
}

// outcomeOf runs the query and folds a model error into the outcome.
func outcomeOf(s compressor.Strategy, q compressor.Query) (ir.Outcome, error) {
	op, err := s.Evaluate(q)
	if err != nil {
		code := compressor.CodeOf(err)
		if code == "" {
			return ir.Outcome{}, fmt.Errorf("evaluate: %w", err)
		}
		return ir.Outcome{
			Status:       ir.StatusError,
			ErrorCode:    string(code),
			ErrorMessage: err.Error(),
		}, nil
	}
	return ir.Outcome{Status: ir.StatusOK, Result: PointResult(op)}, nil
}

func (e *Evaluator) record(ctx context.Context, m *Machine, ev ir.Evaluation) error {
	if e.store == nil {
		return nil
	}

	e.mu.Lock()
	seen := e.recorded[m.Hash]
	e.mu.Unlock()
	if !seen {
		if err := e.store.WriteMachine(ctx, m.Hash, m.Spec); err != nil {
			return storeError(ev.RunToken, "write machine", err)
		}
		e.mu.Lock()
		e.recorded[m.Hash] = true
		e.mu.Unlock()
	}

	inserted, err := e.store.WriteEvaluation(ctx, ev)
	if err != nil {
		return storeError(ev.RunToken, "write evaluation", err)
	}
	if !inserted {
		e.logger.Debug("evaluation already recorded", "id", ev.ID, "run", ev.RunToken)
	}
	return nil
}

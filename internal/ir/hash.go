package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows a future algorithm migration.
const (
	DomainEvaluation = "aircurve/evaluation/v1"
	DomainMachine    = "aircurve/machine/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EvaluationID computes the content-addressed ID of an evaluation.
// The ID is stable across restarts and replays given the same inputs, so a
// replayed evaluation maps onto the record it reproduces.
func EvaluationID(runToken, machine, entry string, args IRObject, seq int64) (string, error) {
	obj := IRObject{
		"run_token": IRString(runToken),
		"machine":   IRString(machine),
		"entry":     IRString(entry),
		"args":      args,
		"seq":       IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EvaluationID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvaluation, canonical), nil
}

// MachineHash computes the content hash of a compiled machine definition.
// Evaluations record it so replay can tell when a definition changed.
func MachineHash(m MachineSpec) (string, error) {
	canonical, err := MarshalCanonical(m.IRObject())
	if err != nil {
		return "", fmt.Errorf("MachineHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainMachine, canonical), nil
}

// MustEvaluationID is like EvaluationID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEvaluationID(runToken, machine, entry string, args IRObject, seq int64) string {
	id, err := EvaluationID(runToken, machine, entry, args, seq)
	if err != nil {
		panic(err)
	}
	return id
}

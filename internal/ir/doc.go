// Package ir provides the record types shared by the compiler, engine and
// store: compiled machine definitions, evaluation records and the constrained
// value model used for their arguments and results.
//
// This package contains type definitions and their canonical encoding only.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Floats are allowed but must be finite; NaN and Inf never reach a record
//   - Canonical JSON (MarshalCanonical) is the only input to content hashes
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir

// Package engine evaluates queries against compiled machine definitions and
// keeps the evaluation log.
//
// ARCHITECTURE:
//
// An Evaluator owns a fixed set of machines, built once from ir.MachineSpec
// values by BuildMachine. Each call to Evaluate:
//  1. Looks up the machine by name
//  2. Encodes the query's numbers as args (QueryArgs)
//  3. Stamps the next seq from the logical clock
//  4. Derives a content-addressed evaluation ID
//  5. Runs the strategy, folding any model error into the Outcome
//  6. Writes the machine (once) and the evaluation to the store
//
// Replay reads records back, rebuilds each machine from its stored
// definition and checks that every result is reproduced exactly.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Every evaluation is stamped with a monotonic seq from the clock. Wall-clock
// time is never recorded, so a replayed run is byte-identical to the original.
//
// Errors as Data:
// Invalid input is a property of the query, not a failure of the engine. It
// is recorded with its error code and replayed like any other result.
package engine

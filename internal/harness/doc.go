// Package harness provides conformance testing for compressor machine
// definitions.
//
// The harness evaluates queries against compiled machines through the real
// engine, checks each operating point against its expectation and validates
// cross-step properties as executable contract tests.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	run_token: fixed-token
//	steps:
//	  - machine: centac
//	    query: { entry: power_fraction, value: 0.36 }
//	    expect:
//	      regime: load_unload
//	      power: 162.828
//	      flow: 753.845
//	  - machine: centac
//	    query: { entry: power_fraction, value: 0.36, auxiliary_fraction: 0.1 }
//	    expect:
//	      error: UNSUPPORTED_QUERY
//	assertions:
//	  - type: agree
//	    steps: [0, 2]
//	    fields: [power, flow]
//	    tolerance: 1e-3
//	  - type: replay
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - agree: the listed steps resolved to the same values
//   - monotonic: a result field strictly increases or decreases across steps
//   - count: the run recorded exactly N evaluations (by machine and status)
//   - replay: re-evaluating the recorded run reproduces every result
//
// # Deterministic Testing
//
// All scenarios execute with a deterministic clock and run token so that
// repeated runs produce identical evaluation IDs and traces.
//
// The harness uses:
//   - A fixed run token (scenario.run_token or "test-run-default")
//   - A logical clock restarted at zero for every run (testutil.Clock)
//   - In-memory SQLite database (isolated per scenario)
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/load_unload.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario, specs)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness

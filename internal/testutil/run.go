package testutil

// FixedRunGenerator generates the same run token every time.
//
// Every evaluation in a scenario then shares one run token, so the same
// scenario always produces byte-identical evaluation IDs and golden traces.
//
// Unlike engine.FixedGenerator, which hands out tokens in sequence and panics
// when they run out, this generator never runs out.
//
// Thread-safety: FixedRunGenerator is stateless and safe for concurrent use.
type FixedRunGenerator struct {
	token string
}

// NewFixedRunGenerator creates a new fixed run token generator.
//
// The token is typically set in the scenario YAML:
//
//	run_token: "test-run-00000000-0000-0000-0000-000000000001"
//
// If token is empty, Generate() returns "test-run-default".
func NewFixedRunGenerator(token string) *FixedRunGenerator {
	if token == "" {
		token = "test-run-default"
	}
	return &FixedRunGenerator{token: token}
}

// Generate returns the fixed run token.
//
// Implements engine.RunTokenGenerator.
func (g *FixedRunGenerator) Generate() string {
	return g.token
}

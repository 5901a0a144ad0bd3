package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/aircurve/internal/engine"
)

var (
	testDefsDir      = filepath.Join("testdata", "defs")
	testScenariosDir = filepath.Join("testdata", "scenarios")
	testTablePath    = filepath.Join("testdata", "tables", "lu_table.yaml")
)

// writeDefs writes a single-file definitions directory and returns its path.
func writeDefs(t *testing.T, src string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "defs")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "machines.cue"), []byte(src), 0644))
	return dir
}

// runEvalCmd runs eval against the testdata definitions with a fixed run
// token and returns stdout and the command error.
func runEvalCmd(t *testing.T, format, runToken string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newEvalCommand(&EvalOptions{
		RootOptions:  &RootOptions{Format: format},
		RunGenerator: engine.NewFixedGenerator(runToken),
	})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

// seedRun records evaluations under runToken into a fresh database and
// returns its path. Each query is a flag list for one eval of machine lu.
func seedRun(t *testing.T, runToken string, queries ...[]string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "air.db")
	for _, q := range queries {
		args := append([]string{testDefsDir, "lu", "--db", dbPath, "--run", runToken}, q...)
		_, _ = runEvalCmd(t, "text", runToken, args...)
	}
	return dbPath
}

// Command aircurve evaluates part-load operating points of centrifugal air
// compressors from CUE machine definitions.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/aircurve/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

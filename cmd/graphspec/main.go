// Command graphspec runs behaviour specifications against SPARQL backends.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/graphspec/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		// Spec failures were already reported on stdout.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || exitErr.Code != cli.ExitFailure {
			fmt.Fprintln(os.Stderr, "graphspec:", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}

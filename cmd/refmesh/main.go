// Command refmesh replicates refs between federated origins.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/refmesh/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}

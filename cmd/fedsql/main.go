// Command fedsql compiles dialect-neutral queries to SQL and runs them
// across many database connections.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/fedsql/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands print their own errors; only flag and usage errors reach here unprinted.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}

// Command ctpipeline is the operator CLI for the deterministic, bit-reproducible
// ML data pipeline (SPEC_FULL.md §4.13). It never touches the core's data-path
// contract; it only loads configuration, drives the core, and reports results.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/ctpipeline/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

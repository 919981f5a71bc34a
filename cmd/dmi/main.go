// Command dmi is the offline command line for extraction, training,
// prediction and evaluation.
package main

import (
	"os"

	"github.com/turtacn/DataMention-Intelligence/internal/interfaces/cli"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	// Execute prints the error itself.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

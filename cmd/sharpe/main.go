// Command sharpe computes the maximum-Sharpe allocation of a set of tickers
// from the terminal.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&optimizeCmd{}, "optimization")
	commander.Register(&rateCmd{}, "optimization")
	commander.Register(&validateCmd{}, "optimization")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(commander.Execute(ctx)))
}

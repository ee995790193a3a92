package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/aristath/sharpe/internal/domain"
	"github.com/aristath/sharpe/internal/modules/report"
	"github.com/google/subcommands"
)

// validateCmd holds the flags for the 'validate' subcommand.
type validateCmd struct {
	offline bool

	out io.Writer
}

func (*validateCmd) Name() string     { return "validate" }
func (*validateCmd) Synopsis() string { return "check that tickers are well formed and quoted" }
func (*validateCmd) Usage() string {
	return `sharpe validate [-offline] ticker...

  Normalizes every ticker and, unless -offline is given, asks Yahoo Finance
  for its regular market price. Exits non-zero if any ticker is unknown.
`
}

func (c *validateCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.offline, "offline", false, "only check ticker syntax")
}

func (c *validateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	out := c.out
	if out == nil {
		out = os.Stdout
	}

	var raw []string
	for _, arg := range f.Args() {
		raw = append(raw, domain.SplitTickers(arg)...)
	}
	tickers, err := domain.ValidateTickers(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	if c.offline {
		for _, ticker := range tickers {
			fmt.Fprintf(out, "%s\tok\n", ticker)
		}
		return subcommands.ExitSuccess
	}

	a, err := openApp(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	status := subcommands.ExitSuccess
	for _, ticker := range tickers {
		price, err := domain.CheckTickerExists(ctx, a.container.QuoteClient, ticker)
		if err != nil {
			fmt.Fprintf(out, "%s\t%v\n", ticker, err)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", ticker, report.Number(price, 2))
	}
	return status
}

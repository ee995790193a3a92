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

// rateCmd holds the flags for the 'rate' subcommand.
type rateCmd struct {
	out io.Writer
}

func (*rateCmd) Name() string     { return "rate" }
func (*rateCmd) Synopsis() string { return "print the risk-free rate used by the optimizer" }
func (*rateCmd) Usage() string {
	return `sharpe rate

  Prints the latest observation of the configured FRED series (GS10 by default)
  and the monthly rate derived from it. A RISK_FREE_RATE override wins.
`
}

func (c *rateCmd) SetFlags(f *flag.FlagSet) {}

func (c *rateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	out := c.out
	if out == nil {
		out = os.Stdout
	}

	if a.cfg.RiskFreeRate != nil {
		monthly := *a.cfg.RiskFreeRate
		fmt.Fprintf(out, "Source:  RISK_FREE_RATE\nMonthly: %s\nAnnual:  %s\n",
			report.Percent(monthly), report.Percent(monthly*12))
		return subcommands.ExitSuccess
	}

	obs, err := a.container.FREDClient.LatestObservation(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Fprintf(out, "Source:  FRED %s (%s)\nMonthly: %s\nAnnual:  %s\n",
		obs.Series, obs.Date.Format(domain.DateLayout),
		report.Percent(obs.Monthly()), report.Percent(obs.Percent/100))
	return subcommands.ExitSuccess
}

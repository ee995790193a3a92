package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/aristath/sharpe/internal/config"
	"github.com/aristath/sharpe/internal/domain"
	"github.com/aristath/sharpe/internal/modules/optimization"
	"github.com/aristath/sharpe/internal/modules/report"
	"github.com/google/subcommands"
)

// optimizeCmd holds the flags for the 'optimize' subcommand.
type optimizeCmd struct {
	start     string
	end       string
	tickers   string
	rf        optionalFloat
	minWeight optionalFloat
	maxWeight optionalFloat
	check     bool
	chart     string
	growth    string
	asJSON    bool
	width     int

	in  io.Reader
	out io.Writer
}

func (*optimizeCmd) Name() string     { return "optimize" }
func (*optimizeCmd) Synopsis() string { return "compute the maximum-Sharpe allocation of a set of tickers" }
func (*optimizeCmd) Usage() string {
	return `sharpe optimize -start <YYYY-MM-DD> -end <YYYY-MM-DD> [-t AAPL,MSFT] [ticker...]

  Fetches monthly price history for every ticker, estimates mean returns and
  covariance, and prints the long-only allocation with the highest Sharpe ratio.
  Without tickers on the command line they are read from stdin until STOP.
`
}

func (c *optimizeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.start, "start", "", "first day of the holding period (YYYY-MM-DD)")
	f.StringVar(&c.end, "end", "", "last day of the holding period (YYYY-MM-DD)")
	f.StringVar(&c.tickers, "t", "", "comma separated tickers")
	f.Var(&c.rf, "rf", "monthly risk-free rate as a decimal; defaults to RISK_FREE_RATE or FRED")
	f.Var(&c.minWeight, "min", "minimum weight per ticker")
	f.Var(&c.maxWeight, "max", "maximum weight per ticker")
	f.BoolVar(&c.check, "check", false, "verify every ticker has a market price before fetching history")
	f.StringVar(&c.chart, "chart", "", "write the allocation pie chart to this PNG file")
	f.StringVar(&c.growth, "growth", "", "write the portfolio growth chart to this PNG file")
	f.BoolVar(&c.asJSON, "json", false, "print the result as JSON instead of a report")
	f.IntVar(&c.width, "width", 100, "report word wrap width")
}

func (c *optimizeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	period, err := domain.ParseHoldingPeriod(c.start, c.end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	raw := append(domain.SplitTickers(c.tickers), f.Args()...)
	if len(raw) == 0 {
		raw, err = readTickers(c.stdin(), os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
	}
	tickers, err := domain.ValidateTickers(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	a, err := openApp(func(cfg *config.Config) {
		if c.minWeight.value != nil {
			cfg.Optimizer.MinWeight = *c.minWeight.value
		}
		if c.maxWeight.value != nil {
			cfg.Optimizer.MaxWeight = *c.maxWeight.value
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	result, err := a.container.OptimizationService.Optimize(ctx, optimization.Request{
		Tickers:      tickers,
		Period:       period,
		RiskFreeRate: c.rf.value,
		CheckTickers: c.check,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.chart != "" {
		if err := c.writeChart(c.chart, func() ([]byte, error) { return a.container.ChartService.AllocationPie(result) }); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
	}
	if c.growth != "" {
		if err := c.writeChart(c.growth, func() ([]byte, error) { return a.container.ChartService.GrowthChart(result) }); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	if c.asJSON {
		if err := c.printJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	md, err := report.Markdown(result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	out, err := report.Render(md, c.width)
	if err != nil {
		// fall back to raw markdown
		out = md
	}
	fmt.Fprint(c.stdout(), out)

	return subcommands.ExitSuccess
}

// jsonResult is the machine readable output of 'optimize -json'
type jsonResult struct {
	RunID        string                        `json:"run_id"`
	Start        string                        `json:"start"`
	End          string                        `json:"end"`
	Periods      int                           `json:"periods"`
	Weights      map[string]float64            `json:"weights"`
	RiskFreeRate float64                       `json:"risk_free_rate"`
	Metrics      optimization.PortfolioMetrics `json:"metrics"`
	Method       string                        `json:"method"`
}

func (c *optimizeCmd) printJSON(result *optimization.Result) error {
	out := jsonResult{
		RunID:        result.RunID,
		Periods:      result.Statistics.Periods,
		Weights:      result.Weights(),
		RiskFreeRate: result.RiskFreeRate,
		Metrics:      result.Optimization.Metrics,
		Method:       result.Optimization.Method,
	}
	if result.Period != nil {
		out.Start = result.Period.Start.Format(domain.DateLayout)
		out.End = result.Period.End.Format(domain.DateLayout)
	}
	enc := json.NewEncoder(c.stdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (c *optimizeCmd) writeChart(name string, render func() ([]byte, error)) error {
	png, err := render()
	if err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	if err := os.WriteFile(name, png, 0644); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	return nil
}

func (c *optimizeCmd) stdin() io.Reader {
	if c.in != nil {
		return c.in
	}
	return os.Stdin
}

func (c *optimizeCmd) stdout() io.Writer {
	if c.out != nil {
		return c.out
	}
	return os.Stdout
}

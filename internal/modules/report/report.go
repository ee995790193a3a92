// Package report renders an optimization result as a markdown report for the terminal.
package report

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/aristath/sharpe/internal/domain"
	"github.com/aristath/sharpe/internal/modules/optimization"
	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Percent formats a decimal fraction as a percentage with two decimals.
func Percent(v float64) string {
	return decimal.NewFromFloat(v).Mul(hundred).StringFixed(2) + "%"
}

// Number formats v with the given number of decimals.
func Number(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

const reportTemplate = `# Sharpe-optimal portfolio

{{if .Period}}Holding period **{{.Period}}**, {{end}}{{.Periods}} monthly returns.{{if .RunID}} Run ` + "`{{.RunID}}`" + `.{{end}}

## Optimal weights

| Ticker | Weight |
|:--|--:|
{{range .Rows}}| {{.Ticker}} | {{.Weight}} |
{{end}}
## Average monthly returns

| Ticker | Mean return |
|:--|--:|
{{range .Rows}}| {{.Ticker}} | {{.Mean}} |
{{end}}
## Monthly risks

| Ticker | Standard deviation |
|:--|--:|
{{range .Rows}}| {{.Ticker}} | {{.Risk}} |
{{end}}
## Covariance matrix

{{.Covariance}}
{{if .Correlated}}## Highly correlated pairs

{{range .Correlated}}- {{.Ticker1}} / {{.Ticker2}}: {{printf "%.2f" .Correlation}}
{{end}}
{{end}}## Portfolio

| Metric | Value |
|:--|--:|
| Expected monthly return | {{.Return}} |
| Monthly risk | {{.Risk}} |
| Risk-free rate (monthly) | {{.RiskFree}} |
| Sharpe ratio | {{.Sharpe}} |
| Solver | {{.Solver}} |
`

var tmpl = template.Must(template.New("report").Parse(reportTemplate))

type row struct {
	Ticker string
	Weight string
	Mean   string
	Risk   string
}

type view struct {
	RunID      string
	Period     string
	Periods    int
	Rows       []row
	Covariance string
	Correlated []optimization.CorrelationPair
	Return     string
	Risk       string
	RiskFree   string
	Sharpe     string
	Solver     string
}

// Markdown renders the report sections of a result: weights, mean returns,
// risks, covariance, highly correlated pairs and the portfolio metrics.
func Markdown(result *optimization.Result) (string, error) {
	if result == nil || result.Statistics == nil || result.Optimization == nil {
		return "", domain.InputError("report", "incomplete optimization result")
	}

	stats := result.Statistics
	opt := result.Optimization

	v := view{
		RunID:      result.RunID,
		Periods:    stats.Periods,
		Covariance: matrixTable(result.Tickers, stats.CovarianceRows()),
		Correlated: optimization.HighCorrelations(stats, optimization.HighCorrelationThreshold),
		Return:     Percent(opt.Metrics.Return),
		Risk:       Percent(opt.Metrics.Risk),
		RiskFree:   Percent(result.RiskFreeRate),
		Sharpe:     Number(opt.Sharpe, 4),
		Solver:     fmt.Sprintf("%s (%s, %d iterations)", opt.Method, opt.Status, opt.Iterations),
	}
	if result.Period != nil {
		v.Period = result.Period.String()
	}
	for _, a := range result.Allocations() {
		v.Rows = append(v.Rows, row{
			Ticker: a.Ticker,
			Weight: Percent(a.Weight),
			Mean:   Percent(a.MeanReturn),
			Risk:   Percent(a.Risk),
		})
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, v); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return b.String(), nil
}

// matrixTable formats a square matrix as a markdown table with ticker headers.
func matrixTable(tickers []string, rows [][]float64) string {
	var b strings.Builder
	b.WriteString("| |")
	for _, t := range tickers {
		b.WriteString(" " + t + " |")
	}
	b.WriteString("\n|:--|")
	for range tickers {
		b.WriteString("--:|")
	}
	b.WriteString("\n")
	for i, r := range rows {
		b.WriteString("| " + tickers[i] + " |")
		for _, v := range r {
			b.WriteString(" " + Number(v, 6) + " |")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Render formats markdown for a terminal of the given width.
func Render(markdown string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

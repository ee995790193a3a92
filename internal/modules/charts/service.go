// Package charts renders optimization results as chart data and PNG images.
package charts

import (
	"fmt"
	"strconv"

	"github.com/aristath/sharpe/internal/domain"
	"github.com/aristath/sharpe/internal/modules/optimization"
	"github.com/rs/zerolog"
	"github.com/vicanso/go-charts/v2"
)

const (
	chartWidth  = 800
	chartHeight = 600
)

// ChartDataPoint represents a single point on a chart
type ChartDataPoint struct {
	Time  string  `json:"time"`  // YYYY-MM-DD, or the period index for undated returns
	Value float64 `json:"value"` // growth of one unit invested
}

// Service provides chart operations for optimization results
type Service struct {
	log zerolog.Logger
}

// NewService creates a new charts service
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("service", "charts").Logger(),
	}
}

// GrowthSeries returns the growth of one unit invested in the optimal
// portfolio, rebalanced monthly, over the observed periods.
func (s *Service) GrowthSeries(result *optimization.Result) []ChartDataPoint {
	if result.Returns == nil || result.Optimization == nil {
		return []ChartDataPoint{}
	}

	returns := result.Returns.PortfolioReturns(result.Optimization.Weights)
	points := make([]ChartDataPoint, len(returns))
	value := 1.0
	for i, r := range returns {
		value *= 1 + r
		points[i] = ChartDataPoint{Time: periodLabel(result, i), Value: value}
	}
	return points
}

// AllocationPie renders the optimal weights as a PNG pie chart.
func (s *Service) AllocationPie(result *optimization.Result) ([]byte, error) {
	if result.Optimization == nil || len(result.Tickers) == 0 {
		return nil, fmt.Errorf("no allocation to chart")
	}

	values := make([]float64, len(result.Tickers))
	labels := make([]string, len(result.Tickers))
	for i, ticker := range result.Tickers {
		w := result.Optimization.Weights[i]
		values[i] = w
		labels[i] = fmt.Sprintf("%s (%.1f%%)", ticker, w*100)
	}

	p, err := charts.PieRender(
		values,
		charts.TitleTextOptionFunc(fmt.Sprintf("Max-Sharpe allocation (Sharpe %.3f)", result.Optimization.Sharpe)),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: labels,
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(chartWidth),
		charts.HeightOptionFunc(chartHeight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render allocation chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}

	s.log.Debug().Int("assets", len(values)).Int("bytes", len(buf)).Msg("Rendered allocation chart")
	return buf, nil
}

// GrowthChart renders GrowthSeries as a PNG line chart.
func (s *Service) GrowthChart(result *optimization.Result) ([]byte, error) {
	points := s.GrowthSeries(result)
	if len(points) == 0 {
		return nil, fmt.Errorf("no returns to chart")
	}

	values := make([]float64, len(points))
	labels := make([]string, len(points))
	for i, p := range points {
		values[i] = p.Value
		labels[i] = p.Time
	}

	p, err := charts.LineRender(
		[][]float64{values},
		charts.TitleTextOptionFunc("Growth of 1 in the optimal portfolio"),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(chartWidth),
		charts.HeightOptionFunc(chartHeight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render growth chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

func periodLabel(result *optimization.Result, i int) string {
	if i < len(result.Periods) {
		return result.Periods[i].Format(domain.DateLayout)
	}
	return strconv.Itoa(i + 1)
}

package optimization

import (
	"time"

	"github.com/aristath/sharpe/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// ReturnSeries holds the monthly simple returns of one ticker.
// Periods[k] is the month-end date the return Returns[k] was realised in.
type ReturnSeries struct {
	Ticker  string      `json:"ticker"`
	Periods []time.Time `json:"periods"`
	Returns []float64   `json:"returns"`
}

// Len returns the number of return observations.
func (s ReturnSeries) Len() int {
	return len(s.Returns)
}

// ReturnMatrix is a rectangular table of returns sharing one period axis.
// Rows are periods and columns are assets, the layout gonum/stat expects.
type ReturnMatrix struct {
	Tickers []string
	Periods []time.Time // nil when the returns were supplied without dates
	Data    *mat.Dense
}

// Len returns the number of aligned periods.
func (m *ReturnMatrix) Len() int {
	r, _ := m.Data.Dims()
	return r
}

// PortfolioReturns returns the per-period return of a portfolio holding weights.
func (m *ReturnMatrix) PortfolioReturns(weights []float64) []float64 {
	var out mat.VecDense
	out.MulVec(m.Data, mat.NewVecDense(len(weights), weights))
	return out.RawVector().Data
}

// Column returns a copy of the returns of asset j.
func (m *ReturnMatrix) Column(j int) []float64 {
	return mat.Col(nil, j, m.Data)
}

// Statistics are the per-asset summary statistics consumed by the optimizer.
type Statistics struct {
	Tickers    []string
	Periods    int
	Means      []float64     // arithmetic mean monthly return
	Risks      []float64     // sample standard deviation (N-1)
	Covariance *mat.SymDense // sample covariance (N-1)
}

// CovarianceRows returns the covariance matrix as nested slices.
func (s *Statistics) CovarianceRows() [][]float64 {
	return symRows(s.Covariance)
}

// CorrelationPair is a pair of assets and their return correlation.
type CorrelationPair struct {
	Ticker1     string  `json:"ticker1"`
	Ticker2     string  `json:"ticker2"`
	Correlation float64 `json:"correlation"`
}

// WeightBounds is the allowed weight range of one asset.
type WeightBounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Bounds are the per-asset weight bounds, index-aligned with the tickers.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// PortfolioMetrics describes a weight vector evaluated against the statistics.
type PortfolioMetrics struct {
	Return   float64 `json:"expected_return"`
	Variance float64 `json:"variance"`
	Risk     float64 `json:"risk"`
	Sharpe   float64 `json:"sharpe_ratio"`
}

// OptimizationResult is the outcome of a converged max-Sharpe search.
type OptimizationResult struct {
	Weights         []float64        `json:"weights"`
	NegSharpe       float64          `json:"neg_sharpe"`
	Sharpe          float64          `json:"sharpe_ratio"`
	Metrics         PortfolioMetrics `json:"metrics"`
	Status          string           `json:"status"`
	Method          string           `json:"method"`
	Iterations      int              `json:"iterations"`
	FuncEvaluations int              `json:"func_evaluations"`
}

// Allocation is one line of an optimal portfolio.
type Allocation struct {
	Ticker     string  `json:"ticker"`
	Weight     float64 `json:"weight"`
	MeanReturn float64 `json:"mean_return"`
	Risk       float64 `json:"risk"`
}

// Result is the full output of an optimization run.
type Result struct {
	RunID        string
	Tickers      []string
	Period       *domain.HoldingPeriod // nil for runs on supplied returns
	Periods      []time.Time
	Returns      *ReturnMatrix
	Statistics   *Statistics
	Correlation  *mat.SymDense
	RiskFreeRate float64
	Optimization *OptimizationResult
	CreatedAt    time.Time
}

// Allocations pairs every ticker with its optimal weight and statistics.
func (r *Result) Allocations() []Allocation {
	out := make([]Allocation, len(r.Tickers))
	for i, ticker := range r.Tickers {
		out[i] = Allocation{
			Ticker:     ticker,
			Weight:     r.Optimization.Weights[i],
			MeanReturn: r.Statistics.Means[i],
			Risk:       r.Statistics.Risks[i],
		}
	}
	return out
}

// Weights returns the optimal weights keyed by ticker.
func (r *Result) Weights() map[string]float64 {
	weights := make(map[string]float64, len(r.Tickers))
	for i, ticker := range r.Tickers {
		weights[ticker] = r.Optimization.Weights[i]
	}
	return weights
}

func symRows(m mat.Symmetric) [][]float64 {
	if m == nil {
		return nil
	}
	n, _ := m.Dims()
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			rows[i][j] = m.At(i, j)
		}
	}
	return rows
}

// SymRows returns a symmetric matrix as nested slices.
func SymRows(m mat.Symmetric) [][]float64 {
	return symRows(m)
}

package optimization

import (
	"math"

	"github.com/aristath/sharpe/internal/domain"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// HighCorrelationThreshold is the absolute correlation reported as "high".
const HighCorrelationThreshold = 0.80

// ComputeStatistics derives the mean vector, the risk vector and the sample
// covariance matrix from a return matrix.
//
// Means are arithmetic. Risks and covariances use the N-1 denominator.
func ComputeStatistics(m *ReturnMatrix) (*Statistics, error) {
	if m == nil || m.Data == nil {
		return nil, domain.InputError("statistics", "no return matrix")
	}

	periods, assets := m.Data.Dims()
	if periods < MinPeriods {
		return nil, domain.DataError("statistics",
			"insufficient history: %d periods, need %d", periods, MinPeriods)
	}

	stats := &Statistics{
		Tickers: m.Tickers,
		Periods: periods,
		Means:   make([]float64, assets),
		Risks:   make([]float64, assets),
	}
	for j := 0; j < assets; j++ {
		col := m.Column(j)
		stats.Means[j] = stat.Mean(col, nil)
		stats.Risks[j] = stat.StdDev(col, nil)
	}

	cov := mat.NewSymDense(assets, nil)
	stat.CovarianceMatrix(cov, m.Data, nil)
	stats.Covariance = cov

	for j := 0; j < assets; j++ {
		if !isFinite(stats.Means[j]) || !isFinite(stats.Risks[j]) {
			return nil, domain.DataError("statistics", "non-finite statistics for %s", m.Tickers[j])
		}
	}

	return stats, nil
}

// CorrelationMatrix converts a covariance matrix into a correlation matrix.
// correlation(i,j) = covariance(i,j) / sqrt(variance(i) * variance(j))
// Assets with zero variance get zero correlation with everything else.
func CorrelationMatrix(cov mat.Symmetric) *mat.SymDense {
	n, _ := cov.Dims()
	corr := mat.NewSymDense(n, nil)

	for i := 0; i < n; i++ {
		vi := cov.At(i, i)
		for j := i; j < n; j++ {
			vj := cov.At(j, j)
			if vi <= 0 || vj <= 0 {
				continue
			}
			if i == j {
				corr.SetSym(i, j, 1)
				continue
			}
			c := cov.At(i, j) / math.Sqrt(vi*vj)
			// clamp rounding drift
			corr.SetSym(i, j, math.Max(-1, math.Min(1, c)))
		}
	}

	return corr
}

// HighCorrelations lists the asset pairs whose absolute correlation is at
// least threshold, in ticker order.
func HighCorrelations(stats *Statistics, threshold float64) []CorrelationPair {
	corr := CorrelationMatrix(stats.Covariance)
	n := len(stats.Tickers)

	pairs := make([]CorrelationPair, 0)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := corr.At(i, j)
			if math.Abs(c) >= threshold {
				pairs = append(pairs, CorrelationPair{
					Ticker1:     stats.Tickers[i],
					Ticker2:     stats.Tickers[j],
					Correlation: c,
				})
			}
		}
	}

	return pairs
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package optimization

import (
	"math"

	"github.com/aristath/sharpe/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// PortfolioVariance returns wᵀΣw.
func PortfolioVariance(weights []float64, cov mat.Symmetric) float64 {
	w := mat.NewVecDense(len(weights), weights)
	return mat.Inner(w, cov, w)
}

// PortfolioReturn returns Σ meanᵢwᵢ.
func PortfolioReturn(weights, means []float64) float64 {
	return floats.Dot(weights, means)
}

// EvaluatePortfolio computes return, variance, risk and Sharpe ratio of a
// weight vector.
//
// A negative variance (floating-point error on a near-singular covariance
// matrix) or a zero risk is reported as ErrNumeric.
func EvaluatePortfolio(weights, means []float64, cov mat.Symmetric, riskFreeRate float64) (PortfolioMetrics, error) {
	n, _ := cov.Dims()
	if len(weights) != n || len(means) != n {
		return PortfolioMetrics{}, domain.InputError("sharpe",
			"dimension mismatch: %d weights, %d means, %dx%d covariance", len(weights), len(means), n, n)
	}

	variance := PortfolioVariance(weights, cov)
	if variance < 0 || math.IsNaN(variance) {
		return PortfolioMetrics{}, domain.NumericError("sharpe", "negative portfolio variance %g", variance)
	}

	risk := math.Sqrt(variance)
	ret := PortfolioReturn(weights, means)
	if risk == 0 {
		return PortfolioMetrics{}, domain.NumericError("sharpe", "division by zero")
	}

	return PortfolioMetrics{
		Return:   ret,
		Variance: variance,
		Risk:     risk,
		Sharpe:   (ret - riskFreeRate) / risk,
	}, nil
}

// SharpeRatio returns (portfolio return - risk-free rate) / portfolio risk.
func SharpeRatio(weights, means []float64, cov mat.Symmetric, riskFreeRate float64) (float64, error) {
	m, err := EvaluatePortfolio(weights, means, cov, riskFreeRate)
	if err != nil {
		return 0, err
	}
	return m.Sharpe, nil
}

// NegativeSharpe is the minimisation form of SharpeRatio.
func NegativeSharpe(weights, means []float64, cov mat.Symmetric, riskFreeRate float64) (float64, error) {
	s, err := SharpeRatio(weights, means, cov, riskFreeRate)
	if err != nil {
		return 0, err
	}
	return -s, nil
}

// negativeSharpeGradient writes ∂(-S)/∂w into grad.
// -∇S = -μ/σ + (r - rf)·Σw/σ³
func negativeSharpeGradient(grad, weights, means []float64, cov mat.Symmetric, riskFreeRate float64) {
	n := len(weights)
	w := mat.NewVecDense(n, weights)
	var sw mat.VecDense
	sw.MulVec(cov, w)

	variance := mat.Dot(w, &sw)
	risk := math.Sqrt(variance)
	excess := floats.Dot(weights, means) - riskFreeRate
	risk3 := variance * risk

	for i := 0; i < n; i++ {
		grad[i] = -means[i]/risk + excess*sw.AtVec(i)/risk3
	}
}

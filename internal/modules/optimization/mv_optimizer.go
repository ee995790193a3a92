package optimization

import (
	"fmt"
	"math"

	"github.com/aristath/sharpe/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const (
	// rejectedObjective is returned for candidate points where the Sharpe
	// ratio is undefined, so the solver steps away from them.
	rejectedObjective = 1e10
	// upperPenaltyWeight scales the squared violation of upper bounds.
	upperPenaltyWeight = 1000.0
	// convergenceWindow is the number of major iterations without function
	// improvement after which the search is considered converged.
	convergenceWindow = 20
	// risklessRatio is the portfolio variance, relative to the largest asset
	// variance, at or below which a portfolio counts as riskless.
	risklessRatio = 1e-12
	// startShift tilts a riskless start towards a single asset.
	startShift = 1.0
	// armijoSlope is the sufficient-decrease fraction of a projected step.
	armijoSlope   = 1e-4
	minPolishStep = 1e-20
)

// OptimizerSettings are the tunable parameters of MVOptimizer.
type OptimizerSettings struct {
	MinWeight     float64
	MaxWeight     float64
	MaxIterations int
	Tolerance     float64
}

// DefaultOptimizerSettings returns the settings used when nothing is configured.
func DefaultOptimizerSettings() OptimizerSettings {
	return OptimizerSettings{
		MinWeight:     DefaultMinWeight,
		MaxWeight:     DefaultMaxWeight,
		MaxIterations: 1000,
		Tolerance:     1e-10,
	}
}

// DefaultBounds returns the default per-asset weight range.
func (s OptimizerSettings) DefaultBounds() WeightBounds {
	return WeightBounds{Min: s.MinWeight, Max: s.MaxWeight}
}

// MVOptimizer finds the long-only weight vector with the highest Sharpe ratio.
type MVOptimizer struct {
	settings OptimizerSettings
	log      zerolog.Logger
}

// NewMVOptimizer creates a new mean-variance optimizer.
func NewMVOptimizer(settings OptimizerSettings, log zerolog.Logger) *MVOptimizer {
	if settings.MaxIterations <= 0 {
		settings.MaxIterations = DefaultOptimizerSettings().MaxIterations
	}
	if settings.Tolerance <= 0 {
		settings.Tolerance = DefaultOptimizerSettings().Tolerance
	}
	return &MVOptimizer{
		settings: settings,
		log:      log.With().Str("component", "mv_optimizer").Logger(),
	}
}

// Settings returns the optimizer settings.
func (mvo *MVOptimizer) Settings() OptimizerSettings {
	return mvo.settings
}

// OptimizeMaxSharpe maximizes (μ'w - r_f) / sqrt(w'Σw).
//
// Constraints:
//   - Σw = 1 (weights sum to 1)
//   - lower_i ≤ w_i ≤ upper_i
//
// The search runs over z ∈ ℝⁿ with w(z) = lower + (1 - Σlower)·softmax(z),
// which satisfies the equality and the lower bounds exactly. Upper bounds
// tighter than the free budget are penalised. The search starts at the uniform
// allocation, or at the best single-asset tilt of it when the uniform portfolio
// is riskless. The search result is projected onto the feasible set and refined
// there by projected gradient descent.
func (mvo *MVOptimizer) OptimizeMaxSharpe(
	means []float64,
	cov mat.Symmetric,
	riskFreeRate float64,
	bounds Bounds,
) (*OptimizationResult, error) {
	n := len(means)
	if n == 0 {
		return nil, domain.InputError("optimizer", "no assets provided")
	}
	if r, _ := cov.Dims(); r != n {
		return nil, domain.InputError("optimizer",
			"covariance matrix size %d doesn't match assets count %d", r, n)
	}
	if !isFinite(riskFreeRate) {
		return nil, domain.InputError("optimizer", "non-finite risk-free rate")
	}
	if err := ValidateBounds(bounds, n); err != nil {
		return nil, err
	}

	if bounds.singlePoint() {
		return mvo.fixedAllocation(means, cov, riskFreeRate, bounds)
	}

	obj := newSharpeObjective(means, cov, riskFreeRate, bounds)
	initial, err := obj.start()
	if err != nil {
		return nil, fmt.Errorf("initial guess rejected: %w", err)
	}

	problem := optimize.Problem{
		Func: obj.value,
		Grad: obj.gradient,
	}

	method := "BFGS"
	result, err := optimize.Minimize(problem, initial, mvo.minimizeSettings(), &optimize.BFGS{})
	if err != nil || !converged(result.Status) {
		mvo.log.Debug().
			Err(err).
			Str("status", statusString(result)).
			Msg("BFGS did not converge, falling back to Nelder-Mead")

		method = "NelderMead"
		result, err = optimize.Minimize(problem, initial, mvo.minimizeSettings(), &optimize.NelderMead{})
		if err != nil && result == nil {
			return nil, domain.OptimizationError("optimizer", "optimization failed: %v", err)
		}

		if converged(result.Status) {
			restart, rerr := optimize.Minimize(problem, result.X, mvo.minimizeSettings(), &optimize.BFGS{})
			if rerr == nil && converged(restart.Status) && restart.F <= result.F {
				method = "NelderMead+BFGS"
				result = restart
			}
		}
	}

	polished := obj.polish(
		ProjectToCappedSimplex(obj.weights(result.X), bounds),
		mvo.settings.MaxIterations,
		mvo.settings.Tolerance,
	)

	status := result.Status.String()
	if !converged(result.Status) {
		if !polished.converged {
			return nil, domain.OptimizationError("optimizer",
				"optimization did not converge: status=%v", result.Status)
		}
		status = optimize.FunctionConvergence.String()
	}
	if polished.iterations > 0 {
		method += "+ProjectedGradient"
	}

	weights := polished.weights
	metrics, err := EvaluatePortfolio(weights, means, cov, riskFreeRate)
	if err != nil {
		return nil, err
	}

	mvo.log.Debug().
		Str("method", method).
		Str("status", status).
		Int("iterations", result.Stats.MajorIterations).
		Int("polish_iterations", polished.iterations).
		Float64("sharpe", metrics.Sharpe).
		Msg("Max-Sharpe optimization converged")

	return &OptimizationResult{
		Weights:         weights,
		NegSharpe:       -metrics.Sharpe,
		Sharpe:          metrics.Sharpe,
		Metrics:         metrics,
		Status:          status,
		Method:          method,
		Iterations:      result.Stats.MajorIterations + polished.iterations,
		FuncEvaluations: result.Stats.FuncEvaluations + polished.evaluations,
	}, nil
}

// fixedAllocation handles bounds that admit a single weight vector.
func (mvo *MVOptimizer) fixedAllocation(
	means []float64,
	cov mat.Symmetric,
	riskFreeRate float64,
	bounds Bounds,
) (*OptimizationResult, error) {
	n := len(means)
	uniform := make([]float64, n)
	for i := range uniform {
		uniform[i] = 1 / float64(n)
	}
	weights := ProjectToCappedSimplex(uniform, bounds)

	metrics, err := EvaluatePortfolio(weights, means, cov, riskFreeRate)
	if err != nil {
		return nil, fmt.Errorf("initial guess rejected: %w", err)
	}

	return &OptimizationResult{
		Weights:   weights,
		NegSharpe: -metrics.Sharpe,
		Sharpe:    metrics.Sharpe,
		Metrics:   metrics,
		Status:    "Fixed",
		Method:    "none",
	}, nil
}

func (mvo *MVOptimizer) minimizeSettings() *optimize.Settings {
	return &optimize.Settings{
		MajorIterations: mvo.settings.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   mvo.settings.Tolerance,
			Relative:   mvo.settings.Tolerance,
			Iterations: convergenceWindow,
		},
	}
}

func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success,
		optimize.GradientThreshold,
		optimize.FunctionConvergence,
		optimize.MethodConverge:
		return true
	}
	return false
}

func statusString(result *optimize.Result) string {
	if result == nil {
		return "none"
	}
	return result.Status.String()
}

// sharpeObjective is the negative Sharpe ratio as a function of the
// unconstrained softmax coordinates.
type sharpeObjective struct {
	means        []float64
	cov          mat.Symmetric
	riskFreeRate float64
	bounds       Bounds
	budget       float64 // 1 - Σlower, shared out by the softmax
	capped       bool    // some upper bound is tighter than lower + budget
	floor        float64 // variances at or below floor are riskless
}

func newSharpeObjective(means []float64, cov mat.Symmetric, riskFreeRate float64, bounds Bounds) *sharpeObjective {
	sumLower := 0.0
	for _, lo := range bounds.Lower {
		sumLower += lo
	}
	budget := 1 - sumLower

	capped := false
	for i := range bounds.Lower {
		if bounds.Upper[i] < bounds.Lower[i]+budget {
			capped = true
		}
	}

	maxVariance := 0.0
	for i := range means {
		maxVariance = math.Max(maxVariance, cov.At(i, i))
	}

	return &sharpeObjective{
		means:        means,
		cov:          cov,
		riskFreeRate: riskFreeRate,
		bounds:       bounds,
		budget:       budget,
		capped:       capped,
		floor:        risklessRatio * maxVariance,
	}
}

// uniformStart returns the coordinates of the uniform allocation, or of an
// even split of the free budget when some lower bound exceeds 1/n.
func (o *sharpeObjective) uniformStart() []float64 {
	n := len(o.means)
	z := make([]float64, n)
	for i := range z {
		share := (1/float64(n) - o.bounds.Lower[i]) / o.budget
		if share <= 0 {
			for j := range z {
				z[j] = 0
			}
			return z
		}
		z[i] = math.Log(share)
	}
	return z
}

// start returns the uniform start, or when that portfolio is riskless the
// single-asset tilt of it with the lowest objective. Unless the covariance
// matrix is zero, one of the tilts carries risk.
func (o *sharpeObjective) start() ([]float64, error) {
	z := o.uniformStart()
	if _, ok := o.negativeSharpe(o.weights(z)); ok {
		return z, nil
	}

	var best []float64
	bestValue := rejectedObjective
	for k := range z {
		tilt := make([]float64, len(z))
		copy(tilt, z)
		tilt[k] += startShift

		if f := o.value(tilt); f < bestValue {
			best, bestValue = tilt, f
		}
	}
	if best == nil {
		return nil, domain.NumericError("sharpe", "every starting portfolio is riskless")
	}
	return best, nil
}

// negativeSharpe evaluates -S at w, reporting false for riskless portfolios.
func (o *sharpeObjective) negativeSharpe(w []float64) (float64, bool) {
	variance := PortfolioVariance(w, o.cov)
	if math.IsNaN(variance) || variance <= o.floor {
		return 0, false
	}
	return -(PortfolioReturn(w, o.means) - o.riskFreeRate) / math.Sqrt(variance), true
}

func (o *sharpeObjective) softmax(z []float64) []float64 {
	maxZ := math.Inf(-1)
	for _, v := range z {
		maxZ = math.Max(maxZ, v)
	}
	s := make([]float64, len(z))
	sum := 0.0
	for i, v := range z {
		s[i] = math.Exp(v - maxZ)
		sum += s[i]
	}
	for i := range s {
		s[i] /= sum
	}
	return s
}

func (o *sharpeObjective) weights(z []float64) []float64 {
	s := o.softmax(z)
	w := make([]float64, len(z))
	for i := range w {
		w[i] = o.bounds.Lower[i] + o.budget*s[i]
	}
	return w
}

func (o *sharpeObjective) value(z []float64) float64 {
	w := o.weights(z)
	f, ok := o.negativeSharpe(w)
	if !ok {
		return rejectedObjective
	}

	if o.capped {
		for i, v := range w {
			if excess := v - o.bounds.Upper[i]; excess > 0 {
				f += upperPenaltyWeight * excess * excess
			}
		}
	}
	return f
}

// gradient applies the chain rule through the softmax:
// ∂f/∂zⱼ = budget·sⱼ·(gⱼ - Σᵢ sᵢgᵢ), with g = ∂f/∂w.
func (o *sharpeObjective) gradient(grad, z []float64) {
	s := o.softmax(z)
	w := make([]float64, len(z))
	for i := range w {
		w[i] = o.bounds.Lower[i] + o.budget*s[i]
	}

	if PortfolioVariance(w, o.cov) <= o.floor {
		for i := range grad {
			grad[i] = 0
		}
		return
	}

	g := make([]float64, len(z))
	negativeSharpeGradient(g, w, o.means, o.cov, o.riskFreeRate)

	if o.capped {
		for i, v := range w {
			if excess := v - o.bounds.Upper[i]; excess > 0 {
				g[i] += 2 * upperPenaltyWeight * excess
			}
		}
	}

	sg := 0.0
	for i := range g {
		sg += s[i] * g[i]
	}
	for j := range grad {
		grad[j] = o.budget * s[j] * (g[j] - sg)
	}
}

type polishResult struct {
	weights     []float64
	iterations  int
	evaluations int
	converged   bool
}

// polish runs projected gradient descent on -S over the feasible set from w.
// A step is accepted on the Armijo condition along the projection arc, and the
// trial step doubles after each accepted one. Riskless points are never
// accepted.
func (o *sharpeObjective) polish(w []float64, maxIterations int, tol float64) polishResult {
	res := polishResult{weights: w}
	f, ok := o.negativeSharpe(w)
	res.evaluations++
	if !ok {
		return res
	}

	n := len(w)
	g := make([]float64, n)
	trial := make([]float64, n)
	step := 0.0

	for res.iterations < maxIterations {
		negativeSharpeGradient(g, w, o.means, o.cov, o.riskFreeRate)
		if step == 0 {
			step = 0.1 / math.Max(floats.Norm(g, math.Inf(1)), 1)
		}

		var next []float64
		var fNext float64
		accepted := false
		for ; step >= minPolishStep; step /= 2 {
			for i := range trial {
				trial[i] = w[i] - step*g[i]
			}
			next = ProjectToCappedSimplex(trial, o.bounds)

			decrease := 0.0
			for i := range next {
				decrease += g[i] * (w[i] - next[i])
			}
			if decrease <= 0 {
				// w is a fixed point of the projected step
				res.converged = true
				return res
			}

			fNext, ok = o.negativeSharpe(next)
			res.evaluations++
			if ok && fNext <= f-armijoSlope*decrease {
				accepted = true
				break
			}
		}

		res.iterations++
		if !accepted {
			res.converged = true
			return res
		}

		improvement := f - fNext
		w, f = next, fNext
		res.weights = w
		if improvement <= tol*(1+math.Abs(f)) {
			res.converged = true
			return res
		}
		step *= 2
	}
	return res
}

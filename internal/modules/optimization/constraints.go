package optimization

import (
	"math"
	"sort"

	"github.com/aristath/sharpe/internal/domain"
)

// Default weight bounds.
const (
	DefaultMinWeight = 0.01 // every asset keeps at least 1%
	DefaultMaxWeight = 1.0

	boundsTolerance = 1e-9
	// sums within this distance of 1 pin the allocation to the bounds
	pinnedTolerance = 1e-12
)

// BuildBounds expands the default bounds to every ticker and applies the
// per-ticker overrides.
func BuildBounds(tickers []string, defaults WeightBounds, overrides map[string]WeightBounds) Bounds {
	b := Bounds{
		Lower: make([]float64, len(tickers)),
		Upper: make([]float64, len(tickers)),
	}
	for i, ticker := range tickers {
		wb := defaults
		if o, ok := overrides[ticker]; ok {
			wb = o
		}
		b.Lower[i] = wb.Min
		b.Upper[i] = wb.Max
	}
	return b
}

// ValidateBounds checks that the bounds describe a non-empty feasible set
// {w : Σw = 1, lowerᵢ ≤ wᵢ ≤ upperᵢ}.
func ValidateBounds(b Bounds, n int) error {
	if len(b.Lower) != n || len(b.Upper) != n {
		return domain.InputError("bounds",
			"expected %d bounds, got %d lower and %d upper", n, len(b.Lower), len(b.Upper))
	}

	sumLower, sumUpper := 0.0, 0.0
	for i := 0; i < n; i++ {
		lo, hi := b.Lower[i], b.Upper[i]
		if !isFinite(lo) || !isFinite(hi) {
			return domain.InputError("bounds", "non-finite bound for asset %d", i)
		}
		if lo < 0 || hi > 1 {
			return domain.InputError("bounds", "bounds [%g, %g] for asset %d outside [0, 1]", lo, hi, i)
		}
		if lo > hi {
			return domain.InputError("bounds", "lower bound %g above upper bound %g for asset %d", lo, hi, i)
		}
		sumLower += lo
		sumUpper += hi
	}

	if sumLower > 1+boundsTolerance {
		return domain.InputError("bounds", "lower bounds sum to %g, above 1", sumLower)
	}
	if sumUpper < 1-boundsTolerance {
		return domain.InputError("bounds", "upper bounds sum to %g, below 1", sumUpper)
	}
	return nil
}

// singlePoint reports whether the feasible set has exactly one element.
func (b Bounds) singlePoint() bool {
	sumLower, sumUpper := 0.0, 0.0
	for i := range b.Lower {
		sumLower += b.Lower[i]
		sumUpper += b.Upper[i]
	}
	return len(b.Lower) == 1 || sumLower >= 1-pinnedTolerance || sumUpper <= 1+pinnedTolerance
}

// ProjectToCappedSimplex returns the Euclidean projection of x onto
// {w : Σw = 1, lowerᵢ ≤ wᵢ ≤ upperᵢ}. The bounds must be valid.
//
// The projection is wᵢ = clip(xᵢ - τ, lowerᵢ, upperᵢ) for the unique τ with
// Σw = 1. The sum is piecewise linear and non-increasing in τ, so τ is found
// exactly between two adjacent breakpoints.
func ProjectToCappedSimplex(x []float64, b Bounds) []float64 {
	n := len(x)
	w := make([]float64, n)

	sumLower, sumUpper := 0.0, 0.0
	for i := 0; i < n; i++ {
		sumLower += b.Lower[i]
		sumUpper += b.Upper[i]
	}
	if sumLower >= 1-pinnedTolerance {
		copy(w, b.Lower)
		return w
	}
	if sumUpper <= 1+pinnedTolerance {
		copy(w, b.Upper)
		return w
	}

	total := func(tau float64) float64 {
		s := 0.0
		for i := 0; i < n; i++ {
			s += clip(x[i]-tau, b.Lower[i], b.Upper[i])
		}
		return s
	}

	breaks := make([]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		breaks = append(breaks, x[i]-b.Upper[i], x[i]-b.Lower[i])
	}
	sort.Float64s(breaks)

	// total(breaks[0]) = Σupper > 1 and total(breaks[last]) = Σlower < 1
	lo, hi := 0, len(breaks)-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if total(breaks[mid]) >= 1 {
			lo = mid
		} else {
			hi = mid
		}
	}

	gLo, gHi := total(breaks[lo]), total(breaks[hi])
	tau := breaks[lo]
	if gLo != gHi {
		tau = breaks[lo] + (gLo-1)*(breaks[hi]-breaks[lo])/(gLo-gHi)
	}

	for i := 0; i < n; i++ {
		w[i] = clip(x[i]-tau, b.Lower[i], b.Upper[i])
	}
	return w
}

// Feasible reports whether w satisfies the bounds and sums to 1 within tol.
func Feasible(w []float64, b Bounds, tol float64) bool {
	if len(w) != len(b.Lower) {
		return false
	}
	sum := 0.0
	for i, v := range w {
		if v < b.Lower[i]-tol || v > b.Upper[i]+tol {
			return false
		}
		sum += v
	}
	return math.Abs(sum-1) <= tol
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

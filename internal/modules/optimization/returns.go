package optimization

import (
	"math"
	"sort"
	"time"

	"github.com/aristath/sharpe/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// MinPeriods is the smallest number of return observations the statistics need.
const MinPeriods = 2

// monthKey identifies a calendar month.
type monthKey struct {
	year  int
	month time.Month
}

func (k monthKey) next() monthKey {
	if k.month == time.December {
		return monthKey{year: k.year + 1, month: time.January}
	}
	return monthKey{year: k.year, month: k.month + 1}
}

func (k monthKey) before(o monthKey) bool {
	return k.year < o.year || (k.year == o.year && k.month < o.month)
}

// end returns the last calendar day of the month in UTC.
func (k monthKey) end() time.Time {
	return time.Date(k.year, k.month+1, 0, 0, 0, 0, 0, time.UTC)
}

// BuildMonthlyReturns resamples a daily price series to calendar months and
// returns the month-over-month simple returns.
//
// Each month takes the last observed close. Months without an observation
// carry the previous month's close forward, so they produce a zero return.
func BuildMonthlyReturns(ticker string, prices []domain.PricePoint) (ReturnSeries, error) {
	if len(prices) == 0 {
		return ReturnSeries{}, domain.DataError("returns.build", "no price history for %s", ticker)
	}

	sorted := make([]domain.PricePoint, len(prices))
	copy(sorted, prices)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	lastClose := make(map[monthKey]float64)
	for _, p := range sorted {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
			return ReturnSeries{}, domain.DataError("returns.build",
				"invalid close %v for %s on %s", p.Close, ticker, p.Date.Format(domain.DateLayout))
		}
		d := p.Date.UTC()
		lastClose[monthKey{year: d.Year(), month: d.Month()}] = p.Close
	}

	first := sorted[0].Date.UTC()
	last := sorted[len(sorted)-1].Date.UTC()
	from := monthKey{year: first.Year(), month: first.Month()}
	to := monthKey{year: last.Year(), month: last.Month()}

	var months []time.Time
	var closes []float64
	for k := from; !to.before(k); k = k.next() {
		c, ok := lastClose[k]
		if !ok {
			// forward-fill; the first month always has an observation
			c = closes[len(closes)-1]
		}
		months = append(months, k.end())
		closes = append(closes, c)
	}

	if len(closes) < MinPeriods {
		return ReturnSeries{}, domain.DataError("returns.build",
			"insufficient history for %s: %d monthly periods, need %d", ticker, len(closes), MinPeriods)
	}

	series := ReturnSeries{
		Ticker:  ticker,
		Periods: make([]time.Time, len(closes)-1),
		Returns: make([]float64, len(closes)-1),
	}
	for i := 1; i < len(closes); i++ {
		series.Periods[i-1] = months[i]
		series.Returns[i-1] = closes[i]/closes[i-1] - 1
	}
	return series, nil
}

// AlignReturns intersects the period axes of the series and builds a return
// matrix whose columns follow the input ticker order.
func AlignReturns(series []ReturnSeries) (*ReturnMatrix, error) {
	if len(series) == 0 {
		return nil, domain.InputError("returns.align", "no return series")
	}

	seen := make(map[string]bool, len(series))
	counts := make(map[int64]int)
	for _, s := range series {
		if seen[s.Ticker] {
			return nil, domain.InputError("returns.align", "duplicate ticker %s", s.Ticker)
		}
		seen[s.Ticker] = true
		if len(s.Periods) != len(s.Returns) {
			return nil, domain.InputError("returns.align",
				"%s has %d periods but %d returns", s.Ticker, len(s.Periods), len(s.Returns))
		}
		for _, p := range s.Periods {
			counts[p.Unix()]++
		}
	}

	var periods []time.Time
	for _, p := range series[0].Periods {
		if counts[p.Unix()] == len(series) {
			periods = append(periods, p)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	if len(periods) < MinPeriods {
		return nil, domain.DataError("returns.align",
			"insufficient aligned history: %d common periods, need %d", len(periods), MinPeriods)
	}

	row := make(map[int64]int, len(periods))
	for i, p := range periods {
		row[p.Unix()] = i
	}

	tickers := make([]string, len(series))
	data := mat.NewDense(len(periods), len(series), nil)
	for j, s := range series {
		tickers[j] = s.Ticker
		for k, p := range s.Periods {
			if i, ok := row[p.Unix()]; ok {
				data.Set(i, j, s.Returns[k])
			}
		}
	}

	return &ReturnMatrix{Tickers: tickers, Periods: periods, Data: data}, nil
}

// NewReturnMatrix builds a return matrix from undated, already aligned return
// columns, one per ticker.
func NewReturnMatrix(tickers []string, returns [][]float64) (*ReturnMatrix, error) {
	normalized, err := domain.ValidateTickers(tickers)
	if err != nil {
		return nil, err
	}
	if len(returns) != len(normalized) {
		return nil, domain.InputError("returns.matrix",
			"%d tickers but %d return series", len(normalized), len(returns))
	}

	n := len(returns[0])
	for j, col := range returns {
		if len(col) != n {
			return nil, domain.InputError("returns.matrix",
				"return series for %s has %d observations, expected %d", normalized[j], len(col), n)
		}
		for _, r := range col {
			if math.IsNaN(r) || math.IsInf(r, 0) {
				return nil, domain.DataError("returns.matrix", "non-finite return for %s", normalized[j])
			}
		}
	}
	if n < MinPeriods {
		return nil, domain.DataError("returns.matrix",
			"insufficient history: %d observations, need %d", n, MinPeriods)
	}

	data := mat.NewDense(n, len(normalized), nil)
	for j, col := range returns {
		data.SetCol(j, col)
	}
	return &ReturnMatrix{Tickers: normalized, Data: data}, nil
}

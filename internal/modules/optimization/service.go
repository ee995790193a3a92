package optimization

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aristath/sharpe/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Request asks for the max-Sharpe allocation of tickers over a holding period.
type Request struct {
	Tickers []string
	Period  domain.HoldingPeriod
	// RiskFreeRate overrides the rate provider when set (monthly, decimal).
	RiskFreeRate *float64
	// Bounds overrides the default weight bounds per ticker.
	Bounds map[string]WeightBounds
	// CheckTickers verifies every ticker against the quote provider first.
	CheckTickers bool
}

// ReturnsRequest asks for the max-Sharpe allocation of already computed
// return series. No price provider is involved.
type ReturnsRequest struct {
	Tickers []string
	Returns [][]float64
	// Series replaces Tickers and Returns with dated series, which are
	// aligned on the periods every series shares.
	Series       []ReturnSeries
	RiskFreeRate *float64
	Bounds       map[string]WeightBounds
}

func (req ReturnsRequest) matrix() (*ReturnMatrix, error) {
	if len(req.Series) == 0 {
		return NewReturnMatrix(req.Tickers, req.Returns)
	}
	if len(req.Tickers) > 0 || len(req.Returns) > 0 {
		return nil, domain.InputError("returns", "dated series and undated returns cannot be combined")
	}

	raw := make([]string, len(req.Series))
	for i, s := range req.Series {
		raw[i] = s.Ticker
	}
	tickers, err := domain.ValidateTickers(raw)
	if err != nil {
		return nil, err
	}

	series := make([]ReturnSeries, len(req.Series))
	for i, s := range req.Series {
		if len(s.Periods) == 0 {
			return nil, domain.InputError("returns", "series for %s has no periods", tickers[i])
		}
		for _, r := range s.Returns {
			if math.IsNaN(r) || math.IsInf(r, 0) {
				return nil, domain.DataError("returns", "non-finite return for %s", tickers[i])
			}
		}
		series[i] = ReturnSeries{Ticker: tickers[i], Periods: s.Periods, Returns: s.Returns}
	}
	return AlignReturns(series)
}

// Service runs the optimization pipeline:
// prices → returns → statistics + risk-free rate → optimizer → result.
type Service struct {
	prices    domain.PriceDataProvider
	quotes    domain.QuoteProvider
	rates     domain.RiskFreeRateProvider
	optimizer *MVOptimizer
	log       zerolog.Logger
}

// NewService creates a new optimization service.
// quotes may be nil, in which case ticker existence checks are skipped.
func NewService(
	prices domain.PriceDataProvider,
	quotes domain.QuoteProvider,
	rates domain.RiskFreeRateProvider,
	optimizer *MVOptimizer,
	log zerolog.Logger,
) *Service {
	return &Service{
		prices:    prices,
		quotes:    quotes,
		rates:     rates,
		optimizer: optimizer,
		log:       log.With().Str("service", "optimization").Logger(),
	}
}

// Optimize fetches the price history of every ticker and returns the
// allocation with the highest Sharpe ratio.
func (s *Service) Optimize(ctx context.Context, req Request) (*Result, error) {
	tickers, err := domain.ValidateTickers(req.Tickers)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log := s.log.With().Str("run_id", runID).Logger()
	log.Info().
		Strs("tickers", tickers).
		Str("period", req.Period.String()).
		Msg("Starting max-Sharpe optimization")

	if req.CheckTickers {
		if err := s.CheckTickers(ctx, tickers); err != nil {
			return nil, err
		}
	}

	// fetched sequentially so runs are reproducible
	series := make([]ReturnSeries, 0, len(tickers))
	for _, ticker := range tickers {
		prices, err := s.prices.GetPriceHistory(ctx, ticker, req.Period)
		if err != nil {
			return nil, classify("prices", fmt.Errorf("failed to get price history for %s: %w", ticker, err))
		}

		rs, err := BuildMonthlyReturns(ticker, prices)
		if err != nil {
			return nil, err
		}
		log.Debug().
			Str("ticker", ticker).
			Int("prices", len(prices)).
			Int("returns", rs.Len()).
			Msg("Built monthly returns")
		series = append(series, rs)
	}

	matrix, err := AlignReturns(series)
	if err != nil {
		return nil, err
	}

	result, err := s.run(ctx, log, matrix, req.RiskFreeRate, req.Bounds)
	if err != nil {
		return nil, err
	}
	period := req.Period
	result.RunID = runID
	result.Period = &period
	return result, nil
}

// OptimizeReturns returns the max-Sharpe allocation for supplied return
// series, either undated columns of equal length or dated series.
func (s *Service) OptimizeReturns(ctx context.Context, req ReturnsRequest) (*Result, error) {
	matrix, err := req.matrix()
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log := s.log.With().Str("run_id", runID).Logger()
	log.Info().
		Strs("tickers", matrix.Tickers).
		Int("periods", matrix.Len()).
		Msg("Starting max-Sharpe optimization on supplied returns")

	result, err := s.run(ctx, log, matrix, req.RiskFreeRate, req.Bounds)
	if err != nil {
		return nil, err
	}
	result.RunID = runID
	return result, nil
}

// RiskFreeRate returns the per-period risk-free rate from the provider.
func (s *Service) RiskFreeRate(ctx context.Context) (float64, error) {
	rate, err := s.rates.GetRiskFreeRate(ctx)
	if err != nil {
		return 0, classify("risk_free_rate", fmt.Errorf("failed to get risk-free rate: %w", err))
	}
	return rate, nil
}

// CheckTickers verifies that the quote provider knows a price for every ticker.
func (s *Service) CheckTickers(ctx context.Context, tickers []string) error {
	if s.quotes == nil {
		return nil
	}
	for _, ticker := range tickers {
		price, err := domain.CheckTickerExists(ctx, s.quotes, ticker)
		if err != nil {
			return classify("quotes", err)
		}
		s.log.Debug().Str("ticker", ticker).Float64("price", price).Msg("Ticker exists")
	}
	return nil
}

func (s *Service) run(
	ctx context.Context,
	log zerolog.Logger,
	matrix *ReturnMatrix,
	riskFreeRate *float64,
	overrides map[string]WeightBounds,
) (*Result, error) {
	stats, err := ComputeStatistics(matrix)
	if err != nil {
		return nil, err
	}

	var rf float64
	if riskFreeRate != nil {
		rf = *riskFreeRate
	} else if rf, err = s.RiskFreeRate(ctx); err != nil {
		return nil, err
	}

	bounds := BuildBounds(matrix.Tickers, s.optimizer.Settings().DefaultBounds(), overrides)
	opt, err := s.optimizer.OptimizeMaxSharpe(stats.Means, stats.Covariance, rf, bounds)
	if err != nil {
		log.Warn().Err(err).Msg("Optimization failed")
		return nil, err
	}

	log.Info().
		Float64("sharpe", opt.Sharpe).
		Float64("risk_free_rate", rf).
		Str("method", opt.Method).
		Int("periods", stats.Periods).
		Msg("Optimization complete")

	return &Result{
		Tickers:      matrix.Tickers,
		Periods:      matrix.Periods,
		Returns:      matrix,
		Statistics:   stats,
		Correlation:  CorrelationMatrix(stats.Covariance),
		RiskFreeRate: rf,
		Optimization: opt,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// classify wraps unclassified provider failures as ErrProvider.
func classify(op string, err error) error {
	if domain.KindOf(err) != nil {
		return err
	}
	return domain.ProviderError(op, err)
}

package domain

import (
	"context"
)

// PriceDataProvider returns the daily price history of one ticker.
// An unknown ticker or an empty range is reported as ErrData.
type PriceDataProvider interface {
	GetPriceHistory(ctx context.Context, ticker string, period HoldingPeriod) ([]PricePoint, error)
}

// QuoteProvider reports the current regular market price of a ticker.
// A nil price with a nil error means the provider knows no price for it.
type QuoteProvider interface {
	GetRegularMarketPrice(ctx context.Context, ticker string) (*float64, error)
}

// RiskFreeRateProvider returns the per-period (monthly, decimal) risk-free rate.
type RiskFreeRateProvider interface {
	GetRiskFreeRate(ctx context.Context) (float64, error)
}

// StaticRiskFreeRate is a RiskFreeRateProvider returning a fixed rate.
type StaticRiskFreeRate float64

// GetRiskFreeRate returns the fixed rate.
func (r StaticRiskFreeRate) GetRiskFreeRate(ctx context.Context) (float64, error) {
	return float64(r), nil
}

package domain

import (
	"context"
	"fmt"
)

// CheckTickerExists asks the quote provider for a regular market price and
// turns an absent price into ErrData.
func CheckTickerExists(ctx context.Context, quotes QuoteProvider, ticker string) (float64, error) {
	price, err := quotes.GetRegularMarketPrice(ctx, ticker)
	if err != nil {
		return 0, fmt.Errorf("failed to get quote for %s: %w", ticker, err)
	}
	if price == nil {
		return 0, DataError("ticker", "ticker not found: %s", ticker)
	}
	return *price, nil
}

package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Monthly FRED series only move once a month
	TTLRiskFreeRate = 24 * time.Hour

	// Closed holding periods never change; open ones pick up new closes daily
	TTLPriceHistory = 24 * time.Hour

	// Ticker existence checks
	TTLTickerQuote = 7 * 24 * time.Hour
)

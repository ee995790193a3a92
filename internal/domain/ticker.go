package domain

import (
	"regexp"
	"strings"
)

// stopToken ends the ticker prompt of the CLI; it is never a ticker.
const stopToken = "STOP"

// Letters, digits and the separators Yahoo uses for share classes, exchanges
// and indices (BRK-B, VOD.L, ^GSPC, EURUSD=X).
var tickerPattern = regexp.MustCompile(`^\^?[A-Z0-9][A-Z0-9.\-=]{0,14}$`)

// NormalizeTicker trims and upper-cases a raw ticker.
func NormalizeTicker(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidateTicker normalizes raw and checks its syntax.
// It does not check that the ticker exists; see QuoteProvider.
func ValidateTicker(raw string) (string, error) {
	ticker := NormalizeTicker(raw)
	if ticker == "" {
		return "", InputError("ticker", "empty ticker")
	}
	if ticker == stopToken {
		return "", InputError("ticker", "%q is not a ticker", raw)
	}
	if !tickerPattern.MatchString(ticker) {
		return "", InputError("ticker", "malformed ticker %q", raw)
	}
	return ticker, nil
}

// ValidateTickers validates a finite ticker list, preserving order.
// Duplicates are rejected because each asset must be unique within a run.
func ValidateTickers(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, InputError("tickers", "at least one ticker is required")
	}
	seen := make(map[string]bool, len(raw))
	tickers := make([]string, 0, len(raw))
	for _, r := range raw {
		ticker, err := ValidateTicker(r)
		if err != nil {
			return nil, err
		}
		if seen[ticker] {
			return nil, InputError("tickers", "duplicate ticker %s", ticker)
		}
		seen[ticker] = true
		tickers = append(tickers, ticker)
	}
	return tickers, nil
}

// SplitTickers splits a comma or whitespace separated ticker list.
func SplitTickers(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == ';'
	})
}

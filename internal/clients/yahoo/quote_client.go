package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aristath/sharpe/internal/clientdata"
	"github.com/aristath/sharpe/internal/domain"
	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// quoteFetcher returns the regular market price of a symbol, nil when Yahoo
// has none.
type quoteFetcher func(symbol string) (*float64, error)

// QuoteClient answers ticker existence checks using go-yfinance
type QuoteClient struct {
	fetch     quoteFetcher
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewQuoteClient creates a new quote client.
// cacheRepo is optional - if nil, caching is disabled
func NewQuoteClient(cacheRepo *clientdata.Repository, log zerolog.Logger) *QuoteClient {
	return &QuoteClient{
		fetch:     fetchRegularMarketPrice,
		log:       log.With().Str("client", "yahoo-quote").Logger(),
		cacheRepo: cacheRepo,
	}
}

// cachedQuote is the structure stored in the cache
type cachedQuote struct {
	Price *float64 `json:"price"`
}

// GetRegularMarketPrice returns the current regular market price of ticker,
// or nil when Yahoo knows no price for it.
func (c *QuoteClient) GetRegularMarketPrice(ctx context.Context, tickerSymbol string) (*float64, error) {
	symbol := domain.NormalizeTicker(tickerSymbol)

	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh(clientdata.TableTickerQuotes, symbol)
		if err == nil && data != nil {
			var cached cachedQuote
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.Debug().Str("ticker", symbol).Msg("Cache hit")
				return cached.Price, nil
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	price, err := c.fetch(symbol)
	if err != nil {
		return nil, domain.ProviderError("yahoo.quote", err)
	}

	// Only known prices are cached; a missing ticker may be listed later
	if c.cacheRepo != nil && price != nil {
		if err := c.cacheRepo.Store(clientdata.TableTickerQuotes, symbol, cachedQuote{Price: price}, clientdata.TTLTickerQuote); err != nil {
			c.log.Warn().Err(err).Str("ticker", symbol).Msg("Failed to cache quote")
		}
	}

	return price, nil
}

func fetchRegularMarketPrice(symbol string) (*float64, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	quote, err := t.Quote()
	if err != nil {
		return quotePrice(0, err)
	}
	if quote == nil {
		return nil, nil
	}
	return quotePrice(quote.RegularMarketPrice, nil)
}

// unknownSymbolMarkers are fragments of go-yfinance errors for symbols Yahoo
// does not list.
var unknownSymbolMarkers = []string{"not found", "no data", "invalid symbol", "no quote", "404"}

// quotePrice maps the outcome of a quote request to a price. Unknown symbols
// and quotes without a positive price give nil; other failures are returned.
func quotePrice(price float64, err error) (*float64, error) {
	if err != nil {
		msg := strings.ToLower(err.Error())
		for _, marker := range unknownSymbolMarkers {
			if strings.Contains(msg, marker) {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to fetch quote: %w", err)
	}
	if price <= 0 {
		return nil, nil
	}
	return &price, nil
}

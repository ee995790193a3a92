// Package yahoo fetches daily price history and quotes from Yahoo Finance.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/aristath/sharpe/internal/clientdata"
	"github.com/aristath/sharpe/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the Yahoo Finance API host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Client fetches daily closes from the Yahoo Finance chart API
type Client struct {
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new Yahoo Finance chart client.
// cacheRepo is optional - if nil, caching is disabled
func NewClient(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:       log.With().Str("client", "yahoo").Logger(),
		cacheRepo: cacheRepo,
	}
}

// chartResponse is the subset of the chart API payload we read.
// Yahoo reports missing bars as null, hence the pointers.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetPriceHistory returns the adjusted daily closes of ticker within period.
// Fresh cached data is served first; if the API fails, stale cached data is
// returned when available.
func (c *Client) GetPriceHistory(ctx context.Context, ticker string, period domain.HoldingPeriod) ([]domain.PricePoint, error) {
	symbol := domain.NormalizeTicker(ticker)
	cacheKey := clientdata.PriceHistoryKey(symbol, period)

	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh(clientdata.TablePriceHistory, cacheKey)
		if err == nil && data != nil {
			var cached []domain.PricePoint
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.Debug().Str("ticker", symbol).Int("points", len(cached)).Msg("Cache hit")
				return cached, nil
			}
		}
	}

	prices, err := c.fetch(ctx, symbol, period)
	if err != nil {
		// Unknown tickers are not a provider outage
		if errors.Is(err, domain.ErrData) {
			return nil, err
		}
		if stale, ok := c.getStaleFromCache(cacheKey); ok {
			c.log.Warn().Err(err).Str("ticker", symbol).Msg("API failed, using stale cached prices")
			return stale, nil
		}
		return nil, domain.ProviderError("yahoo.history", err)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TablePriceHistory, cacheKey, prices, clientdata.TTLPriceHistory); err != nil {
			c.log.Warn().Err(err).Str("ticker", symbol).Msg("Failed to cache price history")
		}
	}

	c.log.Info().
		Str("ticker", symbol).
		Str("period", period.String()).
		Int("points", len(prices)).
		Msg("Fetched price history")

	return prices, nil
}

func (c *Client) fetch(ctx context.Context, symbol string, period domain.HoldingPeriod) ([]domain.PricePoint, error) {
	params := url.Values{}
	params.Add("period1", strconv.FormatInt(period.Start.Unix(), 10))
	// period2 is exclusive; include the end date itself
	params.Add("period2", strconv.FormatInt(period.End.AddDate(0, 0, 1).Unix(), 10))
	params.Add("interval", "1d")
	params.Add("includeAdjustedClose", "true")

	reqURL := c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch historical data: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.DataError("yahoo.history", "no price data for %s", symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Yahoo Finance API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result chartResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Chart.Error != nil {
		return nil, domain.DataError("yahoo.history", "no price data for %s: %s", symbol, result.Chart.Error.Description)
	}
	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, domain.DataError("yahoo.history", "no price data for %s", symbol)
	}

	chartData := result.Chart.Result[0]
	closes := chartData.Indicators.Quote[0].Close
	var adjCloses []*float64
	if len(chartData.Indicators.AdjClose) > 0 {
		adjCloses = chartData.Indicators.AdjClose[0].AdjClose
	}

	prices := make([]domain.PricePoint, 0, len(chartData.Timestamp))
	for i, ts := range chartData.Timestamp {
		var price *float64
		if i < len(adjCloses) && adjCloses[i] != nil {
			price = adjCloses[i]
		} else if i < len(closes) {
			price = closes[i]
		}
		// Yahoo sometimes returns null values
		if price == nil || *price <= 0 {
			continue
		}
		prices = append(prices, domain.PricePoint{
			Date:  time.Unix(ts, 0).UTC(),
			Close: *price,
		})
	}

	if len(prices) == 0 {
		return nil, domain.DataError("yahoo.history", "no price data for %s in %s", symbol, period)
	}

	sort.Slice(prices, func(i, j int) bool { return prices[i].Date.Before(prices[j].Date) })
	return prices, nil
}

// getStaleFromCache retrieves cached prices even if expired.
func (c *Client) getStaleFromCache(cacheKey string) ([]domain.PricePoint, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}

	data, err := c.cacheRepo.Get(clientdata.TablePriceHistory, cacheKey)
	if err != nil || data == nil {
		return nil, false
	}

	var cached []domain.PricePoint
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}
	return cached, true
}

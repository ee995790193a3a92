// Package fred fetches the risk-free rate from the FRED economic data service.
package fred

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/sharpe/internal/clientdata"
	"github.com/aristath/sharpe/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the FRED host serving graph CSV downloads.
	DefaultBaseURL = "https://fred.stlouisfed.org"
	// DefaultSeries is the 10-year treasury constant maturity rate, monthly.
	DefaultSeries = "GS10"
)

// Observation is the latest value of a FRED series.
type Observation struct {
	Series  string    `json:"series"`
	Date    time.Time `json:"date"`
	Percent float64   `json:"percent"` // annual rate in percent, as published
}

// Monthly converts the annual percentage to a monthly decimal rate.
func (o Observation) Monthly() float64 {
	return o.Percent / 100 / 12
}

// Client for the FRED graph CSV endpoint
type Client struct {
	baseURL   string
	series    string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new FRED client.
// cacheRepo is optional - if nil, caching is disabled
func NewClient(baseURL, series string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if series == "" {
		series = DefaultSeries
	}
	return &Client{
		baseURL:   baseURL,
		series:    series,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "fred").Logger(),
		cacheRepo: cacheRepo,
	}
}

// GetRiskFreeRate returns the latest observation as a monthly decimal rate.
func (c *Client) GetRiskFreeRate(ctx context.Context) (float64, error) {
	obs, err := c.LatestObservation(ctx)
	if err != nil {
		return 0, err
	}
	return obs.Monthly(), nil
}

// LatestObservation fetches the most recent observation of the series with cache.
// If the API fails, returns stale cached data if available (stale data > no data).
func (c *Client) LatestObservation(ctx context.Context) (*Observation, error) {
	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh(clientdata.TableRiskFreeRate, c.series)
		if err == nil && data != nil {
			var cached Observation
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.Debug().Str("series", c.series).Float64("percent", cached.Percent).Msg("Cache hit")
				return &cached, nil
			}
		}
	}

	obs, err := c.fetch(ctx)
	if err != nil {
		if stale, ok := c.getStaleFromCache(); ok {
			c.log.Warn().
				Err(err).
				Str("series", c.series).
				Float64("percent", stale.Percent).
				Msg("API failed, using stale cached rate")
			return stale, nil
		}
		return nil, domain.ProviderError("fred.rate", err)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableRiskFreeRate, c.series, obs, clientdata.TTLRiskFreeRate); err != nil {
			c.log.Warn().Err(err).Str("series", c.series).Msg("Failed to cache risk-free rate")
		}
	}

	c.log.Info().
		Str("series", c.series).
		Str("date", obs.Date.Format(domain.DateLayout)).
		Float64("percent", obs.Percent).
		Msg("Fetched risk-free rate")

	return obs, nil
}

func (c *Client) fetch(ctx context.Context) (*Observation, error) {
	reqURL := c.baseURL + "/graph/fredgraph.csv?" + url.Values{"id": {c.series}}.Encode()
	c.log.Debug().Str("url", reqURL).Msg("Fetching series")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	return parseLatest(c.series, resp.Body)
}

// parseLatest returns the last numeric row of a FRED graph CSV.
// Missing observations are published as ".".
func parseLatest(series string, r io.Reader) (*Observation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("unexpected CSV header %v", header)
	}

	var latest *Observation
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		if len(record) < 2 {
			continue
		}

		value := strings.TrimSpace(record[1])
		if value == "" || value == "." {
			continue
		}
		percent, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		date, err := time.Parse(domain.DateLayout, strings.TrimSpace(record[0]))
		if err != nil {
			continue
		}
		latest = &Observation{Series: series, Date: date, Percent: percent}
	}

	if latest == nil {
		return nil, fmt.Errorf("no observations for series %s", series)
	}
	return latest, nil
}

// getStaleFromCache retrieves the cached observation even if expired.
func (c *Client) getStaleFromCache() (*Observation, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}

	data, err := c.cacheRepo.Get(clientdata.TableRiskFreeRate, c.series)
	if err != nil || data == nil {
		return nil, false
	}

	var cached Observation
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}
	return &cached, true
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/sharpe/internal/domain"
	"github.com/aristath/sharpe/internal/modules/charts"
	"github.com/aristath/sharpe/internal/modules/optimization"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

var monthlyReturns = map[string][]float64{
	"AAA": {0.012, -0.004, 0.031, 0.008, -0.015, 0.022},
	"BBB": {0.003, 0.011, -0.007, 0.019, 0.006, -0.002},
}

type mockPrices struct{}

func (mockPrices) GetPriceHistory(ctx context.Context, ticker string, period domain.HoldingPeriod) ([]domain.PricePoint, error) {
	returns, ok := monthlyReturns[ticker]
	if !ok {
		return nil, domain.DataError("prices", "no price data for %s", ticker)
	}
	price := 50.0
	prices := []domain.PricePoint{{Date: time.Date(2023, time.January, 31, 0, 0, 0, 0, time.UTC), Close: price}}
	for i, r := range returns {
		price *= 1 + r
		prices = append(prices, domain.PricePoint{
			Date:  time.Date(2023, time.Month(i+3), 0, 0, 0, 0, 0, time.UTC),
			Close: price,
		})
	}
	return prices, nil
}

type mockRate struct {
	err error
}

func (m mockRate) GetRiskFreeRate(ctx context.Context) (float64, error) {
	return 0.001, m.err
}

func setupRouter(rates domain.RiskFreeRateProvider) *chi.Mux {
	log := zerolog.Nop()
	optimizer := optimization.NewMVOptimizer(optimization.DefaultOptimizerSettings(), log)
	service := optimization.NewService(mockPrices{}, nil, rates, optimizer, log)
	handler := NewHandler(service, charts.NewService(log), log)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func post(router http.Handler, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleOptimize(t *testing.T) {
	router := setupRouter(mockRate{})

	w := post(router, "/optimization/sharpe",
		`{"tickers": ["aaa", "BBB"], "start": "2023-01-01", "end": "2023-07-31"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp OptimizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, []string{"AAA", "BBB"}, resp.Tickers)
	assert.Equal(t, "2023-01-01", resp.Start)
	assert.Equal(t, 6, resp.Periods)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, 0.001, resp.RiskFreeRate)
	assert.InDelta(t, 1.0, resp.Weights["AAA"]+resp.Weights["BBB"], 1e-6)
	assert.Len(t, resp.Covariance, 2)
	assert.Len(t, resp.Growth, 6)
	assert.Equal(t, 1.0, resp.Correlation[0][0])
}

func TestHandleOptimize_Msgpack(t *testing.T) {
	router := setupRouter(mockRate{})

	w := post(router, "/optimization/sharpe",
		`{"tickers": ["AAA", "BBB"], "start": "2023-01-01", "end": "2023-07-31"}`,
		map[string]string{"Accept": contentTypeMsgpack})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, contentTypeMsgpack, w.Header().Get("Content-Type"))

	var resp map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "weights")
	assert.Contains(t, resp, "run_id")
}

func TestHandleOptimize_Errors(t *testing.T) {
	router := setupRouter(mockRate{})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed body", `{"tickers": `, http.StatusBadRequest},
		{"bad date", `{"tickers": ["AAA"], "start": "2023/01/01", "end": "2023-07-31"}`, http.StatusBadRequest},
		{"stop token", `{"tickers": ["STOP"], "start": "2023-01-01", "end": "2023-07-31"}`, http.StatusBadRequest},
		{"unknown ticker", `{"tickers": ["AAA", "ZZZ"], "start": "2023-01-01", "end": "2023-07-31"}`, http.StatusUnprocessableEntity},
		{"infeasible bounds", `{"tickers": ["AAA", "BBB"], "start": "2023-01-01", "end": "2023-07-31",
			"bounds": {"aaa": {"min": 0.7, "max": 1}, "BBB": {"min": 0.7, "max": 1}}}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(router, "/optimization/sharpe", tt.body, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
			assert.NotEmpty(t, resp["kind"])
		})
	}
}

func TestHandleOptimizeReturns(t *testing.T) {
	router := setupRouter(mockRate{err: errors.New("rate provider must not be called")})

	body := `{
		"series": [
			{"ticker": "AAA", "returns": [0.012, -0.004, 0.031, 0.008, -0.015, 0.022]},
			{"ticker": "BBB", "returns": [0.003, 0.011, -0.007, 0.019, 0.006, -0.002]}
		],
		"risk_free_rate": 0.002
	}`
	w := post(router, "/optimization/sharpe/returns", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp OptimizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Start)
	assert.Equal(t, 0.002, resp.RiskFreeRate)
	assert.Equal(t, "1", resp.Growth[0].Time)
	require.Len(t, resp.Allocations, 2)
	assert.InDelta(t, 1.0, resp.Allocations[0].Weight+resp.Allocations[1].Weight, 1e-6)
}

func TestHandleOptimizeReturns_DatedSeriesAligned(t *testing.T) {
	router := setupRouter(mockRate{})

	// AAA starts a month before BBB and ends a month before it
	body := `{
		"series": [
			{"ticker": "aaa",
			 "periods": ["2023-01-31T00:00:00Z", "2023-02-28T00:00:00Z", "2023-03-31T00:00:00Z", "2023-04-30T00:00:00Z", "2023-05-31T00:00:00Z", "2023-06-30T00:00:00Z"],
			 "returns": [0.012, -0.004, 0.031, 0.008, -0.015, 0.022]},
			{"ticker": "BBB",
			 "periods": ["2023-02-28T00:00:00Z", "2023-03-31T00:00:00Z", "2023-04-30T00:00:00Z", "2023-05-31T00:00:00Z", "2023-06-30T00:00:00Z", "2023-07-31T00:00:00Z"],
			 "returns": [0.003, 0.011, -0.007, 0.019, 0.006, -0.002]}
		],
		"risk_free_rate": 0.001
	}`
	w := post(router, "/optimization/sharpe/returns", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp OptimizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"AAA", "BBB"}, resp.Tickers)
	assert.Equal(t, 5, resp.Periods)
	require.Len(t, resp.Growth, 5)
	assert.Equal(t, "2023-02-28", resp.Growth[0].Time)
	assert.Equal(t, "2023-06-30", resp.Growth[4].Time)
}

func TestHandleOptimizeReturns_MixedDatedAndUndated(t *testing.T) {
	router := setupRouter(mockRate{})

	body := `{
		"series": [
			{"ticker": "AAA", "periods": ["2023-01-31T00:00:00Z", "2023-02-28T00:00:00Z"], "returns": [0.01, 0.02]},
			{"ticker": "BBB", "returns": [0.03, 0.04]}
		]
	}`
	w := post(router, "/optimization/sharpe/returns", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "periods")
}

func TestHandleOptimizeChart(t *testing.T) {
	router := setupRouter(mockRate{})
	body := `{"tickers": ["AAA", "BBB"], "start": "2023-01-01", "end": "2023-07-31"}`

	for _, path := range []string{"/optimization/sharpe/chart", "/optimization/sharpe/chart?kind=growth"} {
		w := post(router, path, body, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
	}
}

func TestHandleGetRiskFreeRate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/optimization/risk-free-rate", nil)
	w := httptest.NewRecorder()
	setupRouter(mockRate{}).ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 0.001, resp["data"]["monthly"], 1e-12)
	assert.InDelta(t, 0.012, resp["data"]["annual"], 1e-12)

	w = httptest.NewRecorder()
	setupRouter(mockRate{err: errors.New("connection refused")}).ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(domain.InputError("op", "bad")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(domain.DataError("op", "short")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(domain.NumericError("op", "division by zero")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(domain.OptimizationError("op", "status=IterationLimit")))
	assert.Equal(t, http.StatusBadGateway, statusFor(domain.ProviderError("op", errors.New("down"))))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/sharpe/internal/clientdata"
	"github.com/aristath/sharpe/internal/database"
	"github.com/aristath/sharpe/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartPayload = `{
  "chart": {
    "result": [{
      "timestamp": [1672756200, 1672842600, 1672929000, 1673015400],
      "indicators": {
        "quote": [{"close": [125.07, 126.36, null, 129.62]}],
        "adjclose": [{"adjclose": [124.05, 125.33, null, 128.56]}]
      }
    }],
    "error": null
  }
}`

func newTestRepo(t *testing.T) *clientdata.Repository {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "client_data.db"),
		Profile: database.ProfileCache,
		Name:    "client_data",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return clientdata.NewRepository(db.Conn())
}

func testPeriod(t *testing.T) domain.HoldingPeriod {
	t.Helper()
	period, err := domain.ParseHoldingPeriod("2023-01-01", "2023-01-06")
	require.NoError(t, err)
	return period
}

func TestGetPriceHistory(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartPayload))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, zerolog.Nop())
	period := testPeriod(t)

	prices, err := client.GetPriceHistory(context.Background(), "aapl", period)
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	assert.Equal(t, "1d", gotQuery["interval"][0])
	assert.Equal(t, "1672531200", gotQuery["period1"][0])
	// period2 covers the whole end date
	assert.Equal(t, "1673049600", gotQuery["period2"][0])

	// The null bar is skipped and adjusted closes win over raw closes
	require.Len(t, prices, 3)
	assert.Equal(t, 124.05, prices[0].Close)
	assert.Equal(t, 128.56, prices[2].Close)
	assert.Equal(t, time.Unix(1672756200, 0).UTC(), prices[0].Date)
}

func TestGetPriceHistory_FallsBackToClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[{"timestamp":[1672756200,1672842600],
			"indicators":{"quote":[{"close":[10.5,11.0]}]}}],"error":null}}`))
	}))
	defer server.Close()

	prices, err := NewClient(server.URL, nil, zerolog.Nop()).GetPriceHistory(context.Background(), "X", testPeriod(t))
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, 11.0, prices[1].Close)
}

func TestGetPriceHistory_UnknownTicker(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"not found status", http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`},
		{"chart error", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`},
		{"only nulls", http.StatusOK, `{"chart":{"result":[{"timestamp":[1672756200],"indicators":{"quote":[{"close":[null]}]}}],"error":null}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, nil, zerolog.Nop()).GetPriceHistory(context.Background(), "NOPE", testPeriod(t))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrData), err.Error())
		})
	}
}

func TestGetPriceHistory_ProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil, zerolog.Nop()).GetPriceHistory(context.Background(), "AAPL", testPeriod(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProvider))
}

func TestGetPriceHistory_CacheFirst(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		_, _ = w.Write([]byte(chartPayload))
	}))
	defer server.Close()

	client := NewClient(server.URL, newTestRepo(t), zerolog.Nop())
	period := testPeriod(t)

	first, err := client.GetPriceHistory(context.Background(), "AAPL", period)
	require.NoError(t, err)
	second, err := client.GetPriceHistory(context.Background(), "aapl", period)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
	require.Len(t, second, len(first))
	assert.Equal(t, first[2].Close, second[2].Close)
	assert.True(t, first[0].Date.Equal(second[0].Date))
}

func TestGetPriceHistory_StaleFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	repo := newTestRepo(t)
	period := testPeriod(t)
	stale := []domain.PricePoint{{Date: time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), Close: 99}}
	require.NoError(t, repo.Store(clientdata.TablePriceHistory, clientdata.PriceHistoryKey("AAPL", period), stale, -time.Hour))

	prices, err := NewClient(server.URL, repo, zerolog.Nop()).GetPriceHistory(context.Background(), "AAPL", period)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, 99.0, prices[0].Close)
}

package clientdata

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/aristath/sharpe/internal/domain"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSchema creates all tables needed for testing
const testSchema = `
CREATE TABLE price_history (cache_key TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE risk_free_rate (series TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE ticker_quotes (ticker TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);

CREATE INDEX idx_price_history_expires ON price_history(expires_at);
CREATE INDEX idx_risk_free_rate_expires ON risk_free_rate(expires_at);
CREATE INDEX idx_ticker_quotes_expires ON ticker_quotes(expires_at);
`

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Every :memory: connection is a separate database
	db.SetMaxOpenConns(1)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}

func TestStore(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	data := map[string]interface{}{
		"series": "GS10",
		"rate":   0.0035,
	}

	err := repo.Store(TableRiskFreeRate, "GS10", data, TTLRiskFreeRate)
	require.NoError(t, err)

	var storedData string
	var expiresAt int64
	err = db.QueryRow("SELECT data, expires_at FROM risk_free_rate WHERE series = ?", "GS10").Scan(&storedData, &expiresAt)
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(storedData), &parsed))
	assert.Equal(t, "GS10", parsed["series"])
	assert.Equal(t, 0.0035, parsed["rate"])

	expectedExpires := time.Now().Add(TTLRiskFreeRate).Unix()
	assert.InDelta(t, expectedExpires, expiresAt, 5)
}

func TestStoreUpsert(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	require.NoError(t, repo.Store(TableTickerQuotes, "AAPL", map[string]string{"version": "1"}, time.Hour))
	require.NoError(t, repo.Store(TableTickerQuotes, "AAPL", map[string]string{"version": "2"}, time.Hour))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM ticker_quotes WHERE ticker = ?", "AAPL").Scan(&count))
	assert.Equal(t, 1, count)

	result, err := repo.GetIfFresh(TableTickerQuotes, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, result)

	var parsed map[string]string
	require.NoError(t, json.Unmarshal(result, &parsed))
	assert.Equal(t, "2", parsed["version"])
}

func TestGetIfFresh_Expired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	expiredAt := time.Now().Add(-time.Hour).Unix()
	_, err := db.Exec(
		"INSERT INTO price_history (cache_key, data, expires_at) VALUES (?, ?, ?)",
		"AAPL|2020-01-01|2020-12-31", `[]`, expiredAt,
	)
	require.NoError(t, err)

	result, err := repo.GetIfFresh(TablePriceHistory, "AAPL|2020-01-01|2020-12-31")
	require.NoError(t, err)
	assert.Nil(t, result, "Expected nil for expired data")
}

func TestGet_ReturnsStaleData(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	// Store with an already elapsed TTL
	require.NoError(t, repo.Store(TableRiskFreeRate, "GS10", map[string]string{"status": "stale_but_useful"}, -time.Hour))

	result, err := repo.GetIfFresh(TableRiskFreeRate, "GS10")
	require.NoError(t, err)
	assert.Nil(t, result, "GetIfFresh should return nil for expired data")

	result, err = repo.Get(TableRiskFreeRate, "GS10")
	require.NoError(t, err)
	require.NotNil(t, result, "Get should return stale data")

	var parsed map[string]string
	require.NoError(t, json.Unmarshal(result, &parsed))
	assert.Equal(t, "stale_but_useful", parsed["status"])
}

func TestGet_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	result, err := repo.Get(TableTickerQuotes, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, result)

	result, err = repo.GetIfFresh(TableTickerQuotes, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestInvalidTable(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	assert.Error(t, repo.Store("sqlite_master; DROP TABLE x", "k", 1, time.Hour))
	_, err := repo.Get("nonexistent", "k")
	assert.Error(t, err)
	_, err = repo.GetIfFresh("nonexistent", "k")
	assert.Error(t, err)
	assert.Error(t, repo.Delete("nonexistent", "k"))
	_, err = repo.DeleteExpired("nonexistent")
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	require.NoError(t, repo.Store(TableTickerQuotes, "MSFT", true, time.Hour))
	require.NoError(t, repo.Delete(TableTickerQuotes, "MSFT"))

	result, err := repo.Get(TableTickerQuotes, "MSFT")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestDeleteAllExpired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	require.NoError(t, repo.Store(TableTickerQuotes, "OLD", true, -time.Hour))
	require.NoError(t, repo.Store(TableTickerQuotes, "NEW", true, time.Hour))
	require.NoError(t, repo.Store(TableRiskFreeRate, "GS10", 0.003, -time.Minute))

	results, err := repo.DeleteAllExpired()
	require.NoError(t, err)

	assert.Equal(t, int64(1), results[TableTickerQuotes])
	assert.Equal(t, int64(1), results[TableRiskFreeRate])
	assert.Equal(t, int64(0), results[TablePriceHistory])

	fresh, err := repo.Get(TableTickerQuotes, "NEW")
	require.NoError(t, err)
	assert.NotNil(t, fresh)
}

func TestPriceHistoryKey(t *testing.T) {
	period, err := domain.ParseHoldingPeriod("2020-01-01", "2020-12-31")
	require.NoError(t, err)

	assert.Equal(t, "AAPL|2020-01-01|2020-12-31", PriceHistoryKey(" aapl ", period))
}

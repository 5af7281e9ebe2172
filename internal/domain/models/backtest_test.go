package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBacktestConfigAcceptsDateOnly(t *testing.T) {
	var cfg BacktestConfig
	err := json.Unmarshal([]byte(`{"symbol":"BTCUSDT","start_date":"2024-01-01","end_date":1706659200,"initial_capital":1000}`), &cfg)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), cfg.EndDate)
	assert.Equal(t, "BTCUSDT", cfg.Symbol)
	assert.Equal(t, 1000.0, cfg.InitialCapital)
}

func TestBacktestConfigRejectsBadDate(t *testing.T) {
	var cfg BacktestConfig
	err := json.Unmarshal([]byte(`{"start_date":"last week"}`), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start_date")
}

func TestBacktestConfigRoundTripsRFC3339(t *testing.T) {
	in := BacktestConfig{
		Symbol:    "ETHUSDT",
		StartDate: time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 2, 2, 9, 30, 0, 0, time.UTC),
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	var out BacktestConfig
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestBacktestRequestKeepsPrices(t *testing.T) {
	var req BacktestRequest
	err := json.Unmarshal([]byte(`{"symbol":"BTCUSDT","start_date":"2024-01-01","end_date":"2024-01-02",
		"prices":[{"timestamp":"2024-01-01T00:00:00Z","price":100}]}`), &req)
	require.NoError(t, err)
	require.Len(t, req.Prices, 1)
	assert.Equal(t, 100.0, req.Prices[0].Price)
	assert.Equal(t, "BTCUSDT", req.Symbol)
}

func TestProfitFactorInfinityIsNull(t *testing.T) {
	b, err := json.Marshal(PerformanceMetrics{ProfitFactor: math.Inf(1), TotalTrades: 2})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"profit_factor":null`)

	var m PerformanceMetrics
	require.NoError(t, json.Unmarshal(b, &m))
	assert.True(t, math.IsInf(m.ProfitFactor, 1))
	assert.Equal(t, 2, m.TotalTrades)
}

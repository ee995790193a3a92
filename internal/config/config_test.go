package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SHARPE_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8001, cfg.Port)
	assert.False(t, cfg.DevMode)
	assert.Nil(t, cfg.RiskFreeRate)
	assert.Equal(t, "GS10", cfg.FREDSeries)
	assert.Equal(t, 0.01, cfg.Optimizer.MinWeight)
	assert.Equal(t, 1.0, cfg.Optimizer.MaxWeight)
	assert.Equal(t, 1000, cfg.Optimizer.MaxIterations)
	assert.Equal(t, 1e-10, cfg.Optimizer.Tolerance)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, "@hourly", cfg.CacheCleanupSchedule)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SHARPE_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9090")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("RISK_FREE_RATE", "0.0025")
	t.Setenv("OPTIMIZER_MIN_WEIGHT", "0")
	t.Setenv("OPTIMIZER_MAX_WEIGHT", "0.5")
	t.Setenv("CACHE_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.DevMode)
	require.NotNil(t, cfg.RiskFreeRate)
	assert.Equal(t, 0.0025, *cfg.RiskFreeRate)
	assert.Equal(t, 0.0, cfg.Optimizer.MinWeight)
	assert.Equal(t, 0.5, cfg.Optimizer.MaxWeight)
	assert.False(t, cfg.CacheEnabled)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("SHARPE_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "not-a-port")
	t.Setenv("RISK_FREE_RATE", "abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.Port)
	assert.Nil(t, cfg.RiskFreeRate)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:       8001,
			FREDSeries: "GS10",
			Optimizer: OptimizerConfig{
				MinWeight:     0.01,
				MaxWeight:     1,
				MaxIterations: 100,
				Tolerance:     1e-10,
			},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"negative min weight", func(c *Config) { c.Optimizer.MinWeight = -0.1 }},
		{"max weight above one", func(c *Config) { c.Optimizer.MaxWeight = 1.5 }},
		{"min above max", func(c *Config) { c.Optimizer.MinWeight = 0.6; c.Optimizer.MaxWeight = 0.5 }},
		{"iterations", func(c *Config) { c.Optimizer.MaxIterations = 0 }},
		{"tolerance", func(c *Config) { c.Optimizer.Tolerance = 0 }},
		{"series", func(c *Config) { c.FREDSeries = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

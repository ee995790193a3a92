// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Directory for the provider cache database (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	// RiskFreeRate is a fixed monthly decimal rate. When nil the rate is
	// fetched from FRED.
	RiskFreeRate *float64
	FREDSeries   string
	FREDBaseURL  string
	YahooBaseURL string

	Optimizer OptimizerConfig

	CacheEnabled         bool
	CacheCleanupSchedule string
}

// OptimizerConfig holds the optimizer parameters
type OptimizerConfig struct {
	MinWeight     float64
	MaxWeight     float64
	MaxIterations int
	Tolerance     float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("SHARPE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	cfg := &Config{
		DataDir:      absDataDir,
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Port:         getEnvAsInt("GO_PORT", 8001),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		RiskFreeRate: getEnvAsOptionalFloat("RISK_FREE_RATE"),
		FREDSeries:   getEnv("FRED_SERIES", "GS10"),
		FREDBaseURL:  getEnv("FRED_BASE_URL", "https://fred.stlouisfed.org"),
		YahooBaseURL: getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
		Optimizer: OptimizerConfig{
			MinWeight:     getEnvAsFloat("OPTIMIZER_MIN_WEIGHT", 0.01),
			MaxWeight:     getEnvAsFloat("OPTIMIZER_MAX_WEIGHT", 1.0),
			MaxIterations: getEnvAsInt("OPTIMIZER_MAX_ITERATIONS", 1000),
			Tolerance:     getEnvAsFloat("OPTIMIZER_TOLERANCE", 1e-10),
		},
		CacheEnabled:         getEnvAsBool("CACHE_ENABLED", true),
		CacheCleanupSchedule: getEnv("CACHE_CLEANUP_SCHEDULE", "@hourly"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.CacheEnabled {
		// Ensure directory exists
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks that the configuration values are in range
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid GO_PORT %d", c.Port)
	}
	if c.Optimizer.MinWeight < 0 || c.Optimizer.MinWeight > 1 {
		return fmt.Errorf("OPTIMIZER_MIN_WEIGHT must be in [0, 1], got %g", c.Optimizer.MinWeight)
	}
	if c.Optimizer.MaxWeight <= 0 || c.Optimizer.MaxWeight > 1 {
		return fmt.Errorf("OPTIMIZER_MAX_WEIGHT must be in (0, 1], got %g", c.Optimizer.MaxWeight)
	}
	if c.Optimizer.MinWeight > c.Optimizer.MaxWeight {
		return fmt.Errorf("OPTIMIZER_MIN_WEIGHT %g exceeds OPTIMIZER_MAX_WEIGHT %g",
			c.Optimizer.MinWeight, c.Optimizer.MaxWeight)
	}
	if c.Optimizer.MaxIterations <= 0 {
		return fmt.Errorf("OPTIMIZER_MAX_ITERATIONS must be positive, got %d", c.Optimizer.MaxIterations)
	}
	if c.Optimizer.Tolerance <= 0 {
		return fmt.Errorf("OPTIMIZER_TOLERANCE must be positive, got %g", c.Optimizer.Tolerance)
	}
	if c.FREDSeries == "" {
		return fmt.Errorf("FRED_SERIES must not be empty")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsOptionalFloat(key string) *float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return &floatVal
		}
	}
	return nil
}

package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aristath/sharpe/internal/config"
	"github.com/aristath/sharpe/internal/di"
	"github.com/aristath/sharpe/internal/domain"
	"github.com/aristath/sharpe/pkg/logger"
	"github.com/rs/zerolog"
)

var (
	logLevel = flag.String("log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL or warn")
	noCache  = flag.Bool("no-cache", false, "bypass the provider cache database")
)

// app bundles what every subcommand needs
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	container *di.Container
}

// openApp loads the configuration and wires the dependencies.
// Logs go to stderr so stdout only carries the report.
func openApp(configure func(cfg *config.Config)) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if *noCache {
		cfg.CacheEnabled = false
	}
	if configure != nil {
		configure(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := *logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		level = "warn"
	}
	log := logger.New(logger.Config{
		Level:  level,
		Pretty: true,
		Output: os.Stderr,
	})

	container, _, err := di.Wire(cfg, log)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, log: log, container: container}, nil
}

func (a *app) Close() {
	if err := a.container.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close container")
	}
}

// readTickers reads tickers from r, one or more per line, until STOP or EOF.
func readTickers(r io.Reader, prompt io.Writer) ([]string, error) {
	var tickers []string
	scanner := bufio.NewScanner(r)
	fmt.Fprintln(prompt, "Enter tickers (STOP to finish):")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(line, "STOP") {
			break
		}
		tickers = append(tickers, domain.SplitTickers(line)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tickers: %w", err)
	}
	return tickers, nil
}

// optionalFloat is a flag.Value that records whether it was set
type optionalFloat struct {
	value *float64
}

func (f *optionalFloat) String() string {
	if f.value == nil {
		return ""
	}
	return fmt.Sprint(*f.value)
}

func (f *optionalFloat) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	f.value = &v
	return nil
}

package di

import (
	"github.com/aristath/sharpe/internal/clientdata"
	"github.com/aristath/sharpe/internal/clients/fred"
	"github.com/aristath/sharpe/internal/clients/yahoo"
	"github.com/aristath/sharpe/internal/config"
	"github.com/aristath/sharpe/internal/domain"
	"github.com/aristath/sharpe/internal/modules/charts"
	"github.com/aristath/sharpe/internal/modules/optimization"
	"github.com/rs/zerolog"
)

// InitializeServices creates the clients and services on top of the databases
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container.ClientDataDB != nil {
		container.ClientDataRepo = clientdata.NewRepository(container.ClientDataDB.Conn())
	}

	// Clients
	container.YahooClient = yahoo.NewClient(cfg.YahooBaseURL, container.ClientDataRepo, log)
	container.QuoteClient = yahoo.NewQuoteClient(container.ClientDataRepo, log)
	container.FREDClient = fred.NewClient(cfg.FREDBaseURL, cfg.FREDSeries, container.ClientDataRepo, log)

	if cfg.RiskFreeRate != nil {
		log.Info().Float64("rate", *cfg.RiskFreeRate).Msg("Using static monthly risk-free rate")
		container.RiskFreeRate = domain.StaticRiskFreeRate(*cfg.RiskFreeRate)
	} else {
		container.RiskFreeRate = container.FREDClient
	}

	// Services
	container.Optimizer = optimization.NewMVOptimizer(OptimizerSettings(cfg), log)
	container.OptimizationService = optimization.NewService(
		container.YahooClient,
		container.QuoteClient,
		container.RiskFreeRate,
		container.Optimizer,
		log,
	)
	container.ChartService = charts.NewService(log)

	return nil
}

// OptimizerSettings maps the configuration onto optimizer settings
func OptimizerSettings(cfg *config.Config) optimization.OptimizerSettings {
	return optimization.OptimizerSettings{
		MinWeight:     cfg.Optimizer.MinWeight,
		MaxWeight:     cfg.Optimizer.MaxWeight,
		MaxIterations: cfg.Optimizer.MaxIterations,
		Tolerance:     cfg.Optimizer.Tolerance,
	}
}

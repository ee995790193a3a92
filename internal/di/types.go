// Package di provides dependency injection type definitions.
//
// The Container holds every long-lived component of the application. It is
// created by Wire() and handed to the HTTP server and the CLI.
package di

import (
	"github.com/aristath/sharpe/internal/clientdata"
	"github.com/aristath/sharpe/internal/clients/fred"
	"github.com/aristath/sharpe/internal/clients/yahoo"
	"github.com/aristath/sharpe/internal/database"
	"github.com/aristath/sharpe/internal/domain"
	"github.com/aristath/sharpe/internal/modules/charts"
	"github.com/aristath/sharpe/internal/modules/optimization"
	"github.com/aristath/sharpe/internal/scheduler"
)

// Container holds all dependencies for the application.
type Container struct {
	// Databases (nil when the provider cache is disabled)
	ClientDataDB *database.DB

	// Repositories
	ClientDataRepo *clientdata.Repository

	// Clients
	YahooClient *yahoo.Client
	QuoteClient *yahoo.QuoteClient
	FREDClient  *fred.Client

	// RiskFreeRate is the FRED client, or a static rate when configured
	RiskFreeRate domain.RiskFreeRateProvider

	// Services
	Optimizer           *optimization.MVOptimizer
	OptimizationService *optimization.Service
	ChartService        *charts.Service
}

// JobInstances holds the registered background jobs
type JobInstances struct {
	Scheduler           *scheduler.Scheduler
	ClientDataCleanup   *clientdata.CleanupJob
	CheckWALCheckpoints scheduler.Job
}

// Close releases the resources held by the container
func (c *Container) Close() error {
	if c == nil || c.ClientDataDB == nil {
		return nil
	}
	return c.ClientDataDB.Close()
}

package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/sharpe/internal/config"
	"github.com/aristath/sharpe/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the provider cache database and applies its schema.
// With the cache disabled the container carries no database.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	if !cfg.CacheEnabled {
		log.Info().Msg("Provider cache disabled")
		return container, nil
	}

	// client_data.db - Provider response cache (prices, rates, quotes)
	clientDataDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "client_data.db"),
		Profile: database.ProfileCache,
		Name:    "client_data",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize client_data database: %w", err)
	}

	if err := clientDataDB.Migrate(); err != nil {
		clientDataDB.Close()
		return nil, fmt.Errorf("failed to migrate client_data database: %w", err)
	}
	container.ClientDataDB = clientDataDB

	log.Info().Str("path", clientDataDB.Path()).Msg("Client data database initialized")

	return container, nil
}

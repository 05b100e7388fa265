// Package providers contains dependency injection providers for the Booksy server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/booksy/booksy-server/internal/config"
	"github.com/booksy/booksy-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Booksy Server",
		"version", config.Version,
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"metadata_path", cfg.Metadata.BasePath,
		"books_path", cfg.Library.BooksPath,
		"store", cfg.Store.Backend,
	)

	return log, nil
}

// Package providers contains dependency injection providers for the Slate server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/slatehq/slate-server/internal/config"
	"github.com/slatehq/slate-server/internal/logger"
)

// ProvideConfig returns a provider that parses args into the configuration.
func ProvideConfig(args []string) do.Provider[*config.Config] {
	return func(do.Injector) (*config.Config, error) {
		return config.LoadConfig(args)
	}
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("starting Slate server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Storage.DataPath,
	)

	return log, nil
}

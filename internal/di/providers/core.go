// Package providers contains dependency injection providers for the
// jam queue client.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/jamqueueapp/jamqueue-client/internal/config"
	"github.com/jamqueueapp/jamqueue-client/internal/logger"
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

	log.Info("starting jam queue client",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"server_url", cfg.Client.ServerURL,
	)

	return log, nil
}

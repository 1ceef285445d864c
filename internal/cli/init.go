// Package cli provides common initialization shared by the commands under
// cmd/.
package cli

import (
	"os"

	"github.com/joho/godotenv"

	"ledgercheck/internal/config"
	"ledgercheck/internal/log"
	"ledgercheck/internal/storage"
)

// SetupLogger initializes structured logging and installs it as the
// process-wide default.
func SetupLogger(component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Component = component
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg
}

// InitStorage opens the check-state repository, running migrations.
// Returns the repository or exits the process on failure.
func InitStorage(logger *log.Logger, dbPath string) *storage.Repository {
	repo, err := storage.NewRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize state repository",
			log.FieldError, err.Error(), "path", dbPath)
		os.Exit(1)
	}
	return repo
}

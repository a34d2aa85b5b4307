package app

import (
	"fmt"

	"nathanbeddoewebdev/payq/internal/auditlog"
	"nathanbeddoewebdev/payq/internal/config"
	"nathanbeddoewebdev/payq/internal/database"
	"nathanbeddoewebdev/payq/internal/services/auth"
)

// LoadSettings reads the config file, applies PAYQ_* environment
// overrides and resolves the result.
func LoadSettings() (config.Settings, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	settings, err := cfg.Resolve()
	if err != nil {
		return config.Settings{}, fmt.Errorf("invalid config: %w", err)
	}
	return settings, nil
}

// DBPath returns the database path for settings.
func DBPath(settings config.Settings) (string, error) {
	if settings.DBPath != "" {
		return settings.DBPath, nil
	}
	return database.DefaultPath()
}

// OpenAudit opens the audit log in the database named by settings.
func OpenAudit(settings config.Settings) (*auditlog.SQLiteRepository, error) {
	path, err := DBPath(settings)
	if err != nil {
		return nil, err
	}
	return auditlog.OpenAt(path)
}

// OpenDefault loads settings and opens the App with the keychain as the
// secret store unless opts names another.
func OpenDefault(opts Options) (*App, error) {
	settings, err := LoadSettings()
	if err != nil {
		return nil, err
	}
	if opts.Secrets == nil {
		opts.Secrets = auth.DefaultStore()
	}
	return Open(settings, opts)
}

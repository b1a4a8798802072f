package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"funneldash/internal/util"
)

// Default returns a configuration with every default applied, used when no
// config file is supplied on the command line.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig reads, parses, and validates the YAML configuration file.
// It applies defaults before returning the validated configuration.
func LoadConfig(filename string) (*Config, error) {
	fileBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(fileBytes, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in '%s': %w", filename, err)
	}

	applyDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults sets default values for the configuration sections and
// expands environment variables in path fields.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	cfg.DataDir = util.ExpandEnvUniversal(cfg.DataDir)
	cfg.RosterFile = util.ExpandEnvUniversal(cfg.RosterFile)
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreBackendJSON
	}
	if cfg.Store.Table == "" {
		cfg.Store.Table = DefaultFunnelTable
	}
	if cfg.Store.ConnString == "" {
		cfg.Store.ConnString = os.Getenv("DB_CREDENTIALS")
	}
	if cfg.Ingest.OnError == "" {
		cfg.Ingest.OnError = OnErrorSkip
	}
}

// ValidateConfig checks the loaded configuration for consistency.
func ValidateConfig(cfg *Config) error {
	switch cfg.Store.Backend {
	case StoreBackendJSON:
		// No further requirements; DataDir has a default.
	case StoreBackendPostgres:
		if cfg.Store.ConnString == "" {
			return fmt.Errorf("store backend 'postgres' requires connString (or the DB_CREDENTIALS environment variable)")
		}
	default:
		return fmt.Errorf("unsupported store backend '%s' (expected '%s' or '%s')", cfg.Store.Backend, StoreBackendJSON, StoreBackendPostgres)
	}

	switch cfg.Ingest.OnError {
	case OnErrorHalt, OnErrorSkip:
	default:
		return fmt.Errorf("unsupported ingest onError mode '%s' (expected '%s' or '%s')", cfg.Ingest.OnError, OnErrorHalt, OnErrorSkip)
	}

	return nil
}

package config

// Constants for configuration modes and defaults.
const (
	StoreBackendJSON     = "json"
	StoreBackendPostgres = "postgres"

	OnErrorHalt = "halt" // Stop the batch on the first row error
	OnErrorSkip = "skip" // Skip failing rows and continue

	DefaultLogLevel    = "info"
	DefaultDataDir     = "data"
	DefaultServerPort  = "8080"
	DefaultFunnelTable = "creator_funnels"
)

// Config defines the overall structure of the configuration YAML file.
type Config struct {
	// Logging configuration specifies the verbosity level.
	Logging LoggingConfig `yaml:"logging"`
	// DataDir is the directory holding persisted local state (funnels,
	// ingest queue, upload log). Environment variables are expanded.
	DataDir string `yaml:"dataDir,omitempty"`
	// RosterFile is an optional path to a JSON file holding the creator
	// roster used for identity resolution. When empty, a built-in demo
	// roster is used.
	RosterFile string `yaml:"rosterFile,omitempty"`
	// Server configures the HTTP API (used with -serve).
	Server ServerConfig `yaml:"server"`
	// Store configures where merged creator funnels are persisted.
	Store StoreConfig `yaml:"store"`
	// Ingest configures batch-level row filtering and error handling.
	Ingest IngestConfig `yaml:"ingest"`
}

// LoggingConfig holds settings related to logging verbosity.
type LoggingConfig struct {
	// Level defines the logging detail (e.g., "none", "error", "warn",
	// "info", "debug"). Defaults to "info".
	Level string `yaml:"level"`
}

// ServerConfig holds settings for the HTTP API server.
type ServerConfig struct {
	// Port the HTTP server listens on. Defaults to "8080".
	Port string `yaml:"port,omitempty"`
}

// StoreConfig configures the funnel store backend.
type StoreConfig struct {
	// Backend selects the persistence backend: "json" (default) keeps the
	// funnel collection in a JSON file under DataDir; "postgres" upserts
	// each funnel record into a table.
	Backend string `yaml:"backend,omitempty"`
	// ConnString is the PostgreSQL connection string. Required for the
	// "postgres" backend. Environment variables are expanded. Falls back to
	// the DB_CREDENTIALS environment variable when empty.
	ConnString string `yaml:"connString,omitempty"`
	// Table is the target table for the "postgres" backend.
	// Defaults to "creator_funnels".
	Table string `yaml:"table,omitempty"`
}

// IngestConfig configures per-row behavior of the ingestion pipeline.
type IngestConfig struct {
	// Filter is an optional expression (govaluate syntax) evaluated against
	// each normalized, auto-fixed row. Available parameters: creator,
	// clicks, dpv, atc, orders, revenue (numbers) and platform (string).
	// Rows for which the expression evaluates to false are dropped.
	// Example: "clicks >= 50"
	Filter string `yaml:"filter,omitempty"`
	// OnError defines how row-level evaluation errors are handled:
	// "skip" (default) drops the row and continues, "halt" fails the batch.
	OnError string `yaml:"onError,omitempty"`
}

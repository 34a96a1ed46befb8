package config

import "time"

// Config is the root configuration shared by the ingester and lookupd binaries.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Log      LogConfig      `yaml:"log"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Ingest   IngestConfig   `yaml:"ingest"`
	GLEIF    GLEIFConfig    `yaml:"gleif"`
	Server   ServerConfig   `yaml:"server"`
}

// InstanceConfig identifies this deployment in logs.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// APIConfig holds search endpoint settings.
type APIConfig struct {
	SearchURL         string        `yaml:"search_url"`
	Timeout           time.Duration `yaml:"timeout"`
	PageSize          int           `yaml:"page_size"`
	PageConcurrency   int           `yaml:"page_concurrency"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// StorageConfig selects and configures the lookup store backend.
type StorageConfig struct {
	Driver   string       `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig `yaml:"sqlite"`
	Postgres DBConfig     `yaml:"postgres"`
}

// SQLiteConfig holds the embedded database location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// DBConfig holds a single PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// IngestConfig controls which files are fetched and where they land.
type IngestConfig struct {
	DataDir           string         `yaml:"data_dir"`
	From              string         `yaml:"from"` // YYYY-MM-DD, optional
	To                string         `yaml:"to"`   // YYYY-MM-DD, optional
	Lookback          time.Duration  `yaml:"lookback"`
	Workers           int            `yaml:"workers"`
	IncompleteRecords string         `yaml:"incomplete_records"` // fail or skip
	Sources           []SourceConfig `yaml:"sources"`
}

// SourceConfig maps a set of instrument classes to one lookup table.
type SourceConfig struct {
	Table string `yaml:"table"`
	Types string `yaml:"types"` // CFI class letters, e.g. "E" or "BD"; empty = all
}

// GLEIFConfig holds enrichment API settings.
type GLEIFConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// ServerConfig holds the lookup HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

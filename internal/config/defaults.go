package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultSearchURL         = "https://registers.esma.europa.eu/solr/esma_registers_firds_files/select"
	DefaultAPITimeout        = 60 * time.Second
	DefaultPageSize          = 100
	DefaultPageConcurrency   = 1
	DefaultRequestsPerSecond = 2
	DefaultBurst             = 1
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultStorageDriver     = DriverSQLite
	DefaultSQLitePath        = "firds.db"
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultDataDir           = "data_files"
	DefaultLookback          = 7 * 24 * time.Hour
	DefaultWorkers           = 4
	DefaultIncompleteRecords = IncompleteFail
	DefaultGLEIFURL          = "https://api.gleif.org/api/v1"
	DefaultGLEIFTimeout      = 30 * time.Second
	DefaultGLEIFRate         = 1
	DefaultServerPort        = 8080
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Incomplete record policies.
const (
	IncompleteFail = "fail"
	IncompleteSkip = "skip"
)

// ApplyDefaults fills every unset optional field.
func (c *Config) ApplyDefaults() {
	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// API defaults
	if c.API.SearchURL == "" {
		c.API.SearchURL = DefaultSearchURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.PageSize == 0 {
		c.API.PageSize = DefaultPageSize
	}
	if c.API.PageConcurrency == 0 {
		c.API.PageConcurrency = DefaultPageConcurrency
	}
	if c.API.RequestsPerSecond == 0 {
		c.API.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.API.Burst == 0 {
		c.API.Burst = DefaultBurst
	}

	// Storage defaults
	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultStorageDriver
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = DefaultSQLitePath
	}
	applyDBDefaults(&c.Storage.Postgres)

	// Ingest defaults
	if c.Ingest.DataDir == "" {
		c.Ingest.DataDir = DefaultDataDir
	}
	if c.Ingest.Lookback == 0 {
		c.Ingest.Lookback = DefaultLookback
	}
	if c.Ingest.Workers == 0 {
		c.Ingest.Workers = DefaultWorkers
	}
	if c.Ingest.IncompleteRecords == "" {
		c.Ingest.IncompleteRecords = DefaultIncompleteRecords
	}

	// GLEIF defaults
	if c.GLEIF.BaseURL == "" {
		c.GLEIF.BaseURL = DefaultGLEIFURL
	}
	if c.GLEIF.Timeout == 0 {
		c.GLEIF.Timeout = DefaultGLEIFTimeout
	}
	if c.GLEIF.RequestsPerSecond == 0 {
		c.GLEIF.RequestsPerSecond = DefaultGLEIFRate
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

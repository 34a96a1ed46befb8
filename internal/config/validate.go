package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.API.SearchURL == "" {
		return errors.New("api.search_url is required")
	}
	if c.API.PageSize < 1 {
		return errors.New("api.page_size must be >= 1")
	}
	if c.API.PageConcurrency < 1 {
		return errors.New("api.page_concurrency must be >= 1")
	}
	if c.API.RequestsPerSecond < 0 {
		return errors.New("api.requests_per_second must be >= 0")
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required")
		}
	case DriverPostgres:
		if err := c.Storage.Postgres.validate("storage.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.driver must be sqlite or postgres, got %q", c.Storage.Driver)
	}

	if c.Ingest.Workers < 1 {
		return errors.New("ingest.workers must be >= 1")
	}
	switch c.Ingest.IncompleteRecords {
	case IncompleteFail, IncompleteSkip:
	default:
		return fmt.Errorf("ingest.incomplete_records must be fail or skip, got %q", c.Ingest.IncompleteRecords)
	}
	if _, err := parseDate(c.Ingest.From); err != nil {
		return fmt.Errorf("ingest.from: %w", err)
	}
	if _, err := parseDate(c.Ingest.To); err != nil {
		return fmt.Errorf("ingest.to: %w", err)
	}
	for i, src := range c.Ingest.Sources {
		if src.Table == "" {
			return fmt.Errorf("ingest.sources[%d].table is required", i)
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

// Window returns the configured ingest bounds. Unset bounds are zero times.
func (c *IngestConfig) Window() (from, to time.Time, err error) {
	if from, err = parseDate(c.From); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("ingest.from: %w", err)
	}
	if to, err = parseDate(c.To); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("ingest.to: %w", err)
	}
	return from, to, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

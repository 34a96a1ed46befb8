package lookup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bunburya/eu-finreg-data/internal/config"
	"github.com/bunburya/eu-finreg-data/internal/database"
)

// Open connects the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Driver {
	case config.DriverSQLite, "":
		db, err := database.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("opened lookup store", "driver", config.DriverSQLite, "path", cfg.SQLite.Path)
		return NewSQLiteStore(db, logger), nil

	case config.DriverPostgres:
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		logger.Info("opened lookup store",
			"driver", config.DriverPostgres,
			"host", cfg.Postgres.Host,
			"database", cfg.Postgres.Name,
		)
		return NewPostgresStore(pool, logger), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

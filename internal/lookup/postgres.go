package lookup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bunburya/eu-finreg-data/internal/model"
)

// PostgresStore is a Store backed by a PostgreSQL connection pool.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore wraps a pool. The store takes ownership of db.
func NewPostgresStore(db *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

func pgCreateTable(name string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		isin TEXT PRIMARY KEY,
		lei  TEXT NOT NULL CHECK (lei <> '')
	)`, pgx.Identifier{name}.Sanitize())
}

// ensureTable creates the table while holding a transaction-scoped advisory
// lock. Concurrent CREATE TABLE IF NOT EXISTS can otherwise fail with a
// unique violation on pg_type.
func ensureTable(ctx context.Context, tx pgx.Tx, name string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, name); err != nil {
		return fmt.Errorf("lock table: %w", err)
	}
	if _, err := tx.Exec(ctx, pgCreateTable(name)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// EnsureTable creates the named table if needed.
func (s *PostgresStore) EnsureTable(ctx context.Context, name string) error {
	name, err := TableName(name)
	if err != nil {
		return storageErr(name, "ensure", err)
	}

	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return ensureTable(ctx, tx, name)
	})
	if err != nil {
		return storageErr(name, "ensure", err)
	}
	return nil
}

// Append inserts records with a pgx.Batch inside one transaction.
func (s *PostgresStore) Append(ctx context.Context, name string, records []model.ReferenceRecord) (AppendStats, error) {
	name, err := TableName(name)
	if err != nil {
		return AppendStats{}, storageErr(name, "append", err)
	}
	if err := validateRecords(records); err != nil {
		return AppendStats{}, storageErr(name, "append", err)
	}

	start := time.Now()
	var stats AppendStats
	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := ensureTable(ctx, tx, name); err != nil {
			return err
		}
		var err error
		stats, err = batchInsert(ctx, tx, name, records)
		return err
	})
	if err != nil {
		return AppendStats{}, storageErr(name, "append", err)
	}

	s.logger.Debug("appended records",
		"table", name,
		"inserted", stats.Inserted,
		"conflicts", stats.Conflicts,
		"duration", time.Since(start),
	)
	return stats, nil
}

// batchInsert queues one ON CONFLICT DO NOTHING insert per record. A zero
// row count marks a conflict.
func batchInsert(ctx context.Context, tx pgx.Tx, name string, records []model.ReferenceRecord) (AppendStats, error) {
	var stats AppendStats
	if len(records) == 0 {
		return stats, nil
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (isin, lei) VALUES ($1, $2) ON CONFLICT (isin) DO NOTHING`,
		pgx.Identifier{name}.Sanitize(),
	)

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query, r.ISIN, r.LEI)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for _, r := range records {
		ct, err := results.Exec()
		if err != nil {
			return AppendStats{}, fmt.Errorf("insert %s: %w", r.ISIN, err)
		}
		if ct.RowsAffected() == 0 {
			stats.Conflicts++
		} else {
			stats.Inserted++
		}
	}

	return stats, results.Close()
}

// Lookup resolves isins with a single = ANY($1) query.
func (s *PostgresStore) Lookup(ctx context.Context, isins []string, name string) ([]model.LookupResult, error) {
	name, err := TableName(name)
	if err != nil {
		return nil, storageErr(name, "lookup", err)
	}
	if len(isins) == 0 {
		return []model.LookupResult{}, nil
	}

	found := make(map[string]string, len(isins))
	ident := pgx.Identifier{name}.Sanitize()

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT to_regclass($1::text) IS NOT NULL`, ident).Scan(&exists); err != nil {
		return nil, storageErr(name, "lookup", err)
	}
	if !exists {
		return buildResults(isins, found), nil
	}

	rows, err := s.db.Query(ctx,
		fmt.Sprintf(`SELECT isin, lei FROM %s WHERE isin = ANY($1)`, ident),
		distinct(isins),
	)
	if err != nil {
		return nil, storageErr(name, "lookup", err)
	}

	var isin, lei string
	_, err = pgx.ForEachRow(rows, []any{&isin, &lei}, func() error {
		found[isin] = lei
		return nil
	})
	if err != nil {
		return nil, storageErr(name, "lookup", err)
	}

	return buildResults(isins, found), nil
}

// Ping checks the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

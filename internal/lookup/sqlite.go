package lookup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/bunburya/eu-finreg-data/internal/model"
)

// sqliteMaxParams keeps IN lists well below SQLITE_MAX_VARIABLE_NUMBER.
const sqliteMaxParams = 500

// SQLiteStore is a Store backed by a single SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore wraps an open database. The store takes ownership of db.
func NewSQLiteStore(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: db, logger: logger}
}

func sqliteCreateTable(name string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		isin TEXT PRIMARY KEY,
		lei  TEXT NOT NULL CHECK (lei <> '')
	)`, quoteIdent(name))
}

// EnsureTable creates the named table if needed.
func (s *SQLiteStore) EnsureTable(ctx context.Context, name string) error {
	name, err := TableName(name)
	if err != nil {
		return storageErr(name, "ensure", err)
	}
	if _, err := s.db.ExecContext(ctx, sqliteCreateTable(name)); err != nil {
		return storageErr(name, "ensure", err)
	}
	return nil
}

// Append inserts records in a single transaction.
func (s *SQLiteStore) Append(ctx context.Context, name string, records []model.ReferenceRecord) (AppendStats, error) {
	name, err := TableName(name)
	if err != nil {
		return AppendStats{}, storageErr(name, "append", err)
	}
	if err := validateRecords(records); err != nil {
		return AppendStats{}, storageErr(name, "append", err)
	}

	start := time.Now()
	stats, err := s.appendTx(ctx, name, records)
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

func (s *SQLiteStore) appendTx(ctx context.Context, name string, records []model.ReferenceRecord) (AppendStats, error) {
	var stats AppendStats

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, sqliteCreateTable(name)); err != nil {
		return stats, err
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (isin, lei) VALUES (?, ?) ON CONFLICT (isin) DO NOTHING`,
		quoteIdent(name),
	))
	if err != nil {
		return stats, err
	}
	defer stmt.Close()

	for _, r := range records {
		res, err := stmt.ExecContext(ctx, r.ISIN, r.LEI)
		if err != nil {
			return stats, fmt.Errorf("insert %s: %w", r.ISIN, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return stats, err
		}
		if n == 0 {
			stats.Conflicts++
		} else {
			stats.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, err
	}
	return stats, nil
}

// Lookup resolves isins against the named table. All chunks are read inside
// one transaction so a concurrent Append is seen entirely or not at all.
func (s *SQLiteStore) Lookup(ctx context.Context, isins []string, name string) ([]model.LookupResult, error) {
	name, err := TableName(name)
	if err != nil {
		return nil, storageErr(name, "lookup", err)
	}
	if len(isins) == 0 {
		return []model.LookupResult{}, nil
	}

	found, err := s.lookupTx(ctx, distinct(isins), name)
	if err != nil {
		return nil, storageErr(name, "lookup", err)
	}
	return buildResults(isins, found), nil
}

func (s *SQLiteStore) lookupTx(ctx context.Context, isins []string, name string) (map[string]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	found := make(map[string]string, len(isins))

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE`, name,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return found, nil
	}
	if err != nil {
		return nil, err
	}

	for chunk := range slices.Chunk(isins, sqliteMaxParams) {
		if err := lookupChunk(ctx, tx, name, chunk, found); err != nil {
			return nil, err
		}
	}

	return found, tx.Commit()
}

func lookupChunk(ctx context.Context, tx *sql.Tx, name string, isins []string, found map[string]string) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(isins)), ",")
	args := make([]any, len(isins))
	for i, isin := range isins {
		args[i] = isin
	}

	rows, err := tx.QueryContext(ctx, fmt.Sprintf(
		`SELECT isin, lei FROM %s WHERE isin IN (%s)`, quoteIdent(name), placeholders,
	), args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var isin, lei string
		if err := rows.Scan(&isin, &lei); err != nil {
			return err
		}
		found[isin] = lei
	}
	return rows.Err()
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package lookup

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bunburya/eu-finreg-data/internal/model"
)

// Store is a keyed ISIN to LEI table store.
type Store interface {
	// EnsureTable creates the named table if it does not exist.
	EnsureTable(ctx context.Context, name string) error

	// Append inserts records into the named table in one transaction.
	// Existing ISINs are left untouched and counted as conflicts.
	Append(ctx context.Context, name string, records []model.ReferenceRecord) (AppendStats, error)

	// Lookup returns one result per input ISIN, in input order.
	Lookup(ctx context.Context, isins []string, name string) ([]model.LookupResult, error)

	Ping(ctx context.Context) error
	Close() error
}

// AppendStats reports the outcome of a committed Append.
type AppendStats struct {
	Inserted  int
	Conflicts int // records skipped because the ISIN was already stored
}

// Add accumulates stats across batches.
func (s *AppendStats) Add(o AppendStats) {
	s.Inserted += o.Inserted
	s.Conflicts += o.Conflicts
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_-]{0,62}$`)

// ValidateTableName checks that name is usable as a table label.
func ValidateTableName(name string) error {
	if !tableNameRe.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// TableName returns the canonical, lower-case form of a table label. Labels
// differing only in case address the same table on every backend. An invalid
// label is returned unchanged with the error.
func TableName(label string) (string, error) {
	if err := ValidateTableName(label); err != nil {
		return label, err
	}
	return strings.ToLower(label), nil
}

// quoteIdent quotes a validated table name for SQL.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// validateRecords rejects batches that would violate table constraints before
// any statement is sent.
func validateRecords(records []model.ReferenceRecord) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// distinct returns isins without duplicates, in first-seen order.
func distinct(isins []string) []string {
	seen := make(map[string]struct{}, len(isins))
	out := make([]string, 0, len(isins))
	for _, isin := range isins {
		if _, ok := seen[isin]; ok {
			continue
		}
		seen[isin] = struct{}{}
		out = append(out, isin)
	}
	return out
}

// buildResults maps found LEIs back onto the requested ISINs.
func buildResults(isins []string, found map[string]string) []model.LookupResult {
	results := make([]model.LookupResult, len(isins))
	for i, isin := range isins {
		lei, ok := found[isin]
		results[i] = model.LookupResult{ISIN: isin, LEI: lei, Found: ok}
	}
	return results
}

func storageErr(table, op string, err error) error {
	return &model.StorageError{Table: table, Op: op, Err: err}
}

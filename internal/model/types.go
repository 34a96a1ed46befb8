package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// FileNamePrefix is the prefix of every full reference-data file name. The
// instrument class letter follows it, e.g. "FULINS_B_20240106_1of1.zip".
const FileNamePrefix = "FULINS_"

// DefaultLookback is the window length used when no start date is given.
const DefaultLookback = 7 * 24 * time.Hour

// FirstPublicationDate is the earliest date on which reference files exist.
var FirstPublicationDate = time.Date(2017, 10, 15, 0, 0, 0, 0, time.UTC)

// -----------------------------------------------------------------------------
// Query Types
// -----------------------------------------------------------------------------

// TimeWindow is an inclusive range of publication dates.
type TimeWindow struct {
	From time.Time // First day (UTC midnight)
	To   time.Time // Last day (UTC midnight), inclusive
}

// ResolveWindow builds a TimeWindow from optional bounds. A zero time means
// "unspecified":
//   - neither bound: the lookback period ending at now
//   - only from: the single day from
//   - only to: the lookback period ending at to
//
// A window that starts before FirstPublicationDate is clamped to it.
func ResolveWindow(from, to, now time.Time, lookback time.Duration) (TimeWindow, error) {
	if lookback <= 0 {
		lookback = DefaultLookback
	}

	switch {
	case from.IsZero() && to.IsZero():
		to = now
		from = now.Add(-lookback)
	case to.IsZero():
		to = from
	case from.IsZero():
		from = to.Add(-lookback)
	}

	w := TimeWindow{From: truncateDay(from), To: truncateDay(to)}
	if w.From.After(w.To) {
		return TimeWindow{}, fmt.Errorf("invalid window: from %s is after to %s", w.From.Format(time.DateOnly), w.To.Format(time.DateOnly))
	}
	if w.To.Before(FirstPublicationDate) {
		return TimeWindow{}, fmt.Errorf("invalid window: to %s is before first publication date %s",
			w.To.Format(time.DateOnly), FirstPublicationDate.Format(time.DateOnly))
	}
	if w.From.Before(FirstPublicationDate) {
		w.From = FirstPublicationDate
	}
	return w, nil
}

// Days returns the number of days covered by the window.
func (w TimeWindow) Days() int {
	return int(w.To.Sub(w.From)/(24*time.Hour)) + 1
}

func (w TimeWindow) String() string {
	return w.From.Format(time.DateOnly) + ".." + w.To.Format(time.DateOnly)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TypeFilter selects instrument classes by the first letter of their CFI
// code. The zero value matches every file.
type TypeFilter struct {
	letters []byte
}

// ParseTypeFilter builds a filter from a string of class letters, e.g. "BE".
// Letters are case-insensitive; duplicates are ignored.
func ParseTypeFilter(s string) (TypeFilter, error) {
	var f TypeFilter
	for _, r := range strings.ToUpper(s) {
		if r < 'A' || r > 'Z' {
			return TypeFilter{}, fmt.Errorf("invalid instrument type %q: must be a letter", r)
		}
		if !slices.Contains(f.letters, byte(r)) {
			f.letters = append(f.letters, byte(r))
		}
	}
	slices.Sort(f.letters)
	return f, nil
}

// MustTypeFilter is like ParseTypeFilter but panics on invalid input.
func MustTypeFilter(s string) TypeFilter {
	f, err := ParseTypeFilter(s)
	if err != nil {
		panic(err)
	}
	return f
}

// Empty reports whether the filter matches everything.
func (f TypeFilter) Empty() bool {
	return len(f.letters) == 0
}

// Matches reports whether a file name belongs to one of the selected classes.
func (f TypeFilter) Matches(fileName string) bool {
	if f.Empty() {
		return true
	}
	rest, ok := strings.CutPrefix(fileName, FileNamePrefix)
	if !ok || rest == "" {
		return false
	}
	return slices.Contains(f.letters, rest[0])
}

func (f TypeFilter) String() string {
	return string(f.letters)
}

// -----------------------------------------------------------------------------
// Pipeline Types
// -----------------------------------------------------------------------------

// ManifestEntry is one downloadable file listed by the search endpoint.
type ManifestEntry struct {
	FileName    string // e.g. "FULINS_E_20240106_1of2.zip"
	DownloadURL string
}

// ReferenceRecord pairs an instrument with its issuer.
type ReferenceRecord struct {
	ISIN string // Primary key
	LEI  string // Never empty
}

// Validate checks the record can be stored.
func (r ReferenceRecord) Validate() error {
	if r.ISIN == "" {
		return errors.New("record has empty isin")
	}
	if r.LEI == "" {
		return fmt.Errorf("record %s has empty lei", r.ISIN)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Lookup Types
// -----------------------------------------------------------------------------

// LookupResult is the outcome of looking up one ISIN. A miss is a normal
// result with Found set to false.
type LookupResult struct {
	ISIN  string
	LEI   string // Empty when not found
	Found bool
}

// LEIs returns the distinct LEIs of all found results, in first-seen order.
func LEIs(results []LookupResult) []string {
	seen := make(map[string]struct{}, len(results))
	leis := make([]string, 0, len(results))
	for _, r := range results {
		if !r.Found {
			continue
		}
		if _, ok := seen[r.LEI]; ok {
			continue
		}
		seen[r.LEI] = struct{}{}
		leis = append(leis, r.LEI)
	}
	return leis
}

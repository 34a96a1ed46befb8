package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/bunburya/eu-finreg-data/internal/database"
	"github.com/bunburya/eu-finreg-data/internal/gleif"
	"github.com/bunburya/eu-finreg-data/internal/lookup"
	"github.com/bunburya/eu-finreg-data/internal/model"
)

type fakeEnricher struct {
	entities map[string]gleif.Entity
	err      error
	calls    [][]string
}

func (f *fakeEnricher) LookupEntities(ctx context.Context, leis []string) (map[string]gleif.Entity, error) {
	f.calls = append(f.calls, leis)
	if f.err != nil {
		return nil, f.err
	}
	return f.entities, nil
}

// brokenStore fails every call.
type brokenStore struct{ lookup.Store }

func (brokenStore) Ping(context.Context) error { return errors.New("connection refused") }

func (brokenStore) Lookup(context.Context, []string, string) ([]model.LookupResult, error) {
	return nil, &model.StorageError{Table: "t", Op: "lookup", Err: errors.New("disk I/O error")}
}

func newTestStore(t *testing.T) *lookup.SQLiteStore {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "lookup.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	store := lookup.NewSQLiteStore(db, nil)
	t.Cleanup(func() { store.Close() })

	_, err = store.Append(context.Background(), "equities", []model.ReferenceRecord{
		{ISIN: "GB00B03MLX29", LEI: "549300NKI1HP0UPC2S49"},
		{ISIN: "IE00B4L5Y983", LEI: "635400AKJBGNS5WNQL34"},
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	return store
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeItems(t *testing.T, rec *httptest.ResponseRecorder) []lookupItem {
	t.Helper()
	var items []lookupItem
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return items
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		rec := get(t, New(newTestStore(t), nil, nil).Handler(), "/health")
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		var body struct {
			Status string `json:"status"`
		}
		json.NewDecoder(rec.Body).Decode(&body)
		if body.Status != "healthy" {
			t.Errorf("status field = %q, want healthy", body.Status)
		}
	})

	t.Run("unhealthy", func(t *testing.T) {
		rec := get(t, New(brokenStore{}, nil, nil).Handler(), "/health")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}

func TestLookup(t *testing.T) {
	h := New(newTestStore(t), nil, nil).Handler()

	rec := get(t, h, "/lookup?table=equities&isin=IE00B4L5Y983,XS0000000000&isin=GB00B03MLX29")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	items := decodeItems(t, rec)
	want := []lookupItem{
		{ISIN: "IE00B4L5Y983", LEI: "635400AKJBGNS5WNQL34", Found: true},
		{ISIN: "XS0000000000"},
		{ISIN: "GB00B03MLX29", LEI: "549300NKI1HP0UPC2S49", Found: true},
	}
	if len(items) != len(want) {
		t.Fatalf("len(items) = %d, want %d", len(items), len(want))
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("items[%d] = %+v, want %+v", i, items[i], want[i])
		}
	}
}

func TestLookup_MissingTableIsNotFound(t *testing.T) {
	h := New(newTestStore(t), nil, nil).Handler()

	rec := get(t, h, "/lookup?table=never_written&isin=GB00B03MLX29")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if items := decodeItems(t, rec); items[0].Found {
		t.Errorf("items[0] = %+v, want not found", items[0])
	}
}

func TestLookup_BadRequests(t *testing.T) {
	h := New(newTestStore(t), nil, nil).Handler()

	tests := []struct {
		name   string
		target string
	}{
		{"no table", "/lookup?isin=A"},
		{"bad table", "/lookup?table=a%20b&isin=A"},
		{"no isin", "/lookup?table=equities"},
		{"blank isins", "/lookup?table=equities&isin=,%20,"},
		{"bad enrich", "/lookup?table=equities&isin=A&enrich=maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/lookup?table=equities&isin=A", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}

func TestLookup_StorageFailure(t *testing.T) {
	rec := get(t, New(brokenStore{}, nil, nil).Handler(), "/lookup?table=t&isin=A")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestLookup_Enrich(t *testing.T) {
	enricher := &fakeEnricher{entities: map[string]gleif.Entity{
		"549300NKI1HP0UPC2S49": {LEI: "549300NKI1HP0UPC2S49", LegalName: "Example Holdings PLC", Jurisdiction: "GB"},
	}}
	h := New(newTestStore(t), enricher, nil).Handler()

	rec := get(t, h, "/lookup?table=equities&isin=GB00B03MLX29,IE00B4L5Y983,XS0000000000,GB00B03MLX29&enrich=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	items := decodeItems(t, rec)

	if len(enricher.calls) != 1 || len(enricher.calls[0]) != 2 {
		t.Fatalf("enricher calls = %v, want one call with 2 distinct LEIs", enricher.calls)
	}
	if items[0].Entity == nil || items[0].Entity.LegalName != "Example Holdings PLC" {
		t.Errorf("items[0].Entity = %+v", items[0].Entity)
	}
	if items[1].Entity != nil {
		t.Errorf("items[1].Entity = %+v, want nil for unknown LEI", items[1].Entity)
	}
	if items[2].Entity != nil {
		t.Errorf("items[2].Entity = %+v, want nil for not found", items[2].Entity)
	}
	if items[3].Entity == nil {
		t.Error("items[3].Entity is nil for repeated ISIN")
	}
}

func TestLookup_EnrichFailureDegrades(t *testing.T) {
	enricher := &fakeEnricher{err: &model.NetworkError{Op: "gleif", URL: "http://gleif", StatusCode: 503}}
	h := New(newTestStore(t), enricher, nil).Handler()

	rec := get(t, h, "/lookup?table=equities&isin=GB00B03MLX29&enrich=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	items := decodeItems(t, rec)
	if !items[0].Found || items[0].Entity != nil {
		t.Errorf("items[0] = %+v, want found without entity", items[0])
	}
}

func TestSplitISINs(t *testing.T) {
	got := splitISINs([]string{"A, B", "", "C,,D "})
	want := []string{"A", "B", "C", "D"}
	if len(got) != len(want) {
		t.Fatalf("splitISINs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitISINs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

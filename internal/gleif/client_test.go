package gleif

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bunburya/eu-finreg-data/internal/model"
)

// fakeGLEIF answers lei-records requests from a fixed set of entities.
type fakeGLEIF struct {
	entities map[string]Entity
	status   int

	mu       sync.Mutex
	requests []*http.Request
}

func (f *fakeGLEIF) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	if r.URL.Path != "/lei-records" {
		http.NotFound(w, r)
		return
	}

	var data []map[string]any
	for _, lei := range strings.Split(r.URL.Query().Get("filter[lei]"), ",") {
		e, ok := f.entities[lei]
		if !ok {
			continue
		}
		data = append(data, map[string]any{
			"type": "lei-records",
			"id":   e.LEI,
			"attributes": map[string]any{
				"lei": e.LEI,
				"entity": map[string]any{
					"legalName":    map[string]any{"name": e.LegalName, "language": "en"},
					"jurisdiction": e.Jurisdiction,
				},
			},
		})
	}
	w.Header().Set("Content-Type", "application/vnd.api+json")
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func (f *fakeGLEIF) recorded() []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}

func newFake() *fakeGLEIF {
	return &fakeGLEIF{entities: map[string]Entity{
		"549300NKI1HP0UPC2S49": {LEI: "549300NKI1HP0UPC2S49", LegalName: "Example Holdings PLC", Jurisdiction: "GB"},
		"635400AKJBGNS5WNQL34": {LEI: "635400AKJBGNS5WNQL34", LegalName: "Example Funds ICAV", Jurisdiction: "IE"},
	}}
}

func TestNewClient(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := NewClient(DefaultBaseURL + "/")
		if c.baseURL != DefaultBaseURL {
			t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want 30s", c.httpClient.Timeout)
		}
	})

	t.Run("with options", func(t *testing.T) {
		c := NewClient(DefaultBaseURL, WithTimeout(5*time.Second), WithRateLimit(2))
		if c.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", c.httpClient.Timeout)
		}
		if c.limiter.Limit() != 2 {
			t.Errorf("Limit = %v, want 2", c.limiter.Limit())
		}
	})
}

func TestLookupEntities(t *testing.T) {
	fake := newFake()
	server := httptest.NewServer(fake)
	defer server.Close()

	c := NewClient(server.URL)
	got, err := c.LookupEntities(context.Background(), []string{
		"549300NKI1HP0UPC2S49", "UNKNOWN0000000000000", "635400AKJBGNS5WNQL34", "549300NKI1HP0UPC2S49", "",
	})
	if err != nil {
		t.Fatalf("LookupEntities() error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("len(entities) = %d, want 2", len(got))
	}
	if e := got["549300NKI1HP0UPC2S49"]; e.LegalName != "Example Holdings PLC" || e.Jurisdiction != "GB" {
		t.Errorf("entity = %+v", e)
	}
	if _, ok := got["UNKNOWN0000000000000"]; ok {
		t.Error("unknown LEI present in result")
	}

	reqs := fake.recorded()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	q := reqs[0].URL.Query()
	if q.Get("page[size]") != "3" || q.Get("page[number]") != "1" {
		t.Errorf("paging = size %q number %q, want 3 and 1", q.Get("page[size]"), q.Get("page[number]"))
	}
	if ua := reqs[0].Header.Get("User-Agent"); !strings.HasPrefix(ua, "eu-finreg-data/") {
		t.Errorf("User-Agent = %q", ua)
	}
}

func TestLookupEntities_Batches(t *testing.T) {
	fake := newFake()
	server := httptest.NewServer(fake)
	defer server.Close()

	leis := make([]string, MaxBatch*2+1)
	for i := range leis {
		leis[i] = fmt.Sprintf("LEI%017d", i)
	}

	c := NewClient(server.URL)
	if _, err := c.LookupEntities(context.Background(), leis); err != nil {
		t.Fatalf("LookupEntities() error = %v", err)
	}

	reqs := fake.recorded()
	if len(reqs) != 3 {
		t.Fatalf("requests = %d, want 3", len(reqs))
	}
	sizes := []string{"200", "200", "1"}
	for i, r := range reqs {
		if got := r.URL.Query().Get("page[size]"); got != sizes[i] {
			t.Errorf("request %d page[size] = %s, want %s", i, got, sizes[i])
		}
	}
}

func TestLookupEntities_Empty(t *testing.T) {
	fake := newFake()
	server := httptest.NewServer(fake)
	defer server.Close()

	got, err := NewClient(server.URL).LookupEntities(context.Background(), nil)
	if err != nil {
		t.Fatalf("LookupEntities() error = %v", err)
	}
	if len(got) != 0 || len(fake.recorded()) != 0 {
		t.Errorf("entities = %d requests = %d, want 0 and 0", len(got), len(fake.recorded()))
	}
}

func TestLookupEntities_Errors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		fake := newFake()
		fake.status = http.StatusServiceUnavailable
		server := httptest.NewServer(fake)
		defer server.Close()

		_, err := NewClient(server.URL).LookupEntities(context.Background(), []string{"A"})
		var netErr *model.NetworkError
		if !errors.As(err, &netErr) || netErr.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("error = %v, want 503 NetworkError", err)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data": [`))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).LookupEntities(context.Background(), []string{"A"})
		var parseErr *model.ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("error = %v, want ParseError", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		server := httptest.NewServer(newFake())
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewClient(server.URL).LookupEntities(ctx, []string{"A"})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want context.Canceled", err)
		}
	})
}

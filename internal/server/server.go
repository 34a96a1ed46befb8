// Package server exposes the lookup store over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bunburya/eu-finreg-data/internal/gleif"
	"github.com/bunburya/eu-finreg-data/internal/lookup"
	"github.com/bunburya/eu-finreg-data/internal/model"
)

// MaxISINs caps the ISINs accepted by one lookup request.
const MaxISINs = 10000

// Enricher resolves LEIs to entity details.
type Enricher interface {
	LookupEntities(ctx context.Context, leis []string) (map[string]gleif.Entity, error)
}

// Server serves /health and /lookup.
type Server struct {
	store    lookup.Store
	enricher Enricher
	logger   *slog.Logger
}

// New creates a server. A nil enricher makes enrich=true a no-op.
func New(store lookup.Store, enricher Enricher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, enricher: enricher, logger: logger}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /lookup", s.handleLookup)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := struct {
		Status     string         `json:"status"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		Components: make(map[string]any),
	}

	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		health.Status = "unhealthy"
		health.Components["store"] = map[string]string{
			"status": "disconnected",
			"error":  err.Error(),
		}
		status = http.StatusServiceUnavailable
	} else {
		health.Components["store"] = "connected"
	}

	writeJSON(w, status, health)
}

// lookupItem is one element of the /lookup response.
type lookupItem struct {
	ISIN   string        `json:"isin"`
	LEI    string        `json:"lei,omitempty"`
	Found  bool          `json:"found"`
	Entity *gleif.Entity `json:"entity,omitempty"`
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	table := q.Get("table")
	if table == "" {
		writeError(w, http.StatusBadRequest, errors.New("table is required"))
		return
	}
	if err := lookup.ValidateTableName(table); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	isins := splitISINs(q["isin"])
	if len(isins) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("at least one isin is required"))
		return
	}
	if len(isins) > MaxISINs {
		writeError(w, http.StatusBadRequest, fmt.Errorf("too many isins: %d > %d", len(isins), MaxISINs))
		return
	}

	enrich := false
	if v := q.Get("enrich"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid enrich value %q", v))
			return
		}
		enrich = b
	}

	results, err := s.store.Lookup(r.Context(), isins, table)
	if err != nil {
		s.logger.Error("lookup failed", "table", table, "err", err)
		writeError(w, http.StatusInternalServerError, errors.New("lookup failed"))
		return
	}

	items := make([]lookupItem, len(results))
	for i, res := range results {
		items[i] = lookupItem{ISIN: res.ISIN, LEI: res.LEI, Found: res.Found}
	}

	if enrich {
		s.enrich(r.Context(), items, results)
	}

	writeJSON(w, http.StatusOK, items)
}

// enrich attaches entity details where available. Failures leave items as
// they are.
func (s *Server) enrich(ctx context.Context, items []lookupItem, results []model.LookupResult) {
	if s.enricher == nil {
		return
	}
	leis := model.LEIs(results)
	if len(leis) == 0 {
		return
	}

	entities, err := s.enricher.LookupEntities(ctx, leis)
	if err != nil {
		s.logger.Warn("enrichment failed", "leis", len(leis), "err", err)
		return
	}

	for i := range items {
		if e, ok := entities[items[i].LEI]; ok && items[i].Found {
			items[i].Entity = &e
		}
	}
}

// splitISINs flattens repeated and comma-separated isin parameters.
func splitISINs(params []string) []string {
	var isins []string
	for _, p := range params {
		for isin := range strings.SplitSeq(p, ",") {
			if isin = strings.TrimSpace(isin); isin != "" {
				isins = append(isins, isin)
			}
		}
	}
	return isins
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

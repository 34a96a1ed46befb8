// Package gleif resolves LEIs to legal entity details using the GLEIF API.
package gleif

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bunburya/eu-finreg-data/internal/model"
	"github.com/bunburya/eu-finreg-data/internal/version"
)

// DefaultBaseURL is the public GLEIF API.
const DefaultBaseURL = "https://api.gleif.org/api/v1"

// MaxBatch is the largest number of LEIs sent in one request.
const MaxBatch = 200

// Entity holds the details of one legal entity.
type Entity struct {
	LEI          string `json:"lei"`
	LegalName    string `json:"legal_name"`
	Jurisdiction string `json:"jurisdiction"`
}

// Client queries the lei-records endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	userAgent  string
}

// ClientOption configures the client.
type ClientOption func(*Client)

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		logger:     slog.Default(),
		userAgent:  version.UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit caps requests per second. Zero or less disables the limit.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// leiRecordsResponse is the subset of the JSON:API document we read.
type leiRecordsResponse struct {
	Data []struct {
		Attributes struct {
			LEI    string `json:"lei"`
			Entity struct {
				LegalName struct {
					Name string `json:"name"`
				} `json:"legalName"`
				Jurisdiction string `json:"jurisdiction"`
			} `json:"entity"`
		} `json:"attributes"`
	} `json:"data"`
}

// LookupEntities fetches details for leis. LEIs GLEIF does not know are
// absent from the result. Duplicates and empty strings are ignored.
func (c *Client) LookupEntities(ctx context.Context, leis []string) (map[string]Entity, error) {
	leis = normalize(leis)
	out := make(map[string]Entity, len(leis))

	for batch := range slices.Chunk(leis, MaxBatch) {
		if err := c.lookupBatch(ctx, batch, out); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("looked up entities", "requested", len(leis), "found", len(out))
	return out, nil
}

func (c *Client) lookupBatch(ctx context.Context, leis []string, out map[string]Entity) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := c.recordsURL(leis)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.api+json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &model.NetworkError{Op: "gleif", URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &model.NetworkError{
			Op:         "gleif",
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	var body leiRecordsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return &model.ParseError{Source: "gleif response", Err: err}
	}

	for _, rec := range body.Data {
		a := rec.Attributes
		if a.LEI == "" {
			continue
		}
		out[a.LEI] = Entity{
			LEI:          a.LEI,
			LegalName:    a.Entity.LegalName.Name,
			Jurisdiction: a.Entity.Jurisdiction,
		}
	}
	return nil
}

func (c *Client) recordsURL(leis []string) string {
	q := url.Values{}
	q.Set("page[size]", strconv.Itoa(len(leis)))
	q.Set("page[number]", "1")
	q.Set("filter[lei]", strings.Join(leis, ","))
	return c.baseURL + "/lei-records?" + q.Encode()
}

func normalize(leis []string) []string {
	seen := make(map[string]struct{}, len(leis))
	out := make([]string, 0, len(leis))
	for _, lei := range leis {
		lei = strings.TrimSpace(lei)
		if lei == "" {
			continue
		}
		if _, ok := seen[lei]; ok {
			continue
		}
		seen[lei] = struct{}{}
		out = append(out, lei)
	}
	return out
}

package api

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/bunburya/eu-finreg-data/internal/version"
)

// Client provides access to the FIRDS search endpoint and file downloads.
type Client struct {
	searchURL  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	userAgent  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new register client.
func NewClient(searchURL string, opts ...ClientOption) *Client {
	c := &Client{
		searchURL: searchURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter:   rate.NewLimiter(rate.Inf, 1),
		logger:    slog.Default(),
		userAgent: version.UserAgent(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout. Archive downloads share it, so it
// must cover the largest file.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit caps outbound requests. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if burst < 1 {
			burst = 1
		}
		limit := rate.Inf
		if rps > 0 {
			limit = rate.Limit(rps)
		}
		c.limiter = rate.NewLimiter(limit, burst)
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

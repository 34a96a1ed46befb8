package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/bunburya/eu-finreg-data/internal/model"
)

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://registers.example.com/select")

		if c.searchURL != "https://registers.example.com/select" {
			t.Errorf("searchURL = %q, want %q", c.searchURL, "https://registers.example.com/select")
		}
		if c.httpClient.Timeout != 60*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 60*time.Second)
		}
		if c.limiter.Limit() != rate.Inf {
			t.Errorf("Limit = %v, want Inf", c.limiter.Limit())
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
		if c.userAgent == "" {
			t.Error("userAgent should not be empty")
		}
	})

	t.Run("with timeout option", func(t *testing.T) {
		c := NewClient("https://registers.example.com", WithTimeout(5*time.Second))
		if c.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 5*time.Second)
		}
	})

	t.Run("with rate limit option", func(t *testing.T) {
		c := NewClient("https://registers.example.com", WithRateLimit(2, 0))
		if c.limiter.Limit() != rate.Limit(2) {
			t.Errorf("Limit = %v, want 2", c.limiter.Limit())
		}
		if c.limiter.Burst() != 1 {
			t.Errorf("Burst = %d, want 1", c.limiter.Burst())
		}
	})

	t.Run("non-positive rate disables limiting", func(t *testing.T) {
		c := NewClient("https://registers.example.com", WithRateLimit(0, 3))
		if c.limiter.Limit() != rate.Inf {
			t.Errorf("Limit = %v, want Inf", c.limiter.Limit())
		}
	})

	t.Run("with logger option", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := NewClient("https://registers.example.com", WithLogger(logger))
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
	})

	t.Run("with custom HTTP client", func(t *testing.T) {
		customClient := &http.Client{Timeout: 10 * time.Second}
		c := NewClient("https://registers.example.com", WithHTTPClient(customClient))
		if c.httpClient != customClient {
			t.Error("custom HTTP client not set")
		}
	})
}

// TestGet tests the HTTP request functionality.
func TestGet(t *testing.T) {
	t.Run("successful request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("User-Agent") == "" {
				t.Error("User-Agent header missing")
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`<response/>`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		body, err := c.get(context.Background(), "search", server.URL+"/select")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `<response/>` {
			t.Errorf("body = %q, want %q", string(body), `<response/>`)
		}
	})

	t.Run("status error is a NetworkError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.get(context.Background(), "search", server.URL)

		var netErr *model.NetworkError
		if !errors.As(err, &netErr) {
			t.Fatalf("expected *model.NetworkError, got %T: %v", err, err)
		}
		if netErr.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("StatusCode = %d, want %d", netErr.StatusCode, http.StatusServiceUnavailable)
		}
		if netErr.Op != "search" {
			t.Errorf("Op = %q, want search", netErr.Op)
		}
	})

	t.Run("transport error is a NetworkError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		c := NewClient(url)
		_, err := c.get(context.Background(), "search", url)

		var netErr *model.NetworkError
		if !errors.As(err, &netErr) {
			t.Fatalf("expected *model.NetworkError, got %T: %v", err, err)
		}
		if netErr.StatusCode != 0 {
			t.Errorf("StatusCode = %d, want 0", netErr.StatusCode)
		}
	})

	t.Run("no retry on failure", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL)
		if _, err := c.get(context.Background(), "search", server.URL); err == nil {
			t.Fatal("expected error")
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
		}))
		defer server.Close()

		c := NewClient(server.URL)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := c.get(ctx, "search", server.URL)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want context.DeadlineExceeded", err)
		}
	})
}

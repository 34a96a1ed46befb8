package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bunburya/eu-finreg-data/internal/model"
)

// open issues a rate-limited GET and returns the response for a 2xx status.
// The caller owns the body.
func (c *Client) open(ctx context.Context, op, rawURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &model.NetworkError{Op: op, URL: rawURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &model.NetworkError{
			Op:         op,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	return resp, nil
}

// get performs a GET and reads the whole body.
func (c *Client) get(ctx context.Context, op, rawURL string) ([]byte, error) {
	resp, err := c.open(ctx, op, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &model.NetworkError{Op: op, URL: rawURL, Err: fmt.Errorf("read response: %w", err)}
	}

	return body, nil
}

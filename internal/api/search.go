package api

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bunburya/eu-finreg-data/internal/model"
)

// SearchPage fetches and parses the page of results starting at offset start.
func (c *Client) SearchPage(ctx context.Context, window model.TimeWindow, start, rows int, filter model.TypeFilter) (*Manifest, error) {
	pageURL, err := c.searchPageURL(window, start, rows)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, "search", pageURL)
	if err != nil {
		return nil, err
	}

	m, err := ParseManifest(body, filter)
	if err != nil {
		return nil, &model.ParseError{Source: fmt.Sprintf("search page start=%d", start), Err: err}
	}

	c.logger.Debug("fetched search page",
		"window", window.String(),
		"start", start,
		"rows", rows,
		"total", m.Total,
		"kept", len(m.Entries),
	)

	return m, nil
}

// searchPageURL builds the Solr select URL for one page of the window.
func (c *Client) searchPageURL(window model.TimeWindow, start, rows int) (string, error) {
	u, err := url.Parse(c.searchURL)
	if err != nil {
		return "", fmt.Errorf("parse search url: %w", err)
	}

	from := window.From.UTC().Format(time.DateOnly) + "T00:00:00Z"
	to := window.To.UTC().Format(time.DateOnly) + "T23:59:59Z"

	query := u.Query()
	query.Set("q", "*")
	query.Set("fq", "publication_date:["+from+" TO "+to+"]")
	query.Set("wt", "xml")
	query.Set("indent", "true")
	query.Set("start", strconv.Itoa(start))
	query.Set("rows", strconv.Itoa(rows))
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// Entries returns a lazy sequence over every file in the window. Pages are
// requested one at a time as the sequence is consumed; ranging over it again
// restarts from the first page. The total reported by the first page decides
// how many pages are requested. The first error ends the sequence.
func (c *Client) Entries(ctx context.Context, q SearchQuery) iter.Seq2[model.ManifestEntry, error] {
	rows := q.PageSize
	if rows <= 0 {
		rows = DefaultPageSize
	}

	return func(yield func(model.ManifestEntry, error) bool) {
		seen := make(map[string]struct{})
		total := -1

		for start := 0; total < 0 || start < total; start += rows {
			page, err := c.SearchPage(ctx, q.Window, start, rows, q.Filter)
			if err != nil {
				yield(model.ManifestEntry{}, err)
				return
			}
			if total < 0 {
				total = page.Total
			}

			for _, e := range page.Entries {
				if _, dup := seen[e.FileName]; dup {
					continue
				}
				seen[e.FileName] = struct{}{}
				if !yield(e, nil) {
					return
				}
			}

			if start+rows >= total {
				return
			}
		}
	}
}

// ListFiles collects every file in the window. With Concurrency > 1 the first
// page is fetched alone to learn the total, then the remaining pages are
// fetched in parallel and merged in page order.
func (c *Client) ListFiles(ctx context.Context, q SearchQuery) ([]model.ManifestEntry, error) {
	if q.Concurrency <= 1 {
		var entries []model.ManifestEntry
		for e, err := range c.Entries(ctx, q) {
			if err != nil {
				return nil, fmt.Errorf("list files: %w", err)
			}
			entries = append(entries, e)
		}
		return entries, nil
	}

	rows := q.PageSize
	if rows <= 0 {
		rows = DefaultPageSize
	}

	first, err := c.SearchPage(ctx, q.Window, 0, rows, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	pageCount := 1
	if first.Total > rows {
		pageCount = (first.Total + rows - 1) / rows
	}

	pages := make([][]model.ManifestEntry, pageCount)
	pages[0] = first.Entries

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.Concurrency)
	for i := 1; i < pageCount; i++ {
		g.Go(func() error {
			page, err := c.SearchPage(gctx, q.Window, i*rows, rows, q.Filter)
			if err != nil {
				return err
			}
			pages[i] = page.Entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	seen := make(map[string]struct{}, len(first.Entries)*pageCount)
	var entries []model.ManifestEntry
	for _, page := range pages {
		for _, e := range page {
			if _, dup := seen[e.FileName]; dup {
				continue
			}
			seen[e.FileName] = struct{}{}
			entries = append(entries, e)
		}
	}

	c.logger.Info("listed files",
		"window", q.Window.String(),
		"filter", q.Filter.String(),
		"total", first.Total,
		"pages", pageCount,
		"kept", len(entries),
	)

	return entries, nil
}

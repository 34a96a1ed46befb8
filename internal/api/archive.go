package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bunburya/eu-finreg-data/internal/archive"
	"github.com/bunburya/eu-finreg-data/internal/model"
)

// FetchArchive downloads the zip archive at downloadURL, extracts it into
// destDir (created if absent) and returns the path of its first entry. A
// non-2xx status fails before anything is written. The spooled download is
// always removed; a partially extracted file is overwritten by the next fetch.
// A malformed archive is a *model.ParseError; local write failures are not.
func (c *Client) FetchArchive(ctx context.Context, downloadURL, destDir string) (string, error) {
	start := time.Now()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}

	resp, err := c.open(ctx, "download", downloadURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// Archives run to hundreds of megabytes, so spool to disk rather than memory.
	tmp, err := os.CreateTemp(destDir, ".download-*.zip")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &model.NetworkError{Op: "download", URL: downloadURL, Err: fmt.Errorf("read body: %w", err)}
	}

	path, err := archive.ExtractFile(ctx, tmp.Name(), destDir)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, archive.ErrInvalidArchive) {
			return "", &model.ParseError{Source: downloadURL, Err: err}
		}
		return "", fmt.Errorf("extract archive: %w", err)
	}

	c.logger.Debug("fetched archive",
		"url", downloadURL,
		"bytes", size,
		"path", path,
		"duration", time.Since(start),
	)

	return path, nil
}

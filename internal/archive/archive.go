// Package archive extracts downloaded zip archives.
//
// Reference files are published as zip archives holding exactly one XML
// document. That is assumed rather than checked: every entry is extracted,
// and the path of the first listed entry is returned.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidArchive marks failures caused by the archive's content, as
// opposed to local filesystem errors while writing it out.
var ErrInvalidArchive = errors.New("invalid archive")

// ErrEmptyArchive is returned for an archive without entries.
var ErrEmptyArchive = fmt.Errorf("%w: no entries", ErrInvalidArchive)

// isFormatErr reports whether err comes from decoding zip structures.
func isFormatErr(err error) bool {
	return errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) || errors.Is(err, zip.ErrChecksum)
}

// ExtractFile extracts the zip archive at path into dest.
func ExtractFile(ctx context.Context, path, dest string) (string, error) {
	// Insecure names are reported here but rejected per entry by Extract.
	zr, err := zip.OpenReader(path)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		if isFormatErr(err) {
			return "", fmt.Errorf("%w: %w", ErrInvalidArchive, err)
		}
		return "", fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	return Extract(ctx, &zr.Reader, dest)
}

// Extract writes every entry of zr below dest, creating dest if needed, and
// returns the path of the first listed entry. Entry names are kept verbatim;
// names that would resolve outside dest are rejected.
func Extract(ctx context.Context, zr *zip.Reader, dest string) (string, error) {
	if len(zr.File) == 0 {
		return "", ErrEmptyArchive
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}

	var first string
	for i, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		target, err := entryPath(dest, f.Name)
		if err != nil {
			return "", err
		}
		if i == 0 {
			first = target
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return "", fmt.Errorf("create directory %s: %w", f.Name, err)
			}
			continue
		}
		if err := extractEntry(ctx, f, target); err != nil {
			return "", err
		}
	}

	return first, nil
}

// entryPath resolves name below dest.
func entryPath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: entry %q escapes destination", ErrInvalidArchive, name)
	}
	return target, nil
}

func extractEntry(ctx context.Context, f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open entry %s: %w", ErrInvalidArchive, f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}

	if _, err := io.Copy(out, &ctxReader{ctx: ctx, r: rc}); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}
	return nil
}

// ctxReader stops a copy once ctx is done. Errors decoding the entry are
// marked with ErrInvalidArchive so they can be told apart from write errors.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.r.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}
	return n, err
}

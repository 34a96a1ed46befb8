package api

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bunburya/eu-finreg-data/internal/model"
)

// ParseManifest turns one raw search-result page into manifest entries,
// keeping only files matched by filter. Entries dropped by the filter are not
// an error; a page without a readable total or with incomplete documents is.
func ParseManifest(page []byte, filter model.TypeFilter) (*Manifest, error) {
	var resp solrResponse
	if err := xml.NewDecoder(bytes.NewReader(page)).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	if len(resp.Children) < 2 {
		return nil, fmt.Errorf("search response has %d top-level children, want at least 2", len(resp.Children))
	}
	result := &resp.Children[1]

	raw, ok := result.attr("numFound")
	if !ok {
		return nil, errors.New("search response has no numFound attribute")
	}
	total, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || total < 0 {
		return nil, fmt.Errorf("invalid numFound %q", raw)
	}

	m := &Manifest{Total: total, Entries: make([]model.ManifestEntry, 0, len(result.Docs))}
	for i := range result.Docs {
		doc := &result.Docs[i]

		name, ok := doc.field(fieldFileName)
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("document %d has no %s", i, fieldFileName)
		}
		name = strings.TrimSpace(name)
		if !filter.Matches(name) {
			continue
		}

		link, ok := doc.field(fieldDownloadLink)
		if !ok || strings.TrimSpace(link) == "" {
			return nil, fmt.Errorf("document %d (%s) has no %s", i, name, fieldDownloadLink)
		}

		m.Entries = append(m.Entries, model.ManifestEntry{
			FileName:    name,
			DownloadURL: strings.TrimSpace(link),
		})
	}

	return m, nil
}

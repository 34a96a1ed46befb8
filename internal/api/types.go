package api

import (
	"encoding/xml"

	"github.com/bunburya/eu-finreg-data/internal/model"
)

// Manifest is one parsed search-result page.
type Manifest struct {
	Total   int                   // numFound reported by the endpoint
	Entries []model.ManifestEntry // Entries kept by the type filter
}

// SearchQuery configures a paginated file listing.
type SearchQuery struct {
	Window      model.TimeWindow
	Filter      model.TypeFilter
	PageSize    int // rows per request (default 100)
	Concurrency int // pages fetched in parallel after the first (default 1)
}

// DefaultPageSize is used when SearchQuery.PageSize is unset.
const DefaultPageSize = 100

// Solr field names in each result document.
const (
	fieldFileName     = "file_name"
	fieldDownloadLink = "download_link"
)

// solrResponse mirrors <response><lst name="responseHeader"/><result numFound="N">...</result></response>.
// Children are positional; the result list is the second one.
type solrResponse struct {
	XMLName  xml.Name
	Children []solrElement `xml:",any"`
}

type solrElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Docs    []solrDoc  `xml:"doc"`
}

type solrDoc struct {
	Fields []solrField `xml:",any"`
}

type solrField struct {
	XMLName xml.Name
	Name    string `xml:"name,attr"`
	Value   string `xml:",chardata"`
}

func (e *solrElement) attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (d *solrDoc) field(name string) (string, bool) {
	for _, f := range d.Fields {
		if f.XMLName.Local == "str" && f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

package refdata

import (
	"bufio"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bunburya/eu-finreg-data/internal/model"
)

// Namespaces of the three document layers.
const (
	NSBizData  = "urn:iso:std:iso:20022:tech:xsd:head.003.001.01"
	NSAppHdr   = "urn:iso:std:iso:20022:tech:xsd:head.001.001.01"
	NSDocument = "urn:iso:std:iso:20022:tech:xsd:auth.017.001.02"
)

// Policy decides what happens to a record missing its ISIN or LEI.
type Policy int

const (
	// PolicyStrict fails the whole document on the first incomplete record.
	PolicyStrict Policy = iota
	// PolicySkipIncomplete drops incomplete records and counts them.
	PolicySkipIncomplete
)

// ParsePolicy maps the config values "fail" and "skip" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "fail":
		return PolicyStrict, nil
	case "skip":
		return PolicySkipIncomplete, nil
	}
	return PolicyStrict, fmt.Errorf("unknown incomplete record policy %q", s)
}

func (p Policy) String() string {
	if p == PolicySkipIncomplete {
		return "skip"
	}
	return "fail"
}

// Result holds the records of one document.
type Result struct {
	Records []model.ReferenceRecord
	Skipped int // incomplete records dropped under PolicySkipIncomplete
}

// refData is one RefData element; only the fields we need are decoded.
type refData struct {
	GnlAttrbts *struct {
		ID *string `xml:"urn:iso:std:iso:20022:tech:xsd:auth.017.001.02 Id"`
	} `xml:"urn:iso:std:iso:20022:tech:xsd:auth.017.001.02 FinInstrmGnlAttrbts"`
	Issr *string `xml:"urn:iso:std:iso:20022:tech:xsd:auth.017.001.02 Issr"`
}

func (rd *refData) record() (model.ReferenceRecord, error) {
	if rd.GnlAttrbts == nil || rd.GnlAttrbts.ID == nil || strings.TrimSpace(*rd.GnlAttrbts.ID) == "" {
		return model.ReferenceRecord{}, errors.New("missing FinInstrmGnlAttrbts/Id")
	}
	isin := strings.TrimSpace(*rd.GnlAttrbts.ID)
	if rd.Issr == nil || strings.TrimSpace(*rd.Issr) == "" {
		return model.ReferenceRecord{}, fmt.Errorf("instrument %s: missing Issr", isin)
	}
	return model.ReferenceRecord{ISIN: isin, LEI: strings.TrimSpace(*rd.Issr)}, nil
}

// Parse reads one reference document. It has no side effects beyond reading r.
func Parse(ctx context.Context, r io.Reader, policy Policy) (*Result, error) {
	res, err := parse(ctx, r, policy)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &model.ParseError{Source: "reference document", Err: err}
	}
	return res, nil
}

// ParseFile reads the reference document at path.
func ParseFile(ctx context.Context, path string, policy Policy) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference file: %w", err)
	}
	defer f.Close()

	res, err := parse(ctx, bufio.NewReaderSize(f, 1<<20), policy)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &model.ParseError{Source: path, Err: err}
	}
	return res, nil
}

func parse(ctx context.Context, r io.Reader, policy Policy) (*Result, error) {
	dec := xml.NewDecoder(r)
	res := &Result{}
	rootSeen := false
	index := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		if !rootSeen {
			if se.Name.Space != NSBizData || se.Name.Local != "BizData" {
				return nil, fmt.Errorf("root element is {%s}%s, want {%s}BizData", se.Name.Space, se.Name.Local, NSBizData)
			}
			rootSeen = true
			continue
		}

		if se.Name.Space != NSDocument || se.Name.Local != "RefData" {
			continue
		}

		// Cancellation is checked once per thousand records.
		if index%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		var rd refData
		if err := dec.DecodeElement(&rd, &se); err != nil {
			return nil, fmt.Errorf("record %d: %w", index, err)
		}

		rec, err := rd.record()
		if err != nil {
			if policy == PolicyStrict {
				return nil, fmt.Errorf("record %d: %w", index, err)
			}
			res.Skipped++
		} else {
			res.Records = append(res.Records, rec)
		}
		index++
	}

	if !rootSeen {
		return nil, errors.New("document is empty")
	}
	return res, nil
}

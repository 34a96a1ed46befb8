package model

import (
	"fmt"
)

// NetworkError is a transport or HTTP status failure talking to a remote
// service. It is never retried automatically.
type NetworkError struct {
	Op         string // e.g. "search", "download", "gleif"
	URL        string
	StatusCode int // 0 for transport failures
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: http status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError means a page, archive or document was structurally invalid. It
// is fatal to the unit being parsed.
type ParseError struct {
	Source string // page offset, archive URL or file path
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError is a persistence failure. It aborts the enclosing batch.
type StorageError struct {
	Table string
	Op    string // "ensure", "append", "lookup"
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s table %q: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

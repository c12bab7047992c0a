package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the documents were readable but did not list the city.
	ErrNotFound = errors.New("city not found")

	// ErrSourcesUnavailable means no region page could be fetched at all.
	ErrSourcesUnavailable = errors.New("all region sources unavailable")
)

// ParseError reports a document that could not be parsed as HTML.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse region document: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

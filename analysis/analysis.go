package analysis

import (
	"context"
	"errors"
)

// ErrNotFound is returned by an Analyzer when the document at the requested
// URL could not be found or accessed by the provider.
var ErrNotFound = errors.New("analysis: document not found or not accessible")

// Analyzer submits a document URL to a document analysis provider and waits
// for the analysis to complete.
type Analyzer interface {
	AnalyzeDocument(ctx context.Context, url string) (Result, error)
}

type Result struct {
	// Content of the whole document. Line spans index into it.
	Content string
	Pages   []Page
}

type Page struct {
	PageNumber int
	Width      float64
	Height     float64
	// Unit of Width and Height, e.g. "inch" or "pixel".
	Unit  string
	Lines []Line
}

type Line struct {
	Content string
	Spans   []Span
}

type Span struct {
	Offset int
	Length int
}

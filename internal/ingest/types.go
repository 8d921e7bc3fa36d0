package ingest

import (
	"context"
	"io"
	"time"
)

// MaxJDChars caps the stored JD text.
const MaxJDChars = 20000

const (
	FormatHTML = "html"
	FormatPDF  = "pdf"
	FormatText = "text"
)

// FetchedDocument is a raw response body plus the metadata the importer
// needs to pick a text extractor.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     map[string][]string
}

// Fetcher retrieves a single URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}

// ImportedJD is the plain-text job description extracted from a JD link.
type ImportedJD struct {
	URL          string    `json:"url"`
	CanonicalURL string    `json:"canonical_url"`
	Title        string    `json:"title,omitempty"`
	Format       string    `json:"format"`
	Text         string    `json:"text"`
	Truncated    bool      `json:"truncated"`
	FetchedAt    time.Time `json:"fetched_at"`
}

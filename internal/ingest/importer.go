package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrInvalidLink   = errors.New("jd link must be an absolute http(s) URL")
	ErrEmptyDocument = errors.New("no job description text found at link")
)

const defaultMaxBytes = 10 * 1024 * 1024

var trackingParams = []string{
	"fbclid", "gclid", "mc_cid", "mc_eid", "mkt_tok", "ref", "session", "s_cid",
	"trk", "trackingid", "refid", "gh_src", "lever-source",
}

// Importer turns a JD link into plain text ready for analysis.
type Importer struct {
	Fetcher  Fetcher
	MaxChars int
	MaxBytes int64
}

// NewImporter returns an importer backed by fetcher, or by a CollyFetcher
// when fetcher is nil.
func NewImporter(fetcher Fetcher) *Importer {
	if fetcher == nil {
		fetcher = NewCollyFetcher()
	}
	return &Importer{Fetcher: fetcher, MaxChars: MaxJDChars, MaxBytes: defaultMaxBytes}
}

// Import fetches rawURL and extracts its job description text. HTML pages
// and PDFs are recognized by content type or by sniffing the body.
func (i *Importer) Import(ctx context.Context, rawURL string) (*ImportedJD, error) {
	target, err := ValidateJDLink(rawURL)
	if err != nil {
		return nil, err
	}

	doc, err := i.Fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer doc.Body.Close()

	maxBytes := i.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(doc.Body, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}

	finalURL := doc.URL
	if finalURL == "" {
		finalURL = target
	}
	imported := &ImportedJD{
		URL:          target,
		CanonicalURL: CanonicalizeURL(finalURL),
		FetchedAt:    doc.FetchedAt,
	}
	if imported.FetchedAt.IsZero() {
		imported.FetchedAt = time.Now().UTC()
	}

	var text string
	switch {
	case isPDF(doc.ContentType, body):
		imported.Format = FormatPDF
		raw, err := extractPDFText(body)
		if err != nil {
			return nil, fmt.Errorf("pdf text extraction failed: %w", err)
		}
		text = normalizeLines(sanitizeUTF8(raw))
	case isHTML(doc.ContentType, body):
		imported.Format = FormatHTML
		var title string
		title, text = parseHTMLDocument(sanitizeUTF8(string(body)))
		imported.Title = title
		text = normalizeLines(text)
	default:
		imported.Format = FormatText
		text = normalizeLines(sanitizeUTF8(string(body)))
	}

	if text == "" {
		return nil, ErrEmptyDocument
	}

	maxChars := i.MaxChars
	if maxChars <= 0 {
		maxChars = MaxJDChars
	}
	imported.Text, imported.Truncated = TruncateText(text, maxChars)

	log.Printf("[jd-import] %s: format=%s chars=%d truncated=%v", imported.CanonicalURL, imported.Format, len([]rune(imported.Text)), imported.Truncated)
	return imported, nil
}

func isHTML(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "html") {
		return true
	}
	if ct != "" && !strings.HasPrefix(ct, "application/octet-stream") {
		return false
	}
	return strings.HasPrefix(http.DetectContentType(body), "text/html")
}

// ValidateJDLink trims rawURL and requires an absolute http(s) URL with a host.
func ValidateJDLink(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", ErrInvalidLink
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidLink
	}
	return trimmed, nil
}

// CanonicalizeURL lowercases the host, drops the fragment and strips
// tracking parameters so the same posting stores one jd_link.
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(rawURL)
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lower := strings.ToLower(k)
		if strings.HasPrefix(lower, "utm_") {
			q.Del(k)
			continue
		}
		for _, p := range trackingParams {
			if lower == p {
				q.Del(k)
				break
			}
		}
	}

	u.RawQuery = q.Encode()
	return u.String()
}

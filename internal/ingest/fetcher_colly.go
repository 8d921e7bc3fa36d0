package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyFetcher implements Fetcher with a single-page Colly collector.
// Requests go through the private network guard unless AllowPrivateNetworks
// is set.
type CollyFetcher struct {
	UserAgent            string
	MaxRetries           int
	RetryDelay           time.Duration
	RequestTimeout       time.Duration
	MaxBodySize          int // bytes, 0 = unlimited
	DetectCharset        bool
	AllowPrivateNetworks bool
}

// NewCollyFetcher creates a CollyFetcher with sensible defaults.
func NewCollyFetcher() *CollyFetcher {
	return &CollyFetcher{
		UserAgent:      defaultUserAgent,
		MaxRetries:     2,
		RetryDelay:     time.Second,
		RequestTimeout: 30 * time.Second,
		MaxBodySize:    10 * 1024 * 1024,
	}
}

func (f *CollyFetcher) buildCollector(ctx context.Context) *colly.Collector {
	opts := []colly.CollectorOption{
		colly.UserAgent(f.UserAgent),
		colly.MaxBodySize(f.MaxBodySize),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	}
	if f.DetectCharset {
		opts = append(opts, colly.DetectCharset())
	}

	c := colly.NewCollector(opts...)
	c.WithTransport(newTransport(f.AllowPrivateNetworks))
	if !f.AllowPrivateNetworks {
		c.SetRedirectHandler(safeCheckRedirect)
	}
	if f.RequestTimeout > 0 {
		c.SetRequestTimeout(f.RequestTimeout)
	}
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
	})
	return c
}

// Fetch implements the Fetcher interface, returning a FetchedDocument.
func (f *CollyFetcher) Fetch(ctx context.Context, targetURL string) (*FetchedDocument, error) {
	if _, err := url.Parse(targetURL); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	c := f.buildCollector(ctx)

	var result *FetchedDocument
	var fetchErr error
	attempts := 0

	c.OnResponse(func(r *colly.Response) {
		result = &FetchedDocument{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        io.NopCloser(bytes.NewReader(r.Body)),
			FetchedAt:   time.Now(),
			Headers:     map[string][]string(r.Headers.Clone()),
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		status := r.StatusCode
		if attempts < f.MaxRetries && shouldRetry(err, status) && ctx.Err() == nil {
			attempts++
			log.Printf("[jd-import] retry %d/%d for %s: %v", attempts, f.MaxRetries, r.Request.URL, err)
			select {
			case <-ctx.Done():
				fetchErr = ctx.Err()
				return
			case <-time.After(time.Duration(attempts) * f.RetryDelay):
			}
			if rerr := r.Request.Retry(); rerr != nil && fetchErr == nil && result == nil {
				fetchErr = rerr
			}
			return
		}
		if status != 0 {
			fetchErr = fmt.Errorf("unexpected status code: %d", status)
			return
		}
		fetchErr = err
	})

	visitErr := c.Visit(targetURL)

	if result != nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if visitErr != nil {
		return nil, fmt.Errorf("visit failed: %w", visitErr)
	}
	return nil, fmt.Errorf("no response received for %s", targetURL)
}

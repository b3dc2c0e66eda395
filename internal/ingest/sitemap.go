package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lecternhq/lectern/internal/extract"
)

// maxPageBytes caps how much of a fetched page is read.
const maxPageBytes = 10 << 20 // 10 MiB

// SitemapSource ingests web pages enumerated by a sitemap.
type SitemapSource struct {
	sitemapURL string
	client     *http.Client
}

// NewSitemapSource creates a source over the given sitemap URL.
// A nil client gets a default with a 30-second timeout.
func NewSitemapSource(sitemapURL string, client *http.Client) *SitemapSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SitemapSource{sitemapURL: sitemapURL, client: client}
}

// Name identifies the source in logs and reports.
func (s *SitemapSource) Name() string {
	return "sitemap " + s.sitemapURL
}

// List fetches and parses the sitemap, returning the page URLs.
func (s *SitemapSource) List(ctx context.Context) ([]string, error) {
	body, err := s.get(ctx, s.sitemapURL)
	if err != nil {
		return nil, err
	}
	return extract.ParseSitemap(body)
}

// Fetch retrieves one page and extracts its readable text.
func (s *SitemapSource) Fetch(ctx context.Context, ref string) (Document, error) {
	body, err := s.get(ctx, ref)
	if err != nil {
		return Document{}, err
	}

	page, err := extract.FromHTML(body, ref)
	if err != nil {
		return Document{}, fmt.Errorf("extracting %s: %w", ref, err)
	}

	return Document{
		ID:    ref,
		Title: page.Title,
		Text:  page.Text,
	}, nil
}

func (s *SitemapSource) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, nil
}

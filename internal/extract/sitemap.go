// Package extract converts source formats (sitemap XML, HTML pages,
// markdown files) into plain text ready for chunking.
package extract

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptySitemap indicates the sitemap contained no page URLs.
var ErrEmptySitemap = errors.New("sitemap contains no URLs")

// sitemapIndex matches the <urlset> root of a standard sitemap,
// https://www.sitemaps.org/protocol.html.
type sitemapIndex struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

// ParseSitemap parses sitemap XML and returns the page URLs in document
// order. Entries with an empty <loc> are dropped.
func ParseSitemap(data []byte) ([]string, error) {
	var index sitemapIndex
	if err := xml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parsing sitemap XML: %w", err)
	}

	urls := make([]string, 0, len(index.URLs))
	for _, u := range index.URLs {
		loc := strings.TrimSpace(u.Loc)
		if loc == "" {
			continue
		}
		urls = append(urls, loc)
	}

	if len(urls) == 0 {
		return nil, ErrEmptySitemap
	}
	return urls, nil
}

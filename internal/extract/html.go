package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

var multiWhitespace = regexp.MustCompile(`[ \t]{2,}`)
var multiNewlines = regexp.MustCompile(`\n{3,}`)

// Page is the visible text extracted from an HTML document.
type Page struct {
	Title string
	Text  string
}

// FromHTML extracts the readable text of an HTML page.
// It first runs readability extraction to isolate the main article
// content; if that yields nothing usable (no article structure, bare
// fragments) it falls back to stripping the full document body.
func FromHTML(html []byte, pageURL string) (Page, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("parsing page URL %q: %w", pageURL, err)
	}

	article, err := readability.FromReader(bytes.NewReader(html), parsedURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return Page{
			Title: strings.TrimSpace(article.Title),
			Text:  normalizeWhitespace(article.TextContent),
		}, nil
	}

	return fromHTMLBody(html)
}

// fromHTMLBody strips markup from the whole document body.
// Script, style and nav elements are removed before text extraction.
func fromHTMLBody(html []byte) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Page{}, fmt.Errorf("parsing HTML: %w", err)
	}

	doc.Find("script, style, noscript, nav, header, footer").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	body := doc.Find("body")
	text := body.Text()
	if strings.TrimSpace(text) == "" {
		// Fragment without a body element
		text = doc.Text()
	}

	return Page{
		Title: title,
		Text:  normalizeWhitespace(text),
	}, nil
}

// normalizeWhitespace collapses runs of spaces and blank lines left
// behind by markup removal.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(multiWhitespace.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = multiNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

package extract

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	codeBlocks   = regexp.MustCompile("(?s)```[^`]*```")
	inlineCode   = regexp.MustCompile("`[^`]+`")
	images       = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	links        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	blockquotes  = regexp.MustCompile(`(?m)^>\s*`)
	rules        = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	listMarkers  = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedList = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
)

// FromMarkdown converts a markdown document to plain text.
// The title comes from the first H1 heading, falling back to the
// filename with separators replaced by spaces.
func FromMarkdown(content, path string) Page {
	return Page{
		Title: markdownTitle(content, path),
		Text:  stripMarkdown(content),
	}
}

// markdownTitle extracts a title from the content or falls back to the filename.
func markdownTitle(content, path string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}

	filename := filepath.Base(path)
	if ext := filepath.Ext(filename); ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

// stripMarkdown removes common markdown formatting for plain text content.
// This is a simplified implementation that handles common cases.
func stripMarkdown(content string) string {
	content = codeBlocks.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "")
	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")

	content = strings.ReplaceAll(content, "**", "")
	content = strings.ReplaceAll(content, "__", "")
	content = strings.ReplaceAll(content, "*", "")
	content = strings.ReplaceAll(content, "_", " ")

	content = blockquotes.ReplaceAllString(content, "")
	content = rules.ReplaceAllString(content, "")
	content = listMarkers.ReplaceAllString(content, "")
	content = numberedList.ReplaceAllString(content, "")

	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

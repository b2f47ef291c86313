// Package parser converts HTML email bodies to plain text.
package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLParser strips markup from HTML emails, leaving readable text
type HTMLParser struct {
	spaceRegex   *regexp.Regexp
	newlineRegex *regexp.Regexp
}

// NewHTMLParser creates a new HTML parser
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{
		spaceRegex:   regexp.MustCompile(`[^\S\n]+`),
		newlineRegex: regexp.MustCompile(`\n{3,}`),
	}
}

// Parse converts HTML to plain text
func (p *HTMLParser) Parse(html string) (string, error) {
	if html == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	// Drop non-content elements
	doc.Find("script, style, head, meta, link, title").Remove()

	// Keep block boundaries visible as line breaks
	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, li, tr").Each(func(i int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})

	text := doc.Text()

	// Collapse runs of spaces and tabs, keep newlines
	text = p.spaceRegex.ReplaceAllString(text, " ")

	// Drop blank lines and surrounding whitespace per line
	lines := strings.Split(text, "\n")
	cleaned := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	text = strings.Join(cleaned, "\n")

	text = p.newlineRegex.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text), nil
}

package ingest

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

// cleanText collapses runs of whitespace and trims the string.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// htmlToText converts an HTML fragment to plain text, collapsing
// whitespace.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return cleanText(html)
	}
	return cleanText(doc.Text())
}

// sanitizeDescription strips markup from free-text item descriptions
// before they are stored or served. Matching runs on the raw text, so
// this only affects presentation.
func sanitizeDescription(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return cleanText(s)
	}
	return htmlToText(stripPolicy.Sanitize(s))
}

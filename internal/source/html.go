package source

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultSelector picks the elements people paste number lists into.
const DefaultSelector = "pre, textarea"

// ExtractText returns the text of every element matching selector, in
// document order, one match per block separated by "\n". A page without
// matches yields "".
func ExtractText(html, selector string) (string, error) {
	if strings.TrimSpace(selector) == "" {
		selector = DefaultSelector
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var blocks []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		blocks = append(blocks, s.Text())
	})
	return strings.Join(blocks, "\n"), nil
}

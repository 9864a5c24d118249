package cleaner

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// defaultStripSelectors are removed from every detail page before conversion.
var defaultStripSelectors = []string{
	"script", "style", "noscript", "iframe", "form", "button", "input", "select", "img",
}

// StripCleaner removes non-content elements and, optionally, narrows the
// document to a single root element.
type StripCleaner struct {
	root      string
	selectors []string
}

// StripOption configures a StripCleaner.
type StripOption func(*StripCleaner)

// WithRoot keeps only the first element matching selector. When nothing
// matches, the whole document is kept.
func WithRoot(selector string) StripOption {
	return func(c *StripCleaner) {
		c.root = selector
	}
}

// WithSelectors replaces the default list of removed selectors.
func WithSelectors(selectors ...string) StripOption {
	return func(c *StripCleaner) {
		c.selectors = selectors
	}
}

// NewStrip creates a strip cleaner.
func NewStrip(opts ...StripOption) *StripCleaner {
	c := &StripCleaner{selectors: defaultStripSelectors}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clean returns the stripped HTML.
func (c *StripCleaner) Clean(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	sel := doc.Selection
	if c.root != "" {
		if root := doc.Find(c.root).First(); root.Length() > 0 {
			sel = root
		}
	}
	for _, s := range c.selectors {
		sel.Find(s).Remove()
	}

	if sel == doc.Selection {
		body := doc.Find("body")
		if body.Length() == 0 {
			return "", nil
		}
		return body.Html()
	}
	return goquery.OuterHtml(sel)
}

// Name returns the cleaner type.
func (c *StripCleaner) Name() string {
	return "strip"
}

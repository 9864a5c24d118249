// Package listing extracts property identifiers from a scraped listing page.
package listing

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Label marks the text node carrying a property number on the listing page,
// e.g. "Número do imóvel: 144440974810-5".
const Label = "Número do imóvel"

// ExtractIDs returns the distinct property ids found in listing markup, in
// first-occurrence order. The dash separator of the site's id format is
// removed. A listing without any labelled id yields an empty slice.
func ExtractIDs(markup string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	ids := []string{}
	seen := make(map[string]struct{})

	for _, n := range doc.Nodes {
		walkText(n, func(text string) {
			id, ok := parseID(text)
			if !ok {
				return
			}
			if _, dup := seen[id]; dup {
				return
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		})
	}
	return ids, nil
}

// walkText calls fn for every text node under n in document order.
func walkText(n *html.Node, fn func(string)) {
	if n.Type == html.TextNode {
		fn(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, fn)
	}
}

// parseID pulls the id out of a labelled text node. The value is the first
// whitespace-delimited token after the first ':'.
func parseID(text string) (string, bool) {
	if !strings.Contains(text, Label) {
		return "", false
	}
	parts := strings.Split(strings.TrimSpace(text), ":")
	if len(parts) < 2 {
		return "", false
	}
	fields := strings.Fields(parts[1])
	if len(fields) == 0 {
		return "", false
	}
	id := strings.ReplaceAll(fields[0], "-", "")
	if id == "" {
		return "", false
	}
	return id, true
}

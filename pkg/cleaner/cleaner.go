// Package cleaner turns scraped property markup into compact text for the
// scorer prompt.
package cleaner

import (
	"fmt"
	"strings"
)

// Cleaner transforms HTML content into a cleaner format for the scorer.
type Cleaner interface {
	// Clean transforms the input HTML into a cleaned format.
	Clean(html string) (string, error)

	// Name returns the cleaner type for logging.
	Name() string
}

// Default returns the cleaner used for property detail pages: boilerplate is
// stripped and the rest converted to Markdown.
func Default() Cleaner {
	return NewChain(NewStrip(), NewMarkdown())
}

// ByName returns a configured cleaner: "markdown" (or empty) for Default,
// "strip" for boilerplate removal only and "none" to pass raw markup.
func ByName(name string) (Cleaner, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "markdown":
		return Default(), nil
	case "strip":
		return NewStrip(), nil
	case "none", "noop":
		return NewNoop(), nil
	default:
		return nil, fmt.Errorf("unknown cleaner %q (want markdown, strip or none)", name)
	}
}

package cleaner

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// MarkdownCleaner converts HTML to Markdown using html-to-markdown. Detail
// pages are mostly label/value spans, which survive conversion as plain lines.
type MarkdownCleaner struct {
	maxChars int
}

// MarkdownOption configures the markdown cleaner.
type MarkdownOption func(*MarkdownCleaner)

// WithMaxChars truncates the converted text to n runes. Zero disables it.
func WithMaxChars(n int) MarkdownOption {
	return func(c *MarkdownCleaner) {
		c.maxChars = n
	}
}

// NewMarkdown creates a new Markdown cleaner.
func NewMarkdown(opts ...MarkdownOption) *MarkdownCleaner {
	c := &MarkdownCleaner{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clean converts HTML to Markdown.
func (c *MarkdownCleaner) Clean(html string) (string, error) {
	markdown, err := md.ConvertString(html)
	if err != nil {
		return "", err
	}

	markdown = cleanWhitespace(markdown)
	if c.maxChars > 0 {
		if r := []rune(markdown); len(r) > c.maxChars {
			markdown = string(r[:c.maxChars])
		}
	}
	return markdown, nil
}

// Name returns the cleaner type.
func (c *MarkdownCleaner) Name() string {
	return "markdown"
}

// cleanWhitespace normalizes whitespace in the output.
func cleanWhitespace(s string) string {
	// Replace multiple blank lines with a single blank line (max 2 consecutive newlines)
	lines := strings.Split(s, "\n")
	var result []string
	blankCount := 0

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			blankCount++
			// Allow only 1 blank line (2 consecutive newlines: content\n + blank\n)
			if blankCount <= 1 {
				result = append(result, "")
			}
		} else {
			blankCount = 0
			result = append(result, line)
		}
	}

	return strings.TrimSpace(strings.Join(result, "\n"))
}

package scorer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/leilao/internal/logger"
)

// ReferenceDocument is the auction notice every property is scored against.
type ReferenceDocument struct {
	Name string
	Text string
}

// Available reports whether the document carries any text. A nil document is
// unavailable.
func (d *ReferenceDocument) Available() bool {
	return d != nil && strings.TrimSpace(d.Text) != ""
}

// TextExtractor pulls text out of a PDF.
type TextExtractor interface {
	ExtractText(ctx context.Context, doc []byte) (string, error)
}

// LoadReference reads the notice at path. PDFs go through ext; any other file
// is read as text. The result is truncated to maxChars runes. An empty path
// yields a nil document.
func LoadReference(ctx context.Context, path string, ext TextExtractor, maxChars int) (*ReferenceDocument, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference document: %w", err)
	}

	text := string(data)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		if ext == nil {
			return nil, fmt.Errorf("reference document %s is a PDF but no text extractor is configured", path)
		}
		text, err = ext.ExtractText(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("extract reference document: %w", err)
		}
	}

	doc := &ReferenceDocument{
		Name: filepath.Base(path),
		Text: Truncate(strings.TrimSpace(text), maxChars),
	}
	logger.Info("reference document loaded", "name", doc.Name, "chars", len([]rune(doc.Text)))
	return doc, nil
}

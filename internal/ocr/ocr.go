// Package ocr extracts plain text from deed PDFs.
//
// Text-layer PDFs are read with pdftotext. Scanned deeds, which carry no text
// layer, are rasterized with pdftoppm and read page by page with tesseract.
// All three tools are external binaries (poppler-utils and tesseract-ocr).
package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/leilao/internal/domain"
	"github.com/jmylchreest/leilao/internal/logger"
)

// ErrToolNotFound is returned when a required binary is not on PATH.
var ErrToolNotFound = errors.New("ocr tool not found")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args. Stderr is folded into the error on failure.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //#nosec G204 -- fixed tool names, args built internally
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Config controls text extraction.
type Config struct {
	Language string        // tesseract language, e.g. "por"
	DPI      int           // rasterization resolution for OCR
	MaxPages int           // pages to OCR, 0 = all
	Timeout  time.Duration // upper bound for one document
}

// DefaultConfig returns settings suited to Brazilian registry documents.
func DefaultConfig() Config {
	return Config{
		Language: "por",
		DPI:      300,
		MaxPages: 10,
		Timeout:  3 * time.Minute,
	}
}

// Extractor turns PDF bytes into text.
type Extractor struct {
	cfg    Config
	runner CommandRunner
}

// New creates an extractor using the system binaries.
func New(cfg Config) *Extractor {
	return NewWithRunner(cfg, ExecRunner{})
}

// NewWithRunner creates an extractor with an injected command runner.
func NewWithRunner(cfg Config, runner CommandRunner) *Extractor {
	def := DefaultConfig()
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.DPI == 0 {
		cfg.DPI = def.DPI
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return &Extractor{cfg: cfg, runner: runner}
}

// CheckAvailable verifies that the external tools are installed.
func CheckAvailable() error {
	for _, tool := range []string{"pdftotext", "pdftoppm", "tesseract"} {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("%w: %s", ErrToolNotFound, tool)
		}
	}
	return nil
}

// ExtractText returns the text of a PDF document. Failures wrap domain.ErrExtraction.
func (e *Extractor) ExtractText(ctx context.Context, doc []byte) (string, error) {
	if len(doc) == 0 {
		return "", fmt.Errorf("%w: empty document", domain.ErrExtraction)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	dir, err := os.MkdirTemp("", "leilao-ocr-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	pdfPath := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(pdfPath, doc, 0o600); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	text, err := e.textLayer(ctx, pdfPath)
	if err != nil {
		logger.Debug("pdftotext failed, falling back to OCR", "error", err)
	}
	if strings.TrimSpace(text) != "" {
		return normalize(text), nil
	}

	text, err = e.ocr(ctx, dir, pdfPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no text recognized", domain.ErrExtraction)
	}
	return normalize(text), nil
}

func (e *Extractor) textLayer(ctx context.Context, pdfPath string) (string, error) {
	out, err := e.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", pdfPath, "-")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (e *Extractor) ocr(ctx context.Context, dir, pdfPath string) (string, error) {
	prefix := filepath.Join(dir, "page")
	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(e.cfg.MaxPages))
	}
	args = append(args, pdfPath, prefix)
	if _, err := e.runner.Run(ctx, "pdftoppm", args...); err != nil {
		return "", fmt.Errorf("rasterize: %w", err)
	}

	pages, err := filepath.Glob(prefix + "*.png")
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "", errors.New("rasterize produced no pages")
	}
	sort.Strings(pages)

	var sb strings.Builder
	for _, page := range pages {
		out, err := e.runner.Run(ctx, "tesseract", page, "stdout", "-l", e.cfg.Language)
		if err != nil {
			return "", fmt.Errorf("tesseract %s: %w", filepath.Base(page), err)
		}
		sb.Write(out)
		sb.WriteString("\n")
	}
	logger.Debug("deed OCR complete", "pages", len(pages), "chars", sb.Len())
	return sb.String(), nil
}

// normalize trims trailing spaces per line and collapses blank-line runs.
func normalize(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t\f")
		if l == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Package analyzer runs the per-property analysis: cache lookup, deed text
// extraction, scoring and persistence.
package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/leilao/internal/domain"
	"github.com/jmylchreest/leilao/internal/logger"
	"github.com/jmylchreest/leilao/internal/scorer"
	"github.com/jmylchreest/leilao/pkg/cleaner"
)

// DefaultDeedMaxChars bounds the deed text included in the scorer input.
const DefaultDeedMaxChars = 1500

// Store is the subset of the artifact store the analyzer needs.
type Store interface {
	HasAnalysis(id string) bool
	ReadAnalysis(id string) (*domain.Analysis, error)
	WriteAnalysis(id string, a *domain.Analysis) error
	HasDetail(key domain.ListingKey, id string) bool
	ReadDetail(key domain.ListingKey, id string) (domain.Detail, error)
}

// Scorer grades a property. It returns the model's raw text.
type Scorer interface {
	Score(ctx context.Context, input string, ref *scorer.ReferenceDocument) (string, error)
}

// DocumentTextExtractor pulls text out of a deed PDF.
type DocumentTextExtractor interface {
	ExtractText(ctx context.Context, doc []byte) (string, error)
}

// Config holds analyzer settings.
type Config struct {
	// DeedMaxChars truncates deed text; zero selects DefaultDeedMaxChars.
	DeedMaxChars int
	Reference    *scorer.ReferenceDocument
	// Cleaner converts detail markup to prompt text; nil selects cleaner.Default().
	Cleaner cleaner.Cleaner
}

// Analyzer produces and caches one Analysis per property.
type Analyzer struct {
	store     Store
	scorer    Scorer
	extractor DocumentTextExtractor
	cfg       Config
}

// New creates an analyzer.
func New(store Store, sc Scorer, ext DocumentTextExtractor, cfg Config) *Analyzer {
	if cfg.DeedMaxChars <= 0 {
		cfg.DeedMaxChars = DefaultDeedMaxChars
	}
	if cfg.Cleaner == nil {
		cfg.Cleaner = cleaner.Default()
	}
	return &Analyzer{store: store, scorer: sc, extractor: ext, cfg: cfg}
}

// Analyze returns the analysis for property id, scoring it only when no
// analysis has been stored yet. The detail must already be scraped.
func (a *Analyzer) Analyze(ctx context.Context, key domain.ListingKey, id string) (*domain.Analysis, error) {
	log := logger.With("imovel", id)

	if a.store.HasAnalysis(id) {
		cached, err := a.store.ReadAnalysis(id)
		if err == nil {
			log.Debug("analysis cache hit")
			return cached, nil
		}
		log.Warn("cached analysis unreadable, rescoring", "error", err)
	}

	if !a.store.HasDetail(key, id) {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingDetail, id)
	}
	detail, err := a.store.ReadDetail(key, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrMissingDetail, id)
		}
		return nil, fmt.Errorf("read detail: %w", err)
	}

	text, err := a.cfg.Cleaner.Clean(detail.HTML)
	if err != nil {
		log.Warn("detail cleaning failed, using raw markup", "cleaner", a.cfg.Cleaner.Name(), "error", err)
		text = detail.HTML
	}

	input := scorer.ComposeInput(text, a.deedText(ctx, detail))
	raw, err := a.scorer.Score(ctx, input, a.cfg.Reference)
	if err != nil {
		return nil, err
	}

	analysis, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}
	if err := a.store.WriteAnalysis(id, analysis); err != nil {
		return nil, fmt.Errorf("write analysis: %w", err)
	}

	log.Info("property analyzed", "nota", analysis.Score())
	return analysis, nil
}

// deedText returns the truncated deed text, or "" when the deed is absent or
// unreadable. Extraction failures never abort the analysis.
func (a *Analyzer) deedText(ctx context.Context, d domain.Detail) string {
	if !d.HasDeed() {
		logger.Debug("no deed for property", "imovel", d.ID)
		return ""
	}
	if a.extractor == nil {
		return ""
	}
	text, err := a.extractor.ExtractText(ctx, d.Deed)
	if err != nil {
		logger.Warn("deed extraction failed", "imovel", d.ID, "error", err)
		return ""
	}
	return scorer.Truncate(text, a.cfg.DeedMaxChars)
}

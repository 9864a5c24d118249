// Package pipeline runs one end-to-end auction analysis: listing scrape, id
// extraction, detail scrape, per-property analysis and report aggregation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jmylchreest/leilao/internal/domain"
	"github.com/jmylchreest/leilao/internal/listing"
	"github.com/jmylchreest/leilao/internal/logger"
)

// State is a step of the run state machine.
type State string

const (
	StateCreated        State = "created"
	StateListingFetched State = "listing_fetched"
	StateIDsExtracted   State = "ids_extracted"
	StateDetailsFetched State = "details_fetched"
	StateAnalyzing      State = "analyzing"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// Scraper fetches raw markup from the auction site.
type Scraper interface {
	FetchListing(ctx context.Context, key domain.ListingKey) (domain.Listing, error)
	FetchDetail(ctx context.Context, key domain.ListingKey, id string) (domain.Detail, error)
}

// Store persists scraped artifacts.
type Store interface {
	WriteListing(key domain.ListingKey, html string) error
	WriteDetail(d domain.Detail) error
}

// Analyzer produces the analysis of one property.
type Analyzer interface {
	Analyze(ctx context.Context, key domain.ListingKey, id string) (*domain.Analysis, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config holds pipeline settings.
type Config struct {
	ListingTimeout time.Duration
	DetailsTimeout time.Duration
	AnalysisDelay  time.Duration
	// TopLog is the number of approved properties logged at the end of a run.
	TopLog int
}

// DefaultConfig returns the default pipeline settings.
func DefaultConfig() Config {
	return Config{
		ListingTimeout: 5 * time.Minute,
		DetailsTimeout: time.Hour,
		AnalysisDelay:  2 * time.Second,
		TopLog:         5,
	}
}

// Pipeline wires the collaborators of a run.
type Pipeline struct {
	scraper  Scraper
	store    Store
	analyzer Analyzer
	cfg      Config
	sleep    SleepFunc
	onState  func(State)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSleep replaces the delay function used between analyses.
func WithSleep(fn SleepFunc) Option {
	return func(p *Pipeline) {
		p.sleep = fn
	}
}

// WithStateHook registers fn to observe state transitions.
func WithStateHook(fn func(State)) Option {
	return func(p *Pipeline) {
		p.onState = fn
	}
}

// New creates a pipeline.
func New(scraper Scraper, store Store, analyzer Analyzer, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		scraper:  scraper,
		store:    store,
		analyzer: analyzer,
		cfg:      cfg,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one run for params. Listing failure, an empty listing and
// detail failure abort the run with a domain.StageError; a property whose
// analysis fails is recorded in the report and the run continues.
func (p *Pipeline) Run(ctx context.Context, params domain.RunParams) (*domain.Report, error) {
	params = params.Normalize()
	key := params.Key()
	log := logger.With("estado", key.State, "cidade", key.City)
	p.transition(StateCreated)

	log.Info("fetching listing")
	lst, err := p.fetchListing(ctx, key)
	if err != nil {
		return nil, p.fail(domain.StageListing, err)
	}
	p.transition(StateListingFetched)

	ids, err := listing.ExtractIDs(lst.HTML)
	if err != nil {
		return nil, p.fail(domain.StageIDs, err)
	}
	if len(ids) == 0 {
		return nil, p.fail(domain.StageIDs, domain.ErrNoProperties)
	}
	found := len(ids)
	if params.MaxProperties > 0 && len(ids) > params.MaxProperties {
		log.Info("limiting properties", "found", len(ids), "max", params.MaxProperties)
		ids = ids[:params.MaxProperties]
	}
	p.transition(StateIDsExtracted)
	log.Info("property ids extracted", "count", len(ids))

	if err := p.fetchDetails(ctx, key, ids); err != nil {
		return nil, p.fail(domain.StageDetails, err)
	}
	p.transition(StateDetailsFetched)

	p.transition(StateAnalyzing)
	report := &domain.Report{
		ListingKey: key,
		MinScore:   params.MinScore,
		Found:      found,
		Errors:     []domain.StageError{},
	}

	type scored struct {
		id       string
		analysis *domain.Analysis
	}
	var approved []scored
	for i, id := range ids {
		if i > 0 && p.cfg.AnalysisDelay > 0 {
			if err := p.sleep(ctx, p.cfg.AnalysisDelay); err != nil {
				return nil, p.fail(domain.StageAnalysis, err)
			}
		}

		log.Info("analyzing property", "imovel", id, "n", i+1, "of", len(ids))
		a, err := p.analyzer.Analyze(ctx, key, id)
		if err != nil {
			log.Warn("property analysis failed", "imovel", id, "error", err)
			report.Errors = append(report.Errors, domain.NewStageError(domain.StageAnalysis, id, err))
			continue
		}
		report.Analyzed++
		if a.Score() >= params.MinScore {
			approved = append(approved, scored{id: id, analysis: a})
		}
	}

	slices.SortStableFunc(approved, func(a, b scored) int {
		switch {
		case a.analysis.Score() > b.analysis.Score():
			return -1
		case a.analysis.Score() < b.analysis.Score():
			return 1
		}
		return 0
	})

	report.Approved = len(approved)
	report.TopProperties = make([]domain.PropertySummary, 0, len(approved))
	for _, s := range approved {
		report.TopProperties = append(report.TopProperties, domain.Summarize(s.id, s.analysis))
	}
	report.Summarize()
	report.Timestamp = time.Now()

	p.transition(StateDone)
	log.Info("run complete",
		"found", report.Found,
		"analyzed", report.Analyzed,
		"approved", report.Approved,
		"errors", len(report.Errors),
		"success", report.Summary.SuccessPct,
		"approval", report.Summary.ApprovalPct)
	p.logTop(report)
	return report, nil
}

func (p *Pipeline) fetchListing(ctx context.Context, key domain.ListingKey) (domain.Listing, error) {
	stageCtx, cancel := withTimeout(ctx, p.cfg.ListingTimeout)
	defer cancel()

	lst, err := p.scraper.FetchListing(stageCtx, key)
	if err != nil {
		return domain.Listing{}, stageFailure(stageCtx, domain.StageListing, p.cfg.ListingTimeout, err)
	}
	if err := p.store.WriteListing(key, lst.HTML); err != nil {
		return domain.Listing{}, fmt.Errorf("store listing: %w", err)
	}
	return lst, nil
}

// fetchDetails scrapes every detail under a single stage deadline.
func (p *Pipeline) fetchDetails(ctx context.Context, key domain.ListingKey, ids []string) error {
	stageCtx, cancel := withTimeout(ctx, p.cfg.DetailsTimeout)
	defer cancel()

	for i, id := range ids {
		logger.Debug("fetching detail", "imovel", id, "n", i+1, "of", len(ids))
		d, err := p.scraper.FetchDetail(stageCtx, key, id)
		if err != nil {
			return stageFailure(stageCtx, domain.StageDetails, p.cfg.DetailsTimeout, fmt.Errorf("detail %s: %w", id, err))
		}
		if !d.HasDeed() {
			logger.Warn("deed not available", "imovel", id)
		}
		if err := p.store.WriteDetail(d); err != nil {
			return fmt.Errorf("store detail %s: %w", id, err)
		}
	}
	return nil
}

func (p *Pipeline) fail(stage string, err error) error {
	p.transition(StateFailed)
	se := domain.NewStageError(stage, "", err)
	logger.Error("run failed", "etapa", stage, "timeout", se.Timeout, "error", err)
	return se
}

func (p *Pipeline) transition(s State) {
	logger.Debug("pipeline state", "state", s)
	if p.onState != nil {
		p.onState(s)
	}
}

func (p *Pipeline) logTop(r *domain.Report) {
	n := min(p.cfg.TopLog, len(r.TopProperties))
	for i, s := range r.TopProperties[:n] {
		logger.Info("top property",
			"rank", i+1,
			"imovel", s.ID,
			"nota", s.Score,
			"comarca", s.Comarca,
			"valor_minimo", s.MinimumBid)
	}
}

// stageFailure reports err as a stage timeout only when the stage deadline
// itself has expired. Deadlines internal to a collaborator, such as a single
// page load, keep their own error.
func stageFailure(stageCtx context.Context, stage string, limit time.Duration, err error) error {
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return domain.StageTimeout(stage, limit, stageCtx.Err())
	}
	return err
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

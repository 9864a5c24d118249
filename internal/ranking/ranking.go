// Package ranking answers ranking queries over every persisted analysis,
// independently of the run that produced them.
package ranking

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jmylchreest/leilao/internal/artifact"
	"github.com/jmylchreest/leilao/internal/domain"
	"github.com/jmylchreest/leilao/internal/logger"
)

const (
	DefaultMaxResults = 100
	MaxMaxResults     = 1000
)

// Source yields persisted analysis records.
type Source interface {
	Analyses() iter.Seq[artifact.Record]
}

// Query selects and bounds a ranking.
type Query struct {
	MinScore   float64 `json:"min_nota" validate:"gte=0,lte=10"`
	Comarca    string  `json:"comarca,omitempty"`
	MaxResults int     `json:"max_results" validate:"gte=1,lte=1000"`
}

// NewQuery returns a query with the default bounds.
func NewQuery() Query {
	return Query{MaxResults: DefaultMaxResults}
}

var validate = validator.New()

// Validate checks the query bounds.
func (q Query) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("invalid ranking query: %w", err)
	}
	return nil
}

// Result is a ranking page.
type Result struct {
	// Total counts the matches before truncation.
	Total      int                      `json:"total"`
	Returned   int                      `json:"filtrado"`
	Query      Query                    `json:"filtros"`
	Properties []domain.PropertySummary `json:"imoveis"`
}

// Service runs ranking queries.
type Service struct {
	source Source
}

// New creates a ranking service.
func New(source Source) *Service {
	return &Service{source: source}
}

// Query filters analyses by minimum score (inclusive) and comarca substring
// (case-insensitive), sorts by final score descending and truncates to
// q.MaxResults. Unreadable records are skipped.
func (s *Service) Query(q Query) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	comarca := strings.ToUpper(strings.TrimSpace(q.Comarca))

	matches := []domain.PropertySummary{}
	skipped := 0
	for rec := range s.source.Analyses() {
		if rec.Err != nil {
			if rec.ID == "" {
				return nil, fmt.Errorf("list analyses: %w", rec.Err)
			}
			logger.Warn("skipping unreadable analysis", "imovel", rec.ID, "error", rec.Err)
			skipped++
			continue
		}
		a := rec.Analysis
		if a.Score() < q.MinScore {
			continue
		}
		if comarca != "" && !strings.Contains(strings.ToUpper(a.Property.String("comarca")), comarca) {
			continue
		}
		matches = append(matches, domain.Summarize(rec.ID, a))
	}

	slices.SortStableFunc(matches, func(a, b domain.PropertySummary) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	total := len(matches)
	if total > q.MaxResults {
		matches = matches[:q.MaxResults]
	}
	logger.Debug("ranking query", "total", total, "returned", len(matches), "skipped", skipped)

	return &Result{
		Total:      total,
		Returned:   len(matches),
		Query:      q,
		Properties: matches,
	}, nil
}

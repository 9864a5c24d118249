package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/jmylchreest/leilao/internal/artifact"
	"github.com/jmylchreest/leilao/internal/domain"
	"github.com/jmylchreest/leilao/internal/scorer"
	"github.com/jmylchreest/leilao/pkg/cleaner"
)

var testKey = domain.ListingKey{State: "PE", City: "RECIFE"}

func validAnalysis(score float64) *domain.Analysis {
	a := &domain.Analysis{
		Property:  domain.PropertyFacts{"comarca": "Recife-PE", "quartos": "2"},
		Risks:     []domain.Risk{{Description: "passivo condominial", Source: "Edital pág. 3"}},
		NextSteps: []string{"certidão de IPTU"},
	}
	for _, rc := range domain.Rubric {
		a.Criteria = append(a.Criteria, domain.Criterion{Name: rc.Name, Weight: rc.Weight, Score: score, Sources: []string{}})
	}
	a.FinalScore = domain.FinalScore{Method: domain.MethodWeightedAverage, Value: domain.Round1(a.WeightedScore())}
	return a
}

func responseFor(t *testing.T, a *domain.Analysis) string {
	t.Helper()
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	return "Segue a análise:\n```json\n" + string(data) + "\n```\nFim."
}

type fakeScorer struct {
	response string
	err      error
	calls    int
	inputs   []string
	refs     []*scorer.ReferenceDocument
}

func (f *fakeScorer) Score(_ context.Context, input string, ref *scorer.ReferenceDocument) (string, error) {
	f.calls++
	f.inputs = append(f.inputs, input)
	f.refs = append(f.refs, ref)
	return f.response, f.err
}

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) ExtractText(context.Context, []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

func newFixture(t *testing.T, deed []byte) *artifact.Store {
	t.Helper()
	store := artifact.New(t.TempDir())
	err := store.WriteDetail(domain.Detail{
		Key:  testKey,
		ID:   "1444409748105",
		HTML: `<div id="dadosImovel"><h5>EDIFÍCIO SANTORINI</h5><p>Quartos: 2</p></div>`,
		Deed: deed,
	})
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// --- ParseResponse ---

func TestParseResponse(t *testing.T) {
	valid := validAnalysis(8)

	got, err := ParseResponse(responseFor(t, valid))
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if got.Score() != 8 {
		t.Errorf("Score() = %v, want 8", got.Score())
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no braces", "não consegui analisar"},
		{"reversed braces", "} texto {"},
		{"broken json", `{"property": {"comarca": }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.raw)
			if !errors.Is(err, domain.ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestParseResponse_Invalid(t *testing.T) {
	bad := validAnalysis(8)
	bad.FinalScore.Value = 9.5

	_, err := ParseResponse(responseFor(t, bad))
	if !errors.Is(err, domain.ErrInvalidAnalysis) {
		t.Fatalf("expected ErrInvalidAnalysis, got %v", err)
	}
	if errors.Is(err, domain.ErrMalformedResponse) {
		t.Error("invalid analysis must not be reported as malformed")
	}

	short := validAnalysis(8)
	short.Criteria = short.Criteria[:4]
	if _, err := ParseResponse(responseFor(t, short)); !errors.Is(err, domain.ErrInvalidAnalysis) {
		t.Errorf("expected ErrInvalidAnalysis for 4 criteria, got %v", err)
	}
}

// --- Analyze ---

func TestAnalyze_ScoresAndPersists(t *testing.T) {
	store := newFixture(t, []byte("%PDF"))
	sc := &fakeScorer{response: responseFor(t, validAnalysis(7))}
	ext := &fakeExtractor{text: "MATRÍCULA 20584 R-1 compra e venda"}
	ref := &scorer.ReferenceDocument{Name: "edital.pdf", Text: "regras"}

	a := New(store, sc, ext, Config{Reference: ref})
	got, err := a.Analyze(context.Background(), testKey, "1444409748105")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got.Score() != 7 {
		t.Errorf("Score() = %v, want 7", got.Score())
	}
	if !store.HasAnalysis("1444409748105") {
		t.Error("expected analysis persisted")
	}
	if sc.refs[0] != ref {
		t.Error("expected reference document passed to scorer")
	}

	input := sc.inputs[0]
	if !strings.HasPrefix(input, scorer.DetailPrefix) {
		t.Errorf("unexpected input prefix: %q", input)
	}
	if !strings.Contains(input, "EDIFÍCIO SANTORINI") || strings.Contains(input, "<h5>") {
		t.Errorf("expected cleaned detail text, got %q", input)
	}
	if !strings.Contains(input, "MATRÍCULA 20584") {
		t.Errorf("expected deed text, got %q", input)
	}
}

func TestAnalyze_CacheIsIdempotent(t *testing.T) {
	store := newFixture(t, nil)
	sc := &fakeScorer{response: responseFor(t, validAnalysis(6.5))}
	a := New(store, sc, &fakeExtractor{}, Config{})

	first, err := a.Analyze(context.Background(), testKey, "1444409748105")
	if err != nil {
		t.Fatalf("first Analyze() error = %v", err)
	}
	onDisk, err := os.ReadFile(store.AnalysisPath("1444409748105"))
	if err != nil {
		t.Fatal(err)
	}

	sc.response = "garbage"
	second, err := a.Analyze(context.Background(), testKey, "1444409748105")
	if err != nil {
		t.Fatalf("second Analyze() error = %v", err)
	}
	third, err := a.Analyze(context.Background(), testKey, "1444409748105")
	if err != nil {
		t.Fatalf("third Analyze() error = %v", err)
	}

	if sc.calls != 1 {
		t.Errorf("scorer called %d times, want 1", sc.calls)
	}
	b1, _ := json.Marshal(first)
	b2, _ := json.Marshal(second)
	b3, _ := json.Marshal(third)
	if string(b2) != string(b3) || string(b1) != string(b2) {
		t.Errorf("cached results differ:\n%s\n%s\n%s", b1, b2, b3)
	}
	after, _ := os.ReadFile(store.AnalysisPath("1444409748105"))
	if string(after) != string(onDisk) {
		t.Error("analysis record rewritten on cache hit")
	}
}

func TestAnalyze_MissingDetail(t *testing.T) {
	store := artifact.New(t.TempDir())
	sc := &fakeScorer{}
	a := New(store, sc, nil, Config{})

	_, err := a.Analyze(context.Background(), testKey, "999")
	if !errors.Is(err, domain.ErrMissingDetail) {
		t.Fatalf("expected ErrMissingDetail, got %v", err)
	}
	if sc.calls != 0 {
		t.Error("scorer must not be called without a detail")
	}
}

func TestAnalyze_DeedExtractionDegrades(t *testing.T) {
	store := newFixture(t, []byte("%PDF"))
	sc := &fakeScorer{response: responseFor(t, validAnalysis(5))}
	ext := &fakeExtractor{err: domain.ErrExtraction}

	if _, err := New(store, sc, ext, Config{}).Analyze(context.Background(), testKey, "1444409748105"); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if ext.calls != 1 {
		t.Errorf("extractor called %d times, want 1", ext.calls)
	}
	if !strings.Contains(sc.inputs[0], scorer.DeedUnavailable) {
		t.Errorf("expected placeholder in input, got %q", sc.inputs[0])
	}
}

func TestAnalyze_NoDeedSkipsExtractor(t *testing.T) {
	store := newFixture(t, nil)
	sc := &fakeScorer{response: responseFor(t, validAnalysis(5))}
	ext := &fakeExtractor{text: "unused"}

	if _, err := New(store, sc, ext, Config{}).Analyze(context.Background(), testKey, "1444409748105"); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if ext.calls != 0 {
		t.Error("extractor must not run without a deed")
	}
	if !strings.Contains(sc.inputs[0], scorer.DeedUnavailable) {
		t.Errorf("expected placeholder in input, got %q", sc.inputs[0])
	}
}

func TestAnalyze_DeedTruncated(t *testing.T) {
	store := newFixture(t, []byte("%PDF"))
	sc := &fakeScorer{response: responseFor(t, validAnalysis(5))}
	ext := &fakeExtractor{text: strings.Repeat("a", 40) + "TAIL"}

	a := New(store, sc, ext, Config{DeedMaxChars: 40, Cleaner: cleaner.NewNoop()})
	if _, err := a.Analyze(context.Background(), testKey, "1444409748105"); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if strings.Contains(sc.inputs[0], "TAIL") {
		t.Error("expected deed truncated")
	}
	if !strings.Contains(sc.inputs[0], "<h5>") {
		t.Error("expected raw markup with noop cleaner")
	}
}

func TestAnalyze_DefaultDeedCap(t *testing.T) {
	a := New(artifact.New(t.TempDir()), &fakeScorer{}, nil, Config{})
	if a.cfg.DeedMaxChars != DefaultDeedMaxChars {
		t.Errorf("DeedMaxChars = %d, want %d", a.cfg.DeedMaxChars, DefaultDeedMaxChars)
	}
}

func TestAnalyze_ScorerFailures(t *testing.T) {
	tests := []struct {
		name     string
		scorer   *fakeScorer
		sentinel error
	}{
		{"timeout", &fakeScorer{err: &domain.StageTimeoutError{Stage: domain.StageAnalysis}}, context.DeadlineExceeded},
		{"malformed", &fakeScorer{response: "sem json"}, domain.ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFixture(t, nil)
			_, err := New(store, tt.scorer, nil, Config{}).Analyze(context.Background(), testKey, "1444409748105")
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("expected %v, got %v", tt.sentinel, err)
			}
			if store.HasAnalysis("1444409748105") {
				t.Error("failed analysis must not be persisted")
			}
		})
	}
}

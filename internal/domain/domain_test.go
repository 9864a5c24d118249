package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

// validAnalysis returns an analysis that satisfies the rubric contract with
// the given per-criterion scores.
func validAnalysis(scores ...float64) *Analysis {
	a := &Analysis{
		Property: PropertyFacts{
			"comarca":    "RIO VERDE",
			"condominio": "EDIFÍCIO SANTORINI",
			"quartos":    float64(2),
		},
		Risks:     []Risk{{Description: "passivo condominial", Source: "Edital, item 5"}},
		NextSteps: []string{"certidão de IPTU"},
	}
	for i, rc := range Rubric {
		a.Criteria = append(a.Criteria, Criterion{
			Name:          rc.Name,
			Weight:        rc.Weight,
			Score:         scores[i],
			Justification: "ok",
			Sources:       []string{"Anúncio do item"},
		})
	}
	a.FinalScore = FinalScore{Method: MethodWeightedAverage, Value: Round1(a.WeightedScore())}
	return a
}

// --- Analysis.Validate ---

func TestAnalysisValidate_Valid(t *testing.T) {
	a := validAnalysis(8, 7, 6, 9, 5)
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
	if math.Abs(a.FinalScore.Value-a.WeightedScore()) >= 0.05 {
		t.Errorf("final score %v too far from weighted score %v", a.FinalScore.Value, a.WeightedScore())
	}
}

func TestAnalysisValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Analysis)
	}{
		{"four criteria", func(a *Analysis) { a.Criteria = a.Criteria[:4] }},
		{"six criteria", func(a *Analysis) { a.Criteria = append(a.Criteria, a.Criteria[0]) }},
		{"weights do not sum to one", func(a *Analysis) { a.Criteria[0].Weight = 0.35 }},
		{"swapped rubric weights", func(a *Analysis) {
			a.Criteria[0].Weight, a.Criteria[4].Weight = 0.2, 0.2
		}},
		{"criteria out of rubric order", func(a *Analysis) {
			a.Criteria[0], a.Criteria[4] = a.Criteria[4], a.Criteria[0]
		}},
		{"score out of range", func(a *Analysis) { a.Criteria[2].Score = 11 }},
		{"final score mismatch", func(a *Analysis) { a.FinalScore.Value += 0.5 }},
		{"wrong method", func(a *Analysis) { a.FinalScore.Method = "media_simples" }},
		{"missing property facts", func(a *Analysis) { a.Property = nil }},
		{"unnamed criterion", func(a *Analysis) { a.Criteria[1].Name = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAnalysis(8, 7, 6, 9, 5)
			tt.mutate(a)
			err := a.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !errors.Is(err, ErrInvalidAnalysis) {
				t.Errorf("expected ErrInvalidAnalysis, got %v", err)
			}
		})
	}
}

func TestRubricWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, rc := range Rubric {
		sum += rc.Weight
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("rubric weights sum to %v", sum)
	}
}

// --- PropertyFacts ---

func TestPropertyFactsString(t *testing.T) {
	f := PropertyFacts{"quartos": float64(2), "area": 66.5, "comarca": "GOIÂNIA", "nil": nil}

	cases := map[string]string{
		"quartos": "2",
		"area":    "66.5",
		"comarca": "GOIÂNIA",
		"nil":     "",
		"absent":  "",
	}
	for key, want := range cases {
		if got := f.String(key); got != want {
			t.Errorf("String(%q) = %q, want %q", key, got, want)
		}
	}
}

// --- Summarize ---

func TestSummarize_FillsNotAvailable(t *testing.T) {
	a := validAnalysis(8, 7, 6, 9, 5)
	s := Summarize("123", a)

	if s.ID != "123" || s.Score != a.FinalScore.Value {
		t.Errorf("unexpected summary identity: %+v", s)
	}
	if s.Comarca != "RIO VERDE" {
		t.Errorf("Comarca = %q", s.Comarca)
	}
	if s.Rooms != "2" {
		t.Errorf("Rooms = %q, want 2", s.Rooms)
	}
	if s.MinimumBid != "N/A" {
		t.Errorf("MinimumBid = %q, want N/A", s.MinimumBid)
	}
	if len(s.Criteria) != 5 || len(s.Risks) != 1 || len(s.NextSteps) != 1 {
		t.Errorf("unexpected collection sizes: %+v", s)
	}
}

// --- Report.Summarize ---

func TestReportSummarize(t *testing.T) {
	r := &Report{
		Found:    5,
		Analyzed: 4,
		Approved: 2,
		TopProperties: []PropertySummary{
			{ID: "a", Score: 9.1},
			{ID: "b", Score: 7.0},
		},
	}
	r.Summarize()

	if r.Summary.SuccessRate != 0.8 {
		t.Errorf("SuccessRate = %v, want 0.8", r.Summary.SuccessRate)
	}
	if r.Summary.ApprovalRate != 0.5 {
		t.Errorf("ApprovalRate = %v, want 0.5", r.Summary.ApprovalRate)
	}
	if r.Summary.SuccessPct != "80.0%" || r.Summary.ApprovalPct != "50.0%" {
		t.Errorf("unexpected percentages: %q %q", r.Summary.SuccessPct, r.Summary.ApprovalPct)
	}
	if r.Summary.BestScore != 9.1 {
		t.Errorf("BestScore = %v, want 9.1", r.Summary.BestScore)
	}
	if math.Abs(r.Summary.MeanScore-8.05) > 1e-9 {
		t.Errorf("MeanScore = %v, want 8.05", r.Summary.MeanScore)
	}
}

func TestReportSummarize_ZeroDenominators(t *testing.T) {
	r := &Report{}
	r.Summarize()

	if r.Summary.SuccessRate != 0 || r.Summary.ApprovalRate != 0 {
		t.Errorf("expected zero rates, got %+v", r.Summary)
	}
	if r.Summary.BestScore != 0 || r.Summary.MeanScore != 0 {
		t.Errorf("expected zero scores, got %+v", r.Summary)
	}
}

// --- StageTimeout ---

func TestStageTimeout(t *testing.T) {
	err := StageTimeout(StageListing, 5*time.Minute, fmt.Errorf("browser: %w", context.DeadlineExceeded))

	var ste *StageTimeoutError
	if !errors.As(err, &ste) {
		t.Fatalf("expected StageTimeoutError, got %T", err)
	}
	if ste.Stage != StageListing || ste.Limit != 5*time.Minute {
		t.Errorf("unexpected timeout error: %+v", ste)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("StageTimeoutError should unwrap to context.DeadlineExceeded")
	}
	if !IsTimeout(err) {
		t.Error("IsTimeout() = false")
	}
}

func TestStageTimeout_PassesOtherErrors(t *testing.T) {
	base := errors.New("boom")
	if got := StageTimeout(StageDetails, time.Hour, base); got != base {
		t.Errorf("expected original error, got %v", got)
	}
	if StageTimeout(StageDetails, time.Hour, nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestNewStageError(t *testing.T) {
	se := NewStageError(StageAnalysis, "42", &StageTimeoutError{Stage: StageAnalysis, Limit: time.Minute})
	if !se.Timeout {
		t.Error("expected Timeout flag")
	}
	if se.Error() == "" || se.PropertyID != "42" {
		t.Errorf("unexpected stage error: %+v", se)
	}
}

// --- RunParams ---

func TestRunParamsNormalize(t *testing.T) {
	p := RunParams{State: " go", City: "rio verde "}.Normalize()
	if p.State != "GO" || p.City != "RIO VERDE" {
		t.Errorf("Normalize() = %+v", p)
	}
	if p.Key() != (ListingKey{State: "GO", City: "RIO VERDE"}) {
		t.Errorf("Key() = %+v", p.Key())
	}
}

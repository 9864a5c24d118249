// Package domain holds the auction analysis data model shared by every stage
// of the leilao pipeline: property facts, rubric criteria, analyses, run
// reports and tasks, plus the error kinds the stages report.
package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// NotInformed is the rubric sentinel for facts absent from the source documents.
const NotInformed = "Não informado"

// MethodWeightedAverage is the only final score method the rubric defines.
const MethodWeightedAverage = "weighted_average"

// RubricCriterion is one fixed criterion of the flip rubric.
type RubricCriterion struct {
	Name   string
	Weight float64
}

// Rubric lists the five criteria every analysis is scored against.
var Rubric = []RubricCriterion{
	{Name: "Liquidez & Preço de Entrada", Weight: 0.30},
	{Name: "Situação Registral & Risco Jurídico", Weight: 0.25},
	{Name: "Despesas Propter Rem", Weight: 0.20},
	{Name: "Prazos de Contratação & Registro", Weight: 0.15},
	{Name: "Velocidade de Liquidez", Weight: 0.10},
}

const (
	weightTolerance = 1e-6
	scoreTolerance  = 0.05
)

// PropertyFacts is the loosely typed set of facts the scorer extracted.
// Keys are rubric-defined; values are usually strings or numbers.
type PropertyFacts map[string]any

// String returns the fact under key rendered as text, or "" when absent.
func (f PropertyFacts) String(key string) string {
	v, ok := f[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) {
			return fmt.Sprintf("%.0f", t)
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

// Criterion is a scored rubric criterion.
type Criterion struct {
	Name          string   `json:"name" validate:"required"`
	Weight        float64  `json:"weight" validate:"gte=0,lte=1"`
	Score         float64  `json:"score" validate:"gte=0,lte=10"`
	Justification string   `json:"justification"`
	Sources       []string `json:"sources"`
}

// FinalScore is the aggregated rubric score.
type FinalScore struct {
	Method string  `json:"method" validate:"eq=weighted_average"`
	Value  float64 `json:"value" validate:"gte=0,lte=10"`
}

// Risk is a practical risk flagged by the scorer.
type Risk struct {
	Description string `json:"description" validate:"required"`
	Source      string `json:"source"`
}

// Analysis is the scorer verdict persisted once per property.
type Analysis struct {
	Property   PropertyFacts `json:"property" validate:"required"`
	Criteria   []Criterion   `json:"criteria" validate:"len=5,dive"`
	FinalScore FinalScore    `json:"final_score"`
	Risks      []Risk        `json:"risks" validate:"dive"`
	NextSteps  []string      `json:"next_steps"`
}

// WeightedScore returns Σ score·weight over the criteria.
func (a *Analysis) WeightedScore() float64 {
	var sum float64
	for _, c := range a.Criteria {
		sum += c.Score * c.Weight
	}
	return sum
}

// Score returns the final score value.
func (a *Analysis) Score() float64 {
	return a.FinalScore.Value
}

// Round1 rounds to one decimal place, half away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func analysisValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the analysis against the rubric contract: exactly five
// criteria carrying the rubric weights, weights summing to one, and a final
// score equal to the rounded weighted average. All failures wrap ErrInvalidAnalysis.
func (a *Analysis) Validate() error {
	if err := analysisValidator().Struct(a); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, formatFieldError(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalidAnalysis, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidAnalysis, err)
	}

	var weightSum float64
	for _, c := range a.Criteria {
		weightSum += c.Weight
	}
	if math.Abs(weightSum-1) > weightTolerance {
		return fmt.Errorf("%w: criteria weights sum to %.6f, want 1", ErrInvalidAnalysis, weightSum)
	}

	for i, rc := range Rubric {
		if w := a.Criteria[i].Weight; math.Abs(w-rc.Weight) > weightTolerance {
			return fmt.Errorf("%w: criterion %d weight %.2f, rubric wants %.2f",
				ErrInvalidAnalysis, i+1, w, rc.Weight)
		}
	}

	want := Round1(a.WeightedScore())
	if math.Abs(a.FinalScore.Value-want) >= scoreTolerance {
		return fmt.Errorf("%w: final score %.2f does not match weighted average %.1f",
			ErrInvalidAnalysis, a.FinalScore.Value, want)
	}
	return nil
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "len":
		return fmt.Sprintf("%s must have exactly %s entries", fe.Namespace(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Namespace(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Namespace(), fe.Param())
	case "eq":
		return fmt.Sprintf("%s must be %q", fe.Namespace(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
	}
}

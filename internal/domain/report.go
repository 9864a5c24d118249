package domain

import (
	"fmt"
	"time"
)

// ListingKey scopes listing and detail artifacts to a state and city.
type ListingKey struct {
	State string `json:"estado"`
	City  string `json:"cidade"`
}

func (k ListingKey) String() string {
	return k.City + "/" + k.State
}

// Listing is the raw listing markup scraped for a region.
type Listing struct {
	Key       ListingKey
	HTML      string
	FetchedAt time.Time
}

// Detail is the raw detail markup for one property plus its optional deed PDF.
type Detail struct {
	Key  ListingKey
	ID   string
	HTML string
	Deed []byte
}

// HasDeed reports whether a deed document was retrieved.
func (d Detail) HasDeed() bool {
	return len(d.Deed) > 0
}

// Pipeline stage names used in errors and logs.
const (
	StageListing  = "scraping_list"
	StageIDs      = "extract_ids"
	StageDetails  = "scraping_details"
	StageAnalysis = "analysis"
)

// StageError records a failure of one stage, optionally for one property.
type StageError struct {
	Stage      string `json:"etapa"`
	PropertyID string `json:"imovel,omitempty"`
	Message    string `json:"erro"`
	Timeout    bool   `json:"timeout,omitempty"`

	Err error `json:"-"`
}

// NewStageError builds a StageError from err.
func NewStageError(stage, propertyID string, err error) StageError {
	return StageError{
		Stage:      stage,
		PropertyID: propertyID,
		Message:    err.Error(),
		Timeout:    IsTimeout(err),
		Err:        err,
	}
}

func (e StageError) Error() string {
	if e.PropertyID != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Stage, e.PropertyID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e StageError) Unwrap() error {
	return e.Err
}

// CriterionScore is the compact criterion view carried in a report.
type CriterionScore struct {
	Name  string  `json:"nome"`
	Score float64 `json:"nota"`
}

// PropertySummary is an approved property as it appears in a report or ranking.
type PropertySummary struct {
	ID              string           `json:"id"`
	Score           float64          `json:"nota_final"`
	Comarca         string           `json:"comarca"`
	Condominium     string           `json:"condominio"`
	Apartment       string           `json:"apartamento"`
	Rooms           string           `json:"quartos"`
	PrivateAreaM2   string           `json:"area_privativa_m2"`
	MinimumBid      string           `json:"valor_minimo"`
	DiscountPercent string           `json:"desconto_percent"`
	Criteria        []CriterionScore `json:"criterios"`
	Risks           []string         `json:"riscos"`
	NextSteps       []string         `json:"proximos_passos"`
}

const notAvailable = "N/A"

func factOrNA(f PropertyFacts, key string) string {
	if s := f.String(key); s != "" {
		return s
	}
	return notAvailable
}

// Summarize builds the report view of an analysis.
func Summarize(id string, a *Analysis) PropertySummary {
	s := PropertySummary{
		ID:              id,
		Score:           a.FinalScore.Value,
		Comarca:         factOrNA(a.Property, "comarca"),
		Condominium:     factOrNA(a.Property, "condominio"),
		Apartment:       factOrNA(a.Property, "apartamento"),
		Rooms:           factOrNA(a.Property, "quartos"),
		PrivateAreaM2:   factOrNA(a.Property, "area_privativa_m2"),
		MinimumBid:      factOrNA(a.Property, "valor_minimo"),
		DiscountPercent: factOrNA(a.Property, "desconto_percent"),
		Criteria:        make([]CriterionScore, 0, len(a.Criteria)),
		Risks:           make([]string, 0, len(a.Risks)),
		NextSteps:       append([]string{}, a.NextSteps...),
	}
	for _, c := range a.Criteria {
		s.Criteria = append(s.Criteria, CriterionScore{Name: c.Name, Score: c.Score})
	}
	for _, r := range a.Risks {
		s.Risks = append(s.Risks, r.Description)
	}
	return s
}

// Summary holds the derived statistics of a run.
type Summary struct {
	SuccessRate  float64 `json:"success_rate"`
	ApprovalRate float64 `json:"approval_rate"`
	SuccessPct   string  `json:"taxa_sucesso"`
	ApprovalPct  string  `json:"taxa_aprovacao"`
	BestScore    float64 `json:"melhor_nota"`
	MeanScore    float64 `json:"nota_media"`
}

// Report is the consolidated result of a pipeline run.
type Report struct {
	ListingKey
	MinScore      float64           `json:"min_nota"`
	Timestamp     time.Time         `json:"timestamp"`
	Found         int               `json:"imoveis_encontrados"`
	Analyzed      int               `json:"imoveis_analisados"`
	Approved      int               `json:"imoveis_aprovados"`
	TopProperties []PropertySummary `json:"top_imoveis"`
	Errors        []StageError      `json:"erros"`
	Summary       Summary           `json:"resumo_executivo"`
}

// Summarize computes the derived statistics from the report counts and the
// approved set. Zero denominators are treated as one.
func (r *Report) Summarize() {
	found := max(r.Found, 1)
	analyzed := max(r.Analyzed, 1)

	s := Summary{
		SuccessRate:  float64(r.Analyzed) / float64(found),
		ApprovalRate: float64(r.Approved) / float64(analyzed),
	}
	s.SuccessPct = fmt.Sprintf("%.1f%%", s.SuccessRate*100)
	s.ApprovalPct = fmt.Sprintf("%.1f%%", s.ApprovalRate*100)

	if n := len(r.TopProperties); n > 0 {
		var sum float64
		s.BestScore = r.TopProperties[0].Score
		for _, p := range r.TopProperties {
			sum += p.Score
			if p.Score > s.BestScore {
				s.BestScore = p.Score
			}
		}
		s.MeanScore = sum / float64(n)
	}
	r.Summary = s
}

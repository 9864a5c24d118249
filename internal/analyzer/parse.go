package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmylchreest/leilao/internal/domain"
)

// ParseResponse pulls the analysis out of a raw scorer response.
//
// The text between the first '{' and the last '}' is decoded as JSON; a
// response without such a span, or one that does not decode, fails with
// domain.ErrMalformedResponse. A decoded analysis that breaks the rubric
// contract fails with domain.ErrInvalidAnalysis.
func ParseResponse(raw string) (*domain.Analysis, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in response", domain.ErrMalformedResponse)
	}

	var a domain.Analysis
	if err := json.Unmarshal([]byte(raw[start:end+1]), &a); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

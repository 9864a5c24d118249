// Package scorer asks an LLM to grade one property against the flip rubric.
package scorer

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/leilao/internal/domain"
	"github.com/jmylchreest/leilao/internal/logger"
	"github.com/jmylchreest/leilao/pkg/llm"
)

// Config holds scorer settings.
type Config struct {
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns the default scorer settings.
func DefaultConfig() Config {
	return Config{
		Timeout:     5 * time.Minute,
		MaxTokens:   4096,
		Temperature: 0.2,
	}
}

// LLMScorer scores properties with an llm.Provider. It never retries; a
// failed or malformed response is reported to the caller as is.
type LLMScorer struct {
	provider llm.Provider
	cfg      Config
}

// New creates a scorer.
func New(provider llm.Provider, cfg Config) *LLMScorer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &LLMScorer{provider: provider, cfg: cfg}
}

// Score sends the property input and reference notice to the model and returns
// the raw response text. Exceeding the configured timeout yields a
// *domain.StageTimeoutError.
func (s *LLMScorer) Score(ctx context.Context, input string, ref *ReferenceDocument) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req := llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: SystemPrompt()},
			{Role: llm.RoleUser, Content: BuildUserMessage(input, ref)},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		JSONObject:  true,
	}

	logger.Debug("scoring property",
		"provider", s.provider.Name(),
		"model", s.provider.Model(),
		"input_chars", len(input),
		"reference", ref.Available())

	resp, err := s.provider.Execute(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", domain.StageTimeout(domain.StageAnalysis, s.cfg.Timeout, ctx.Err())
		}
		return "", fmt.Errorf("score: %w", err)
	}
	return resp.Content, nil
}

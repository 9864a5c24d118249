package llm

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/leilao/internal/logger"
)

// Observer receives a notification after every provider call, successful or not.
type Observer interface {
	OnCall(ctx context.Context, event CallEvent)
}

// CallEvent describes one provider call.
type CallEvent struct {
	Provider  string
	Model     string
	InputSize int // request content size in bytes
	Response  *Response
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event CallEvent)

// OnCall implements Observer.
func (f ObserverFunc) OnCall(ctx context.Context, event CallEvent) {
	f(ctx, event)
}

// LogObserver logs every call at debug level and failures at warn level.
type LogObserver struct{}

// OnCall implements Observer.
func (LogObserver) OnCall(ctx context.Context, e CallEvent) {
	if e.Err != nil {
		logger.WarnContext(ctx, "llm call failed",
			"provider", e.Provider,
			"model", e.Model,
			"duration", e.Duration,
			"error", e.Err)
		return
	}
	logger.DebugContext(ctx, "llm call complete",
		"provider", e.Provider,
		"model", e.Response.Model,
		"input", humanize.Bytes(uint64(e.InputSize)),
		"input_tokens", e.Response.Usage.InputTokens,
		"output_tokens", e.Response.Usage.OutputTokens,
		"finish_reason", e.Response.FinishReason,
		"duration", e.Duration)
}

// observed wraps a Provider and reports each call to an Observer.
type observed struct {
	Provider
	obs Observer
}

// WithObserver returns p wrapped so that obs sees every Execute call.
func WithObserver(p Provider, obs Observer) Provider {
	if obs == nil {
		return p
	}
	return &observed{Provider: p, obs: obs}
}

func (o *observed) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := o.Provider.Execute(ctx, req)
	o.obs.OnCall(ctx, CallEvent{
		Provider:  o.Name(),
		Model:     o.Model(),
		InputSize: req.InputSize(),
		Response:  resp,
		Err:       err,
		StartedAt: start,
		Duration:  time.Since(start),
	})
	return resp, err
}

package observer

import (
	"context"
	"time"

	"github.com/nevindra/careerflow"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// instrumentedProvider wraps a careerflow.Provider and records request
// counts, token usage, and latency for every chat call.
type instrumentedProvider struct {
	inner careerflow.Provider
	inst  *Instruments
}

// WrapProvider returns a Provider that records metrics through inst.
func WrapProvider(p careerflow.Provider, inst *Instruments) careerflow.Provider {
	return &instrumentedProvider{inner: p, inst: inst}
}

func (p *instrumentedProvider) Name() string { return p.inner.Name() }

func (p *instrumentedProvider) Chat(ctx context.Context, req careerflow.ChatRequest) (careerflow.ChatResponse, error) {
	start := time.Now()
	resp, err := p.inner.Chat(ctx, req)

	attrs := metric.WithAttributes(
		attribute.String("provider", p.inner.Name()),
		attribute.Bool("error", err != nil),
	)
	p.inst.LLMRequests.Add(ctx, 1, attrs)
	p.inst.LLMDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err == nil {
		p.inst.TokenUsage.Add(ctx, int64(resp.Usage.InputTokens),
			metric.WithAttributes(attribute.String("direction", "input")))
		p.inst.TokenUsage.Add(ctx, int64(resp.Usage.OutputTokens),
			metric.WithAttributes(attribute.String("direction", "output")))
	}
	return resp, err
}

var _ careerflow.Provider = (*instrumentedProvider)(nil)

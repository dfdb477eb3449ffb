package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/carecoach/pkg/gateway"
)

// Backend wraps a gateway.Backend with a span and metrics per call.
type Backend struct {
	inner   gateway.Backend
	metrics *Metrics
}

var _ gateway.Backend = (*Backend)(nil)

// InstrumentBackend wraps inner. A nil m uses [DefaultMetrics].
func InstrumentBackend(inner gateway.Backend, m *Metrics) *Backend {
	if m == nil {
		m = DefaultMetrics()
	}
	return &Backend{inner: inner, metrics: m}
}

// Name returns the wrapped backend's name.
func (b *Backend) Name() string { return b.inner.Name() }

// Generate forwards to the wrapped backend inside a "gateway.generate" span.
func (b *Backend) Generate(ctx context.Context, req gateway.GenerateRequest) (string, error) {
	schema := ""
	if req.Schema != nil {
		schema = req.Schema.Name
	}
	ctx, span := StartSpan(ctx, "gateway.generate",
		attribute.String("gateway.backend", b.inner.Name()),
		attribute.String("gateway.schema", schema),
		attribute.Bool("gateway.audio", req.Audio != nil && !req.Audio.Empty()),
	)

	start := time.Now()
	out, err := b.inner.Generate(ctx, req)
	span.SetAttributes(attribute.Int("gateway.response_bytes", len(out)))
	b.finish(ctx, span, "generate", start, err)
	return out, err
}

// Speak forwards to the wrapped backend inside a "gateway.speak" span.
func (b *Backend) Speak(ctx context.Context, text string) ([]byte, error) {
	ctx, span := StartSpan(ctx, "gateway.speak",
		attribute.String("gateway.backend", b.inner.Name()),
		attribute.Int("gateway.text_len", len(text)),
	)

	start := time.Now()
	pcm, err := b.inner.Speak(ctx, text)
	b.finish(ctx, span, "speak", start, err)
	return pcm, err
}

// finish records the call and ends span.
func (b *Backend) finish(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	elapsed := time.Since(start)
	b.metrics.RecordGatewayRequest(ctx, b.inner.Name(), op, elapsed, err)
	log := Logger(ctx, nil)
	EndSpan(span, err)
	if err != nil {
		log.Warn("gateway call failed", "backend", b.inner.Name(), "op", op, "elapsed", elapsed, "err", err)
		return
	}
	log.Debug("gateway call done", "backend", b.inner.Name(), "op", op, "elapsed", elapsed)
}

// Package observe provides observability primitives for the interview coach:
// OpenTelemetry metrics, tracing and trace-aware structured logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// bridges them to a Prometheus registry which is written to a text file on
// shutdown, since the coach is a terminal application with nothing to scrape.
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all coach metrics.
const meterName = "github.com/MrWong99/carecoach"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// GatewayDuration tracks AI gateway call latency. Attributes:
	//   attribute.String("backend", ...), attribute.String("op", ...)
	GatewayDuration metric.Float64Histogram

	// RecordingDuration tracks the length of submitted voice answers.
	RecordingDuration metric.Float64Histogram

	// --- Counters ---

	// GatewayRequests counts gateway calls. Attributes:
	//   attribute.String("backend", ...), attribute.String("op", ...), attribute.String("status", ...)
	GatewayRequests metric.Int64Counter

	// Turns counts transcript entries. Attributes:
	//   attribute.String("speaker", ...), attribute.String("mode", ...)
	Turns metric.Int64Counter

	// Sessions counts started interviews by region.
	Sessions metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes:
	//   attribute.String("breaker", ...), attribute.String("to", ...)
	BreakerTransitions metric.Int64Counter

	// --- Error counters ---

	// GatewayErrors counts failed gateway calls by backend and op.
	GatewayErrors metric.Int64Counter

	// PlaybackErrors counts swallowed speech playback failures by op.
	PlaybackErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveRecordings is 1 while the microphone is capturing.
	ActiveRecordings metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for remote
// model calls, which routinely take several seconds.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60,
}

// recordingBuckets covers spoken answers from a few seconds to several minutes.
var recordingBuckets = []float64{
	5, 10, 20, 30, 60, 90, 120, 180, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.GatewayDuration, err = m.Float64Histogram("carecoach.gateway.duration",
		metric.WithDescription("Latency of AI gateway calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RecordingDuration, err = m.Float64Histogram("carecoach.recording.duration",
		metric.WithDescription("Length of submitted voice answers."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(recordingBuckets...),
	); err != nil {
		return nil, err
	}

	if met.GatewayRequests, err = m.Int64Counter("carecoach.gateway.requests",
		metric.WithDescription("Total gateway calls by backend, op, and status."),
	); err != nil {
		return nil, err
	}
	if met.Turns, err = m.Int64Counter("carecoach.turns",
		metric.WithDescription("Total transcript entries by speaker and answer mode."),
	); err != nil {
		return nil, err
	}
	if met.Sessions, err = m.Int64Counter("carecoach.sessions",
		metric.WithDescription("Total interviews started by region."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("carecoach.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by breaker and target state."),
	); err != nil {
		return nil, err
	}

	if met.GatewayErrors, err = m.Int64Counter("carecoach.gateway.errors",
		metric.WithDescription("Total failed gateway calls by backend and op."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackErrors, err = m.Int64Counter("carecoach.playback.errors",
		metric.WithDescription("Total speech playback failures by op."),
	); err != nil {
		return nil, err
	}

	if met.ActiveRecordings, err = m.Int64UpDownCounter("carecoach.active_recordings",
		metric.WithDescription("Number of microphone captures in progress."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordGatewayRequest records one gateway call with its latency and outcome.
// A non-nil err also increments [Metrics.GatewayErrors].
func (m *Metrics) RecordGatewayRequest(ctx context.Context, backend, op string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.GatewayErrors.Add(ctx, 1, metric.WithAttributes(Attr("backend", backend), Attr("op", op)))
	}
	m.GatewayDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(Attr("backend", backend), Attr("op", op)),
	)
	m.GatewayRequests.Add(ctx, 1,
		metric.WithAttributes(Attr("backend", backend), Attr("op", op), Attr("status", status)),
	)
}

// RecordTurn counts a transcript entry. mode is "voice" or "text" for
// candidate turns and empty for the coach.
func (m *Metrics) RecordTurn(ctx context.Context, speaker, mode string) {
	m.Turns.Add(ctx, 1, metric.WithAttributes(Attr("speaker", speaker), Attr("mode", mode)))
}

// RecordSession counts a started interview.
func (m *Metrics) RecordSession(ctx context.Context, region string) {
	m.Sessions.Add(ctx, 1, metric.WithAttributes(Attr("region", region)))
}

// RecordRecording records the length of a finished capture.
func (m *Metrics) RecordRecording(ctx context.Context, d time.Duration) {
	m.RecordingDuration.Record(ctx, d.Seconds())
}

// RecordPlaybackError counts a swallowed playback failure.
func (m *Metrics) RecordPlaybackError(ctx context.Context, op string) {
	m.PlaybackErrors.Add(ctx, 1, metric.WithAttributes(Attr("op", op)))
}

// RecordBreakerTransition counts a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, to string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(Attr("breaker", breaker), Attr("to", to)))
}

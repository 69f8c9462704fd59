// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing, and structured logging helpers.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/sketchmentor"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Uplink counters ---

	// AudioFramesSent counts microphone frames delivered to the session.
	AudioFramesSent metric.Int64Counter

	// VisualFramesSent counts board snapshots delivered to the session.
	VisualFramesSent metric.Int64Counter

	// --- Downlink counters ---

	// AudioChunksReceived counts synthesized speech chunks scheduled for
	// playback.
	AudioChunksReceived metric.Int64Counter

	// Interruptions counts playback interruptions by student speech.
	Interruptions metric.Int64Counter

	// TurnsCompleted counts committed conversation turns.
	TurnsCompleted metric.Int64Counter

	// ToolCalls counts remote tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// --- Latency histograms ---

	// GradingDuration tracks one-shot grading request latency.
	GradingDuration metric.Float64Histogram

	// --- Gauges ---

	// ActiveSessions tracks the number of live tutoring sessions (0 or 1 in
	// a single client, but recorded as a gauge for fleet dashboards).
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// one-shot model requests.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AudioFramesSent, err = m.Int64Counter("sketchmentor.audio.frames_sent",
		metric.WithDescription("Total microphone frames sent to the live session."),
	); err != nil {
		return nil, err
	}
	if met.VisualFramesSent, err = m.Int64Counter("sketchmentor.visual.frames_sent",
		metric.WithDescription("Total board snapshots sent to the live session."),
	); err != nil {
		return nil, err
	}
	if met.AudioChunksReceived, err = m.Int64Counter("sketchmentor.audio.chunks_received",
		metric.WithDescription("Total synthesized speech chunks scheduled for playback."),
	); err != nil {
		return nil, err
	}
	if met.Interruptions, err = m.Int64Counter("sketchmentor.playback.interruptions",
		metric.WithDescription("Total playback interruptions by student speech."),
	); err != nil {
		return nil, err
	}
	if met.TurnsCompleted, err = m.Int64Counter("sketchmentor.transcript.turns",
		metric.WithDescription("Total committed conversation turns."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("sketchmentor.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}

	if met.GradingDuration, err = m.Float64Histogram("sketchmentor.grading.duration",
		metric.WithDescription("Latency of one-shot grading requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("sketchmentor.active_sessions",
		metric.WithDescription("Number of live tutoring sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordToolCall records a tool call counter increment with the standard
// attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// Package observe provides application-wide observability primitives for
// Boardroom: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all Boardroom metrics.
const meterName = "github.com/MrWong99/boardroom"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TranscriptionDuration tracks speech-to-text latency per chunk. Use with
	// attribute:
	//   attribute.String("provider", ...)
	TranscriptionDuration metric.Float64Histogram

	// RouteDuration tracks the end-to-end time of one routed chunk, lookup
	// through persist. Use with attribute:
	//   attribute.String("path", ...)
	RouteDuration metric.Float64Histogram

	// --- Counters ---

	// ChunksCaptured counts audio chunks delivered by the capture session.
	ChunksCaptured metric.Int64Counter

	// ChunkBytes counts encoded audio bytes delivered by the capture session.
	ChunkBytes metric.Int64Counter

	// ChunksDropped counts chunks discarded before transcription. Use with
	// attribute:
	//   attribute.String("reason", ...)
	ChunksDropped metric.Int64Counter

	// ChunksRouted counts router outcomes. Use with attributes:
	//   attribute.String("path", ...), attribute.String("outcome", ...)
	ChunksRouted metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// VoiceCommands counts matched voice commands. Use with attribute:
	//   attribute.String("command", ...)
	VoiceCommands metric.Int64Counter

	// Notifications counts user-visible toasts. Use with attribute:
	//   attribute.String("level", ...)
	Notifications metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveRecordings tracks the number of capture sessions currently
	// recording (paused sessions included).
	ActiveRecordings metric.Int64UpDownCounter

	// NotificationClients tracks the number of connected WebSocket
	// notification subscribers.
	NotificationClients metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// 5 s audio chunks round-tripping through a hosted transcription API.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscriptionDuration, err = m.Float64Histogram("boardroom.transcription.duration",
		metric.WithDescription("Latency of speech-to-text transcription per chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RouteDuration, err = m.Float64Histogram("boardroom.route.duration",
		metric.WithDescription("End-to-end latency of a routed audio chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ChunksCaptured, err = m.Int64Counter("boardroom.capture.chunks",
		metric.WithDescription("Total audio chunks delivered by capture sessions."),
	); err != nil {
		return nil, err
	}
	if met.ChunkBytes, err = m.Int64Counter("boardroom.capture.bytes",
		metric.WithDescription("Total encoded audio bytes delivered by capture sessions."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.ChunksDropped, err = m.Int64Counter("boardroom.capture.dropped",
		metric.WithDescription("Total audio chunks dropped before transcription by reason."),
	); err != nil {
		return nil, err
	}
	if met.ChunksRouted, err = m.Int64Counter("boardroom.router.chunks",
		metric.WithDescription("Total routed chunks by transcription path and outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("boardroom.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.VoiceCommands, err = m.Int64Counter("boardroom.voicecmd.matches",
		metric.WithDescription("Total matched voice commands by command name."),
	); err != nil {
		return nil, err
	}
	if met.Notifications, err = m.Int64Counter("boardroom.notifications",
		metric.WithDescription("Total user-visible notifications by level."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("boardroom.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRecordings, err = m.Int64UpDownCounter("boardroom.active_recordings",
		metric.WithDescription("Number of capture sessions currently recording."),
	); err != nil {
		return nil, err
	}
	if met.NotificationClients, err = m.Int64UpDownCounter("boardroom.notification_clients",
		metric.WithDescription("Number of connected notification WebSocket clients."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("boardroom.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordChunkCaptured records one captured chunk of size bytes.
func (m *Metrics) RecordChunkCaptured(ctx context.Context, size int) {
	m.ChunksCaptured.Add(ctx, 1)
	m.ChunkBytes.Add(ctx, int64(size))
}

// RecordChunkDropped records a chunk discarded for reason.
func (m *Metrics) RecordChunkDropped(ctx context.Context, reason string) {
	m.ChunksDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordRoute records the outcome of one routed chunk.
func (m *Metrics) RecordRoute(ctx context.Context, path, outcome string) {
	m.ChunksRouted.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("path", path),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordVoiceCommand records a matched voice command.
func (m *Metrics) RecordVoiceCommand(ctx context.Context, command string) {
	m.VoiceCommands.Add(ctx, 1,
		metric.WithAttributes(attribute.String("command", command)),
	)
}

// RecordNotification records a toast raised at level.
func (m *Metrics) RecordNotification(ctx context.Context, level string) {
	m.Notifications.Add(ctx, 1,
		metric.WithAttributes(attribute.String("level", level)),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

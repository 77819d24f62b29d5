// Package observe provides application-wide observability for the voice
// gateway: OpenTelemetry metrics with a Prometheus exporter bridge, and the
// per-turn latency Tracker whose snapshot is sent to the client after every
// completed turn.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with their own [metric.MeterProvider] to
// avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all gateway metrics.
const meterName = "github.com/voxgate-ai/voxgate"

// Metrics holds all OpenTelemetry metric instruments for the gateway.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTLatency tracks speech-start to final-transcript latency.
	STTLatency metric.Float64Histogram

	// LLMGeneration tracks full LLM response generation time.
	LLMGeneration metric.Float64Histogram

	// TTSLatency tracks time to first synthesised audio byte.
	TTSLatency metric.Float64Histogram

	// SearchLatency tracks web search round-trip time.
	SearchLatency metric.Float64Histogram

	// TurnTurnaround tracks end-to-end user-utterance to response-complete time.
	TurnTurnaround metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors by provider and kind.
	ProviderErrors metric.Int64Counter

	// TurnsCompleted counts completed turns by response mode.
	TurnsCompleted metric.Int64Counter

	// TurnsAborted counts turns cancelled by barge-in or supersession.
	TurnsAborted metric.Int64Counter

	// CacheLookups counts response cache lookups by status ("hit"/"miss").
	CacheLookups metric.Int64Counter

	// --- Gauges ---

	// ActiveConnections tracks the number of live voice sockets.
	ActiveConnections metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) tuned for
// voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&met.STTLatency, "voxgate.stt.latency", "Speech start to final transcript latency."},
		{&met.LLMGeneration, "voxgate.llm.generation", "Full LLM response generation time."},
		{&met.TTSLatency, "voxgate.tts.latency", "Time to first synthesised audio byte."},
		{&met.SearchLatency, "voxgate.search.latency", "Web search round-trip time."},
		{&met.TurnTurnaround, "voxgate.turn.turnaround", "End-to-end turn latency."},
	}
	for _, h := range histograms {
		if *h.dst, err = m.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		); err != nil {
			return nil, err
		}
	}

	if met.ProviderRequests, err = m.Int64Counter("voxgate.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxgate.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.TurnsCompleted, err = m.Int64Counter("voxgate.turns.completed",
		metric.WithDescription("Completed conversation turns by response mode."),
	); err != nil {
		return nil, err
	}
	if met.TurnsAborted, err = m.Int64Counter("voxgate.turns.aborted",
		metric.WithDescription("Turns cancelled by barge-in or a newer utterance."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("voxgate.cache.lookups",
		metric.WithDescription("Response cache lookups by status."),
	); err != nil {
		return nil, err
	}

	if met.ActiveConnections, err = m.Int64UpDownCounter("voxgate.active_connections",
		metric.WithDescription("Number of live voice sockets."),
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

// RecordProviderRequest records a provider request with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error with the standard attribute
// set.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordCacheLookup records a response cache lookup outcome.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	status := "miss"
	if hit {
		status = "hit"
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

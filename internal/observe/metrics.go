// Package observe provides application-wide observability primitives for
// Auricle: OpenTelemetry metrics, distributed tracing, structured logging,
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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Auricle metrics.
const meterName = "github.com/auriclehq/auricle"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranscriptionDuration tracks speech-to-text latency per utterance. Use
	// with attribute:
	//   attribute.String("status", "ok"|"timeout"|"error")
	TranscriptionDuration metric.Float64Histogram

	// ResponseDuration tracks responder latency per accepted transcript. Use
	// with attribute:
	//   attribute.String("status", "ok"|"error")
	ResponseDuration metric.Float64Histogram

	// UtteranceDuration tracks the audio length of captured utterances.
	UtteranceDuration metric.Float64Histogram

	// --- Counters ---

	// WakeDetections counts wake word hits. Use with attribute:
	//   attribute.String("keyword", ...)
	WakeDetections metric.Int64Counter

	// Utterances counts completed captures. Use with attribute:
	//   attribute.String("end", "silence"|"forced")
	Utterances metric.Int64Counter

	// InvalidInputs counts empty or discarded inputs during dialogues.
	InvalidInputs metric.Int64Counter

	// DroppedFrames counts capture frames evicted because the pipeline fell
	// behind.
	DroppedFrames metric.Int64Counter

	// --- Error counters ---

	// ArchiveFailures counts turn archive writes that failed.
	ArchiveFailures metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of dialogues currently in progress,
	// 0 while the controller sleeps and 1 while it is awake.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for transcription and responder latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// utteranceBuckets defines bucket boundaries (in seconds) spanning the
// shortest kept capture up to the forced-end cutoff.
var utteranceBuckets = []float64{
	0.5, 1, 2, 3, 5, 8, 10, 15,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscriptionDuration, err = m.Float64Histogram("auricle.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ResponseDuration, err = m.Float64Histogram("auricle.chat.duration",
		metric.WithDescription("Latency of response generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UtteranceDuration, err = m.Float64Histogram("auricle.utterance.duration",
		metric.WithDescription("Audio length of captured utterances."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(utteranceBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.WakeDetections, err = m.Int64Counter("auricle.wake.detections",
		metric.WithDescription("Total wake word detections by keyword."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("auricle.utterances",
		metric.WithDescription("Total completed utterance captures by end cause."),
	); err != nil {
		return nil, err
	}
	if met.InvalidInputs, err = m.Int64Counter("auricle.invalid_inputs",
		metric.WithDescription("Total empty or discarded inputs during dialogues."),
	); err != nil {
		return nil, err
	}
	if met.DroppedFrames, err = m.Int64Counter("auricle.frames.dropped",
		metric.WithDescription("Total capture frames dropped by the hand-off buffer."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ArchiveFailures, err = m.Int64Counter("auricle.archive.failures",
		metric.WithDescription("Total failed turn archive writes."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("auricle.active_sessions",
		metric.WithDescription("Number of dialogues currently in progress."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("auricle.http.request.duration",
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

// RecordWakeDetection records one wake word hit.
func (m *Metrics) RecordWakeDetection(ctx context.Context, keyword string) {
	m.WakeDetections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("keyword", keyword)),
	)
}

// RecordUtterance records one completed capture: the counter by end cause and
// the audio-length histogram.
func (m *Metrics) RecordUtterance(ctx context.Context, d time.Duration, forced bool) {
	end := "silence"
	if forced {
		end = "forced"
	}
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(attribute.String("end", end)),
	)
	m.UtteranceDuration.Record(ctx, d.Seconds())
}

// RecordTranscription records one transcription attempt with its latency and
// outcome.
func (m *Metrics) RecordTranscription(ctx context.Context, d time.Duration, status string) {
	m.TranscriptionDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordResponse records one responder call with its latency and outcome.
func (m *Metrics) RecordResponse(ctx context.Context, d time.Duration, status string) {
	m.ResponseDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordInvalidInput records one empty or discarded input.
func (m *Metrics) RecordInvalidInput(ctx context.Context) {
	m.InvalidInputs.Add(ctx, 1)
}

// RecordArchiveFailure records one failed turn archive write.
func (m *Metrics) RecordArchiveFailure(ctx context.Context) {
	m.ArchiveFailures.Add(ctx, 1)
}

// AddActiveSessions moves the active-dialogue gauge by delta.
func (m *Metrics) AddActiveSessions(ctx context.Context, delta int64) {
	m.ActiveSessions.Add(ctx, delta)
}

// AddDroppedFrames adds n newly dropped capture frames to the counter.
func (m *Metrics) AddDroppedFrames(ctx context.Context, n int64) {
	m.DroppedFrames.Add(ctx, n)
}

// Package observe provides application-wide observability primitives for
// Podium: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all Podium metrics.
const meterName = "github.com/MrWong99/podium"

// Analysis stages recorded in [Metrics.AnalysisDuration].
const (
	StageVisual     = "visual"
	StageAudio      = "audio"
	StageExtract    = "extract"
	StageTranscribe = "transcribe"
	StageTotal      = "total"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// AnalysisDuration tracks wall time per analysis stage. Use with attribute:
	//   attribute.String("stage", ...)
	AnalysisDuration metric.Float64Histogram

	// FramesSampled counts frames emitted by the sampler.
	FramesSampled metric.Int64Counter

	// DetectorCalls counts landmark detector queries. Use with attributes:
	//   attribute.String("modality", ...), attribute.String("result", "present"|"absent")
	DetectorCalls metric.Int64Counter

	// DetectorUnavailable counts detectors that failed to load. Use with
	// attribute:
	//   attribute.String("modality", ...)
	DetectorUnavailable metric.Int64Counter

	// AggregateUnknown counts sub-scores that ended in the unknown state. Use
	// with attribute:
	//   attribute.String("aggregate", ...)
	AggregateUnknown metric.Int64Counter

	// ActiveAnalyses tracks the number of analyses in flight.
	ActiveAnalyses metric.Int64UpDownCounter

	// HTTPRequestDuration tracks metrics listener latency. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// stageBuckets defines histogram bucket boundaries (in seconds) for offline
// analysis stages, which run from sub-second to minutes.
var stageBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AnalysisDuration, err = m.Float64Histogram("podium.analysis.duration",
		metric.WithDescription("Wall time of an analysis stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}

	if met.FramesSampled, err = m.Int64Counter("podium.frames.sampled",
		metric.WithDescription("Total video frames emitted by the sampler."),
	); err != nil {
		return nil, err
	}
	if met.DetectorCalls, err = m.Int64Counter("podium.detector.calls",
		metric.WithDescription("Total landmark detector queries by modality and result."),
	); err != nil {
		return nil, err
	}
	if met.DetectorUnavailable, err = m.Int64Counter("podium.detector.unavailable",
		metric.WithDescription("Detectors that could not be loaded, by modality."),
	); err != nil {
		return nil, err
	}
	if met.AggregateUnknown, err = m.Int64Counter("podium.aggregate.unknown",
		metric.WithDescription("Sub-scores that ended in the unknown state, by aggregate."),
	); err != nil {
		return nil, err
	}

	if met.ActiveAnalyses, err = m.Int64UpDownCounter("podium.active_analyses",
		metric.WithDescription("Number of analyses in flight."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("podium.http.request.duration",
		metric.WithDescription("Metrics listener request latency by method and route."),
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

// RecordStage records the duration of one analysis stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.AnalysisDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordDetect records one detector query.
func (m *Metrics) RecordDetect(ctx context.Context, modality string, present bool) {
	result := "absent"
	if present {
		result = "present"
	}
	m.DetectorCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("modality", modality),
			attribute.String("result", result),
		),
	)
}

// RecordDetectorUnavailable records a detector that failed to load.
func (m *Metrics) RecordDetectorUnavailable(ctx context.Context, modality string) {
	m.DetectorUnavailable.Add(ctx, 1,
		metric.WithAttributes(attribute.String("modality", modality)),
	)
}

// RecordUnknown records a sub-score that could not be computed.
func (m *Metrics) RecordUnknown(ctx context.Context, aggregate string) {
	m.AggregateUnknown.Add(ctx, 1,
		metric.WithAttributes(attribute.String("aggregate", aggregate)),
	)
}

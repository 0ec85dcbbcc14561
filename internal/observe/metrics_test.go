package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordStage(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStage(ctx, StageVisual, 1200*time.Millisecond)
	m.RecordStage(ctx, StageVisual, 800*time.Millisecond)
	m.RecordStage(ctx, StageAudio, 300*time.Millisecond)

	rm := collect(t, reader)
	met := findMetric(rm, "podium.analysis.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}

	for _, dp := range hist.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("stage"))
		if v.AsString() != StageVisual {
			continue
		}
		if dp.Count != 2 {
			t.Errorf("sample count = %d, want 2", dp.Count)
		}
		if dp.Sum != 2 {
			t.Errorf("sum = %v, want 2", dp.Sum)
		}
		return
	}
	t.Error("data point with stage=visual not found")
}

// sumFor returns the value of the counter data point carrying key=value.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestRecordDetect(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordDetect(ctx, "hand", true)
	m.RecordDetect(ctx, "hand", true)
	m.RecordDetect(ctx, "hand", false)
	m.RecordDetect(ctx, "face", false)

	rm := collect(t, reader)
	if got := sumFor(t, rm, "podium.detector.calls", "result", "present"); got != 2 {
		t.Errorf("present = %d, want 2", got)
	}
	if got := sumFor(t, rm, "podium.detector.calls", "result", "absent"); got != 2 {
		t.Errorf("absent = %d, want 2", got)
	}
	if got := sumFor(t, rm, "podium.detector.calls", "modality", "hand"); got != 3 {
		t.Errorf("hand = %d, want 3", got)
	}
}

func TestCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordDetectorUnavailable(ctx, "pose")
	m.RecordUnknown(ctx, "gesture")
	m.RecordUnknown(ctx, "gesture")
	m.RecordUnknown(ctx, "monotone")
	m.FramesSampled.Add(ctx, 50)

	rm := collect(t, reader)

	checks := []struct {
		name, key, value string
		want             int64
	}{
		{"podium.detector.unavailable", "modality", "pose", 1},
		{"podium.aggregate.unknown", "aggregate", "gesture", 2},
		{"podium.aggregate.unknown", "aggregate", "monotone", 1},
	}
	for _, tc := range checks {
		if got := sumFor(t, rm, tc.name, tc.key, tc.value); got != tc.want {
			t.Errorf("%s{%s=%s} = %d, want %d", tc.name, tc.key, tc.value, got, tc.want)
		}
	}

	met := findMetric(rm, "podium.frames.sampled")
	if met == nil {
		t.Fatal("frames metric not found")
	}
	if sum := met.Data.(metricdata.Sum[int64]); len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 50 {
		t.Errorf("frames sampled = %+v, want 50", sum.DataPoints)
	}
}

func TestActiveAnalyses(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveAnalyses.Add(ctx, 1)
	m.ActiveAnalyses.Add(ctx, 1)
	m.ActiveAnalyses.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "podium.active_analyses")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 1 {
		t.Errorf("active analyses = %+v, want 1", sum.DataPoints)
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.HTTPRequestDuration.Record(ctx, 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("path", "/healthz"),
		),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "podium.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}

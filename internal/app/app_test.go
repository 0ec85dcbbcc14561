package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/podium/internal/analysis"
	"github.com/MrWong99/podium/internal/app"
	"github.com/MrWong99/podium/internal/config"
	"github.com/MrWong99/podium/internal/observe"
	"github.com/MrWong99/podium/pkg/landmark"
	"github.com/MrWong99/podium/pkg/landmark/mock"
	"github.com/MrWong99/podium/pkg/provider/stt"
	sttmock "github.com/MrWong99/podium/pkg/provider/stt/mock"
)

// closingSTT is a transcriber that records Close.
type closingSTT struct {
	sttmock.Provider
	mu     sync.Mutex
	closed int
}

func (c *closingSTT) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func testMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func testRegistry(hand *mock.Detector) *config.Registry {
	reg := config.NewRegistry()
	reg.RegisterDetector("stub", func(s config.DetectorSpec) (landmark.Detector, error) {
		if s.Modality != landmark.Hand {
			return nil, errors.New("stub only serves hands")
		}
		return hand, nil
	})
	return reg
}

func TestBuildProviders(t *testing.T) {
	t.Parallel()

	hand := &mock.Detector{Mod: landmark.Hand, Live: true}
	cfg := config.Default()
	cfg.Detectors.Hand.Name = "stub"
	cfg.Detectors.Pose.Name = config.DetectorNone

	p, err := app.BuildProviders(cfg, testRegistry(hand), func(string) string { return "" })
	if err != nil {
		t.Fatalf("BuildProviders: %v", err)
	}
	if p.Detectors.Hand != hand {
		t.Error("hand detector is not the registered instance")
	}
	if p.Detectors.Face.Available() {
		t.Error("face detector available without a registered onnx backend")
	}
	if reason := landmark.Reason(p.Detectors.Face); reason == "" {
		t.Error("face detector has no unavailability reason")
	}
	if got := landmark.Reason(p.Detectors.Pose); got != "disabled in config" {
		t.Errorf("pose reason = %q, want disabled in config", got)
	}
	if p.Transcriber != nil {
		t.Error("transcriber created without configuration")
	}
}

func TestBuildProviders_TranscriberErrors(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Detectors.Hand.Name = config.DetectorNone
	cfg.Detectors.Face.Name = config.DetectorNone
	cfg.Detectors.Pose.Name = config.DetectorNone
	cfg.Transcriber = config.ProviderEntry{Name: "whisper", BaseURL: "http://localhost:1"}

	_, err := app.BuildProviders(cfg, config.NewRegistry(), nil)
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}

	reg := config.NewRegistry()
	want := &sttmock.Provider{}
	reg.RegisterTranscriber("whisper", func(config.ProviderEntry) (stt.Provider, error) { return want, nil })
	p, err := app.BuildProviders(cfg, reg, nil)
	if err != nil {
		t.Fatalf("BuildProviders: %v", err)
	}
	if p.Transcriber != want {
		t.Error("transcriber is not the registered instance")
	}
}

func TestBuildProviders_TranscriberErrorClosesDetectors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		fallbacks []config.ProviderEntry
		wantErr   error
	}{
		{name: "primary", wantErr: config.ErrProviderNotRegistered},
		{
			name:      "fallback",
			fallbacks: []config.ProviderEntry{{Name: "missing"}},
			wantErr:   config.ErrProviderNotRegistered,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			hand := &mock.Detector{Mod: landmark.Hand, Live: true}
			cfg := config.Default()
			cfg.Detectors.Hand.Name = "stub"
			cfg.Detectors.Face.Name = config.DetectorNone
			cfg.Detectors.Pose.Name = config.DetectorNone
			cfg.TranscriberFallbacks = tc.fallbacks

			reg := testRegistry(hand)
			primary := &closingSTT{}
			if len(tc.fallbacks) > 0 {
				cfg.Transcriber = config.ProviderEntry{Name: "primary"}
				reg.RegisterTranscriber("primary", func(config.ProviderEntry) (stt.Provider, error) { return primary, nil })
			} else {
				cfg.Transcriber = config.ProviderEntry{Name: "unregistered"}
			}

			p, err := app.BuildProviders(cfg, reg, func(string) string { return "" })
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if p != nil {
				t.Error("providers returned alongside an error")
			}
			if hand.CloseCallCount != 1 {
				t.Errorf("hand detector closed %d times, want 1", hand.CloseCallCount)
			}
			if len(tc.fallbacks) > 0 && primary.closed != 1 {
				t.Errorf("primary transcriber closed %d times, want 1", primary.closed)
			}
		})
	}
}

func TestBuildProviders_TranscriberFallbacks(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Detectors.Hand.Name = config.DetectorNone
	cfg.Detectors.Face.Name = config.DetectorNone
	cfg.Detectors.Pose.Name = config.DetectorNone
	cfg.Transcriber = config.ProviderEntry{Name: "down"}
	cfg.TranscriberFallbacks = []config.ProviderEntry{{Name: "up"}}

	down := &sttmock.Provider{Err: errors.New("connection refused")}
	up := &sttmock.Provider{Result: stt.Transcript{Text: "Hello there."}}
	reg := config.NewRegistry()
	reg.RegisterTranscriber("down", func(config.ProviderEntry) (stt.Provider, error) { return down, nil })
	reg.RegisterTranscriber("up", func(config.ProviderEntry) (stt.Provider, error) { return up, nil })

	p, err := app.BuildProviders(cfg, reg, nil)
	if err != nil {
		t.Fatalf("BuildProviders: %v", err)
	}
	tr, err := p.Transcriber.Transcribe(context.Background(), make([]float32, 16), 16000)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "Hello there." {
		t.Errorf("Text = %q, want the fallback transcript", tr.Text)
	}
	if down.Calls() != 1 || up.Calls() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", down.Calls(), up.Calls())
	}

	cfg.TranscriberFallbacks = []config.ProviderEntry{{Name: "missing"}}
	if _, err := app.BuildProviders(cfg, reg, nil); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("unregistered fallback err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestNew_RecordsUnavailableDetectors(t *testing.T) {
	t.Parallel()

	m, reader := testMetrics(t)
	providers := &app.Providers{Detectors: landmark.Detectors{
		Hand: &mock.Detector{Mod: landmark.Hand, Live: true},
		Face: landmark.Unavailable(landmark.Face, "model not found"),
	}}
	if _, err := app.New(context.Background(), config.Default(), providers, app.WithMetrics(m)); err != nil {
		t.Fatalf("New: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "podium.detector.unavailable" {
				continue
			}
			for _, dp := range met.Data.(metricdata.Sum[int64]).DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key("modality"))
				got[v.AsString()] += dp.Value
			}
		}
	}
	if got["face"] != 1 || got["pose"] != 1 || got["hand"] != 0 {
		t.Errorf("detector.unavailable = %v, want face=1 pose=1", got)
	}
}

func TestNew_NilConfig(t *testing.T) {
	t.Parallel()
	if _, err := app.New(context.Background(), nil, nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	m, _ := testMetrics(t)
	a, err := app.New(context.Background(), config.Default(), nil, app.WithMetrics(m))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var names []string
	for _, c := range a.Readiness() {
		names = append(names, c.Name)
	}
	want := []string{"ffmpeg", "ffprobe", "detectors"}
	if len(names) != len(want) {
		t.Fatalf("checkers = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("checker[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	if err := a.Readiness()[2].Check(context.Background()); err == nil {
		t.Error("detectors check passed without any detector")
	}
}

func TestRun_EmitsInInputOrder(t *testing.T) {
	t.Parallel()

	m, _ := testMetrics(t)
	a, err := app.New(context.Background(), config.Default(), nil, app.WithMetrics(m))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	paths := []string{"/nonexistent/a.mp4", "", "/nonexistent/c.mp4"}

	var got []app.Result
	if err := a.Run(context.Background(), paths, analysis.FileOptions{}, 2, func(r app.Result) {
		got = append(got, r)
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("emitted %d results, want 3", len(got))
	}
	for i := range paths {
		if got[i].Path != paths[i] {
			t.Errorf("result[%d].Path = %q, want %q", i, got[i].Path, paths[i])
		}
	}
	if !errors.Is(got[1].Err, analysis.ErrEmptyPath) {
		t.Errorf("empty path err = %v, want ErrEmptyPath", got[1].Err)
	}
	for _, r := range []app.Result{got[0], got[2]} {
		if r.Err != nil {
			t.Errorf("%s: unexpected error %v", r.Path, r.Err)
		}
		if len(r.Record.Notes) == 0 {
			t.Errorf("%s: expected degradation notes", r.Path)
		}
	}
}

func TestShutdown_ClosesProviders(t *testing.T) {
	t.Parallel()

	m, _ := testMetrics(t)
	hand := &mock.Detector{Mod: landmark.Hand, Live: true}
	tr := &closingSTT{}
	a, err := app.New(context.Background(), config.Default(),
		&app.Providers{Detectors: landmark.Detectors{Hand: hand}, Transcriber: tr},
		app.WithMetrics(m))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if hand.CloseCallCount != 1 {
		t.Errorf("detector closed %d times, want 1", hand.CloseCallCount)
	}
	if tr.closed != 1 {
		t.Errorf("transcriber closed %d times, want 1", tr.closed)
	}
}

func TestConcurrency(t *testing.T) {
	t.Parallel()
	if n := app.Concurrency(); n < 1 {
		t.Errorf("Concurrency() = %d, want >= 1", n)
	}
}

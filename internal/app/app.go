// Package app wires the podium subsystems into a running application.
//
// The App struct owns the full lifecycle: [BuildProviders] turns the config
// into loaded detectors and an optional transcriber through the registry,
// [New] assembles the analyzer around them, [App.Run] analyses a batch of
// files, and [App.Shutdown] releases the models.
//
// Detectors are loaded exactly once per process and shared by every
// concurrent analysis.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/podium/internal/analysis"
	"github.com/MrWong99/podium/internal/config"
	"github.com/MrWong99/podium/internal/health"
	"github.com/MrWong99/podium/internal/nonverbal"
	"github.com/MrWong99/podium/internal/observe"
	"github.com/MrWong99/podium/internal/resilience"
	"github.com/MrWong99/podium/internal/speech"
	"github.com/MrWong99/podium/pkg/landmark"
	"github.com/MrWong99/podium/pkg/provider/stt"
	"github.com/MrWong99/podium/pkg/provider/vad"
)

// Providers holds the loaded collaborators. A nil Transcriber disables
// transcription. Populated by [BuildProviders] or injected by tests.
type Providers struct {
	Detectors   landmark.Detectors
	Transcriber stt.Provider
}

// BuildProviders creates one detector per modality and the configured
// transcriber, chained with its fallbacks when any are configured. A detector
// that cannot be created becomes [landmark.Unavailable] with a logged warning;
// only a broken transcriber configuration is an error, in which case the
// detectors already loaded are closed again. getenv is consulted for legacy
// model paths when detectors.legacy_env is set.
func BuildProviders(cfg *config.Config, reg *config.Registry, getenv func(string) string) (*Providers, error) {
	p := &Providers{}
	set := func(m landmark.Modality, d landmark.Detector) {
		switch m {
		case landmark.Hand:
			p.Detectors.Hand = d
		case landmark.Face:
			p.Detectors.Face = d
		case landmark.Pose:
			p.Detectors.Pose = d
		}
	}

	for _, m := range []landmark.Modality{landmark.Hand, landmark.Face, landmark.Pose} {
		entry := cfg.Detectors.Entry(m)
		backend := entry.Backend()
		if backend == config.DetectorNone {
			set(m, landmark.Unavailable(m, "disabled in config"))
			continue
		}
		spec := config.DetectorSpec{
			Modality:       m,
			ModelPath:      cfg.Detectors.ModelPath(m, getenv),
			RuntimeLibrary: cfg.Detectors.RuntimeLibrary,
			Options:        entry.Options,
		}
		det, err := reg.CreateDetector(backend, spec)
		if err != nil {
			slog.Warn("detector unavailable", "modality", m, "backend", backend, "err", err)
			det = landmark.Unavailable(m, err.Error())
		}
		set(m, det)
	}

	if cfg.Transcriber.Name == "" {
		return p, nil
	}
	tr, err := reg.CreateTranscriber(cfg.Transcriber)
	if err != nil {
		_ = p.Detectors.Close()
		return nil, fmt.Errorf("app: create transcriber %q: %w", cfg.Transcriber.Name, err)
	}
	if len(cfg.TranscriberFallbacks) == 0 {
		p.Transcriber = tr
		return p, nil
	}
	chain := resilience.NewTranscriber(cfg.Transcriber.Name, tr, resilience.BreakerConfig{})
	for i, fb := range cfg.TranscriberFallbacks {
		ftr, err := reg.CreateTranscriber(fb)
		if err != nil {
			_ = chain.Close()
			_ = p.Detectors.Close()
			return nil, fmt.Errorf("app: create transcriber fallback %d %q: %w", i, fb.Name, err)
		}
		chain.Add(fmt.Sprintf("%s#%d", fb.Name, i+1), ftr)
	}
	p.Transcriber = chain
	return p, nil
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	vad       vad.Engine
	analyzer  *analysis.Analyzer

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics injects metric instruments instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithVAD injects the voice activity engine used when no transcript exists.
func WithVAD(e vad.Engine) Option {
	return func(a *App) { a.vad = e }
}

// New assembles an App around providers. Ownership of the providers passes
// to the App; Shutdown closes them.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Detectors ─────────────────────────────────────────────────────
	for _, m := range []landmark.Modality{landmark.Hand, landmark.Face, landmark.Pose} {
		d := providers.Detectors.Get(m)
		if d.Available() {
			slog.Info("detector loaded", "modality", m)
			continue
		}
		slog.Warn("detector unavailable; dependent scores will be unknown", "modality", m, "reason", landmark.Reason(d))
		a.metrics.RecordDetectorUnavailable(ctx, string(m))
	}
	a.closers = append(a.closers, providers.Detectors.Close)

	// ── 2. Transcriber ───────────────────────────────────────────────────
	if c, ok := providers.Transcriber.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	// ── 3. Analyzer ──────────────────────────────────────────────────────
	an := cfg.Analysis
	speechOpts := []speech.Option{speech.WithPace(cfg.Calibration.Pace)}
	if len(an.Fillers) > 0 {
		speechOpts = append(speechOpts, speech.WithFillers(an.Fillers))
	}
	aopts := []analysis.Option{
		analysis.WithCalibration(cfg.Calibration),
		analysis.WithMetrics(a.metrics),
		analysis.WithSpeech(speech.New(speechOpts...)),
		analysis.WithBinaries(an.FFmpegPath, an.FFprobePath),
		analysis.WithSampleRate(an.SampleRate),
	}
	if an.PostureSource != "" {
		aopts = append(aopts, analysis.WithPostureSource(nonverbal.PostureSource(an.PostureSource)))
	}
	if providers.Transcriber != nil {
		aopts = append(aopts, analysis.WithTranscriber(providers.Transcriber))
	}
	if a.vad != nil {
		aopts = append(aopts, analysis.WithVAD(a.vad))
	}
	a.analyzer = analysis.New(providers.Detectors, aopts...)

	return a, nil
}

// Analyzer returns the shared analyzer.
func (a *App) Analyzer() *analysis.Analyzer { return a.analyzer }

// Readiness returns the checks served on /readyz.
func (a *App) Readiness() []health.Checker {
	return []health.Checker{
		health.Binary("ffmpeg", a.cfg.Analysis.FFmpegPath),
		health.Binary("ffprobe", a.cfg.Analysis.FFprobePath),
		health.Detectors(a.providers.Detectors),
	}
}

// ─── Batch ───────────────────────────────────────────────────────────────────

// Result is the outcome for one file of a batch.
type Result struct {
	Path   string
	Record analysis.Record
	Err    error
}

// Run analyses paths with at most limit analyses in flight and calls emit
// once per file in input order. A failing file does not stop the batch; its
// error is carried in the Result. Run returns early only when ctx is
// cancelled.
func (a *App) Run(ctx context.Context, paths []string, opts analysis.FileOptions, limit int, emit func(Result)) error {
	if limit < 1 {
		limit = 1
	}
	results := make([]Result, len(paths))
	ran := make([]bool, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			rec, err := a.analyzer.AnalyzeFile(gctx, path, opts)
			if err != nil {
				slog.Warn("analysis failed", "path", path, "err", err)
			}
			results[i] = Result{Path: path, Record: rec, Err: err}
			ran[i] = true
			slog.Debug("file done", "path", path, "elapsed", time.Since(start).Round(time.Millisecond))
			return nil
		})
	}
	err := g.Wait()
	for i, r := range results {
		if ran[i] {
			emit(r)
		}
	}
	return err
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Debug("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
	})
	return shutdownErr
}

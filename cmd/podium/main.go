// Command podium scores the delivery of recorded presentations.
//
// Usage:
//
//	podium [flags] <video>...
//
// Each file is analysed for gesture energy, camera-facing stability, posture,
// pitch variation, volume consistency and pause quality. One JSON record per
// file is written to stdout, in argument order.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/podium/internal/analysis"
	"github.com/MrWong99/podium/internal/app"
	"github.com/MrWong99/podium/internal/config"
	"github.com/MrWong99/podium/internal/health"
	"github.com/MrWong99/podium/internal/observe"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

// output is the JSON line written per file.
type output struct {
	File  string `json:"file"`
	Error string `json:"error,omitempty"`
	*analysis.Record
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (optional)")
	fps := flag.Float64("fps", 0, "visual sampling rate in frames per second (overrides analysis.target_fps)")
	transcribe := flag.Bool("transcribe", false, "transcribe speech for word-timed pauses and speech metrics")
	withReport := flag.Bool("report", false, "add timeline markers and summary feedback")
	metricsAddr := flag.String("metrics-addr", "", "serve /metrics, /healthz and /readyz on this address (overrides telemetry.metrics_addr)")
	workers := flag.Int("workers", 0, "concurrent analyses (0 sizes from CPU and memory)")
	pretty := flag.Bool("pretty", false, "indent JSON output")
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: podium [flags] <video>...")
		flag.PrintDefaults()
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "podium: config file %q not found\n", *configPath)
			} else {
				fmt.Fprintf(os.Stderr, "podium: %v\n", err)
			}
			return 1
		}
	}
	if *fps < 0 {
		fmt.Fprintf(os.Stderr, "podium: -fps must be positive, got %v\n", *fps)
		return 2
	}
	if *fps > 0 {
		cfg.Analysis.TargetFPS = *fps
	}
	if *metricsAddr != "" {
		cfg.Telemetry.MetricsAddr = *metricsAddr
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Debug("podium starting",
		"config", *configPath,
		"files", len(paths),
		"target_fps", cfg.Analysis.TargetFPS,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{Version: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := app.BuildProviders(cfg, reg, os.Getenv)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Shutdown(sctx); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
	}()

	// ── Metrics listener (optional) ──────────────────────────────────────────
	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		srv := newMetricsServer(addr, prometheus.DefaultGatherer, observe.DefaultMetrics(),
			health.New(application.Readiness()...))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics listener error", "addr", addr, "err", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		slog.Info("metrics listener started", "addr", addr)
	}

	// ── Analyse ───────────────────────────────────────────────────────────────
	limit := *workers
	if limit <= 0 {
		limit = app.Concurrency()
	}
	opts := analysis.FileOptions{
		TargetFPS:  cfg.Analysis.TargetFPS,
		Transcribe: *transcribe,
		Report:     *withReport,
	}
	if *transcribe && providers.Transcriber == nil {
		slog.Warn("-transcribe requested but no transcriber is configured")
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	failed := 0
	err = application.Run(ctx, paths, opts, limit, func(r app.Result) {
		out := output{File: r.Path}
		if r.Err != nil {
			failed++
			out.Error = r.Err.Error()
		} else {
			rec := r.Record
			out.Record = &rec
		}
		if err := enc.Encode(out); err != nil {
			slog.Error("write result", "path", r.Path, "err", err)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	if ctx.Err() != nil {
		slog.Warn("interrupted")
		return 130
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// newMetricsServer serves /metrics from g plus the health endpoints of h,
// with every request recorded in m.
func newMetricsServer(addr string, g prometheus.Gatherer, m *observe.Metrics, h *health.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET "+observe.RouteMetrics, promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	h.Register(mux)
	return &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(m)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ── Logging ───────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

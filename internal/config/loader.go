package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/podium/pkg/landmark"
)

// ValidBackendNames lists known backend names per kind.
// Used by [Validate] to warn about unrecognised names.
var ValidBackendNames = map[string][]string{
	"detector":    {DetectorONNX, DetectorNone},
	"transcriber": {"whisper", "whisper-native", "deepgram"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	for _, m := range []landmark.Modality{landmark.Hand, landmark.Face, landmark.Pose} {
		validateBackendName("detector", cfg.Detectors.Entry(m).Backend())
	}

	a := cfg.Analysis
	if a.TargetFPS < 0 {
		errs = append(errs, fmt.Errorf("analysis.target_fps %v must not be negative", a.TargetFPS))
	}
	switch a.PostureSource {
	case "", "pose", "face", "auto":
	default:
		errs = append(errs, fmt.Errorf("analysis.posture_source %q is invalid; valid values: pose, face, auto", a.PostureSource))
	}
	if a.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("analysis.sample_rate %d must not be negative", a.SampleRate))
	} else if a.SampleRate > 0 && a.SampleRate < 8000 {
		slog.Warn("analysis.sample_rate is below 8 kHz; pitch estimation will be unreliable", "sample_rate", a.SampleRate)
	}

	if err := cfg.Calibration.Validate(); err != nil {
		errs = append(errs, err)
	}

	if cfg.Transcriber.Name != "" {
		errs = append(errs, validateTranscriber("transcriber", cfg.Transcriber)...)
	}
	for i, fb := range cfg.TranscriberFallbacks {
		path := fmt.Sprintf("transcriber_fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", path))
			continue
		}
		errs = append(errs, validateTranscriber(path, fb)...)
	}
	if len(cfg.TranscriberFallbacks) > 0 && cfg.Transcriber.Name == "" {
		slog.Warn("transcriber_fallbacks set without a primary transcriber; fallbacks are ignored")
	}

	return errors.Join(errs...)
}

func validateTranscriber(path string, t ProviderEntry) []error {
	validateBackendName("transcriber", t.Name)
	var errs []error
	switch t.Name {
	case "whisper":
		if t.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base_url is required for whisper", path))
		}
	case "whisper-native":
		if t.Model == "" {
			if _, ok := t.Options["model_path"]; !ok {
				errs = append(errs, fmt.Errorf("%s.model is required for whisper-native", path))
			}
		}
	case "deepgram":
		if t.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api_key is required for deepgram", path))
		}
	}
	return errs
}

// validateBackendName logs a warning if name is not found in the
// [ValidBackendNames] list for kind.
func validateBackendName(kind, name string) {
	known, ok := ValidBackendNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown backend name; may be a typo or third-party backend",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

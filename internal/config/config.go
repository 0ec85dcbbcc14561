// Package config provides the configuration schema, loader, and backend
// registry for podium.
package config

import (
	"github.com/MrWong99/podium/internal/calibration"
	"github.com/MrWong99/podium/pkg/landmark"
	"github.com/MrWong99/podium/pkg/video"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
// Fields omitted from the file keep the values from [Default].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Detectors   DetectorsConfig   `yaml:"detectors"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Calibration calibration.Table `yaml:"calibration"`
	Transcriber ProviderEntry     `yaml:"transcriber"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`

	// TranscriberFallbacks are tried in order when the primary transcriber
	// fails. Ignored when no primary is configured.
	TranscriberFallbacks []ProviderEntry `yaml:"transcriber_fallbacks"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// DetectorsConfig selects and locates the landmark models.
type DetectorsConfig struct {
	// LegacyEnv makes the NON_VERBAL_*_MODEL_PATH environment variables
	// override model_path, for deployments that still set them.
	LegacyEnv bool `yaml:"legacy_env"`

	// RuntimeLibrary is the onnxruntime shared library. Empty uses the
	// platform default.
	RuntimeLibrary string `yaml:"runtime_library"`

	// ModelDir is the base directory for the bundled model candidates.
	// Defaults to the working directory.
	ModelDir string `yaml:"model_dir"`

	Hand DetectorEntry `yaml:"hand"`
	Face DetectorEntry `yaml:"face"`
	Pose DetectorEntry `yaml:"pose"`
}

// Entry returns the entry for m.
func (d DetectorsConfig) Entry(m landmark.Modality) DetectorEntry {
	switch m {
	case landmark.Hand:
		return d.Hand
	case landmark.Face:
		return d.Face
	case landmark.Pose:
		return d.Pose
	}
	return DetectorEntry{}
}

// ModelPath resolves the model for m. Precedence: the legacy environment
// variable (only with legacy_env), then model_path, then the configured
// candidates, then the bundled locations under model_dir. The first path that
// exists wins; "" means no model was found. getenv is typically os.Getenv.
func (d DetectorsConfig) ModelPath(m landmark.Modality, getenv func(string) string) string {
	e := d.Entry(m)
	override := e.ModelPath
	var candidates []string
	if d.LegacyEnv && getenv != nil {
		if v := getenv(landmark.LegacyEnv[m]); v != "" {
			override = v
			candidates = append(candidates, e.ModelPath)
		}
	}
	candidates = append(candidates, e.Candidates...)
	candidates = append(candidates, landmark.DefaultCandidates(d.ModelDir, m)...)
	return landmark.ResolveModelPath(override, candidates)
}

// DetectorEntry configures one modality.
type DetectorEntry struct {
	// Name selects the registered backend ("onnx" or "none"). Empty means
	// "onnx".
	Name string `yaml:"name"`

	// ModelPath is the explicit model file.
	ModelPath string `yaml:"model_path"`

	// Candidates are additional locations tried in order when ModelPath does
	// not exist.
	Candidates []string `yaml:"candidates"`

	// Options holds backend-specific tensor settings (input_size, layout,
	// landmarks, stride, min_presence, ...).
	Options map[string]any `yaml:"options"`
}

// Backend returns the effective backend name.
func (e DetectorEntry) Backend() string {
	if e.Name == "" {
		return DetectorONNX
	}
	return e.Name
}

// Detector backend names.
const (
	DetectorONNX = "onnx"
	DetectorNone = "none"
)

// AnalysisConfig holds pipeline settings.
type AnalysisConfig struct {
	// TargetFPS is the visual sampling rate.
	TargetFPS float64 `yaml:"target_fps"`

	// PostureSource is "pose", "face" or "auto". With "pose" a missing pose
	// model leaves posture unknown; "auto" falls back to the face centre.
	PostureSource string `yaml:"posture_source"`

	// SampleRate is the audio extraction rate in Hz.
	SampleRate int `yaml:"sample_rate"`

	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`

	// Fillers replaces the filler-word vocabulary when non-empty.
	Fillers []string `yaml:"fillers"`
}

// ProviderEntry configures a pluggable backend such as the transcriber.
type ProviderEntry struct {
	// Name selects the registered implementation ("whisper",
	// "whisper-native", "deepgram"). Empty disables the component.
	Name string `yaml:"name"`

	// APIKey authenticates hosted backends.
	APIKey string `yaml:"api_key"`

	// BaseURL is the server endpoint for HTTP backends.
	BaseURL string `yaml:"base_url"`

	// Model selects a model name or, for native backends, a model file.
	Model string `yaml:"model"`

	// Options holds implementation-specific values.
	Options map[string]any `yaml:"options"`
}

// TelemetryConfig controls the metrics listener.
type TelemetryConfig struct {
	// MetricsAddr is the listen address for /metrics, /healthz and /readyz.
	// Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration used for omitted fields.
func Default() *Config {
	return &Config{
		Server: ServerConfig{LogLevel: LogInfo},
		Analysis: AnalysisConfig{
			TargetFPS:     video.DefaultTargetFPS,
			PostureSource: "pose",
			SampleRate:    16000,
			FFmpegPath:    "ffmpeg",
			FFprobePath:   "ffprobe",
		},
		Calibration: calibration.Default(),
	}
}

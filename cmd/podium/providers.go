package main

import (
	"github.com/MrWong99/podium/internal/config"
	"github.com/MrWong99/podium/pkg/landmark"
	"github.com/MrWong99/podium/pkg/landmark/onnx"
	"github.com/MrWong99/podium/pkg/provider/stt"
	"github.com/MrWong99/podium/pkg/provider/stt/deepgram"
	"github.com/MrWong99/podium/pkg/provider/stt/whisper"
)

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in backend factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Detectors ─────────────────────────────────────────────────────────────

	reg.RegisterDetector(config.DetectorONNX, func(spec config.DetectorSpec) (landmark.Detector, error) {
		return onnx.New(spec.Modality, spec.ModelPath, onnxOptions(spec)), nil
	})

	// ── Transcribers ──────────────────────────────────────────────────────────

	reg.RegisterTranscriber("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterTranscriber("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if n := optInt(entry.Options, "threads"); n > 0 {
			opts = append(opts, whisper.WithNativeThreads(uint(n)))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterTranscriber("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		if keep, ok := entry.Options["filler_words"].(bool); ok {
			opts = append(opts, deepgram.WithFillerWords(keep))
		}
		return deepgram.New(entry.APIKey, opts...)
	})
}

// onnxOptions starts from the model family defaults for the modality and
// applies any overrides from the entry options.
func onnxOptions(spec config.DetectorSpec) onnx.Options {
	o := onnx.DefaultOptions(spec.Modality)
	o.RuntimeLibrary = spec.RuntimeLibrary
	opts := spec.Options
	if v := optString(opts, "input_name"); v != "" {
		o.InputName = v
	}
	if v := optString(opts, "landmark_output"); v != "" {
		o.LandmarkOutput = v
	}
	if v := optString(opts, "score_output"); v != "" {
		o.ScoreOutput = v
	}
	if v := optString(opts, "layout"); v != "" {
		o.Layout = onnx.Layout(v)
	}
	if v := optInt(opts, "input_size"); v > 0 {
		o.InputSize = v
	}
	if v := optInt(opts, "landmarks"); v > 0 {
		o.Landmarks = v
	}
	if v := optInt(opts, "stride"); v > 0 {
		o.Stride = v
	}
	if v := optInt(opts, "threads"); v > 0 {
		o.Threads = v
	}
	if v, ok := optFloat(opts, "min_presence"); ok {
		o.MinPresence = v
	}
	if v, ok := opts["pixel_coordinates"].(bool); ok {
		o.PixelCoordinates = v
	}
	return o
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer value. YAML integers decode as int; floats with
// no fractional part are accepted too.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return 0
}

// optFloat extracts a numeric value as float64.
func optFloat(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

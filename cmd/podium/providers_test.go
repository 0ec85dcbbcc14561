package main

import (
	"testing"

	"github.com/MrWong99/podium/internal/config"
	"github.com/MrWong99/podium/pkg/landmark"
	"github.com/MrWong99/podium/pkg/landmark/onnx"
)

func TestOnnxOptions(t *testing.T) {
	t.Parallel()

	spec := config.DetectorSpec{
		Modality:       landmark.Pose,
		RuntimeLibrary: "/lib/libonnxruntime.so",
		Options: map[string]any{
			"layout":            "nchw",
			"input_size":        320,
			"min_presence":      0.7,
			"stride":            3.0,
			"pixel_coordinates": false,
			"score_output":      "presence",
		},
	}
	got := onnxOptions(spec)

	want := onnx.DefaultOptions(landmark.Pose)
	want.RuntimeLibrary = "/lib/libonnxruntime.so"
	want.Layout = onnx.NCHW
	want.InputSize = 320
	want.MinPresence = 0.7
	want.Stride = 3
	want.PixelCoordinates = false
	want.ScoreOutput = "presence"
	if got != want {
		t.Errorf("onnxOptions =\n%+v\nwant\n%+v", got, want)
	}
}

func TestOptHelpers(t *testing.T) {
	t.Parallel()

	opts := map[string]any{"s": "x", "i": 4, "f": 2.5, "whole": 3.0}
	if optString(opts, "s") != "x" || optString(opts, "i") != "" || optString(nil, "s") != "" {
		t.Error("optString mismatch")
	}
	if optInt(opts, "i") != 4 || optInt(opts, "whole") != 3 || optInt(opts, "f") != 0 {
		t.Error("optInt mismatch")
	}
	if v, ok := optFloat(opts, "i"); !ok || v != 4 {
		t.Errorf("optFloat(i) = %v, %v", v, ok)
	}
	if _, ok := optFloat(opts, "s"); ok {
		t.Error("optFloat accepted a string")
	}
}

func TestRegisterBuiltinProviders(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	det, err := reg.CreateDetector(config.DetectorONNX, config.DetectorSpec{Modality: landmark.Hand})
	if err != nil {
		t.Fatalf("CreateDetector: %v", err)
	}
	if det.Available() {
		t.Error("detector without a model path must be unavailable")
	}
	if _, err := reg.CreateTranscriber(config.ProviderEntry{Name: "whisper", BaseURL: "http://localhost:8080"}); err != nil {
		t.Errorf("CreateTranscriber(whisper): %v", err)
	}
	if _, err := reg.CreateTranscriber(config.ProviderEntry{Name: "deepgram", APIKey: "k"}); err != nil {
		t.Errorf("CreateTranscriber(deepgram): %v", err)
	}
	if _, err := reg.CreateTranscriber(config.ProviderEntry{Name: "deepgram"}); err == nil {
		t.Error("CreateTranscriber(deepgram) without api key: expected error")
	}
}

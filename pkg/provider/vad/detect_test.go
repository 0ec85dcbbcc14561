package vad_test

import (
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/podium/pkg/provider/vad"
	"github.com/MrWong99/podium/pkg/provider/vad/mock"
)

var cfg = vad.Config{SampleRate: 1000, FrameSizeMs: 10, SpeechThreshold: 0.5, SilenceThreshold: 0.3}

func events(types ...vad.VADEventType) []vad.VADEvent {
	out := make([]vad.VADEvent, len(types))
	for i, t := range types {
		out[i] = vad.VADEvent{Type: t}
	}
	return out
}

func TestDetect_Segments(t *testing.T) {
	t.Parallel()
	sess := &mock.Session{
		Events: events(
			vad.VADSilence,
			vad.VADSpeechStart, vad.VADSpeechContinue,
			vad.VADSpeechEnd, vad.VADSilence,
			vad.VADSpeechStart,
		),
		EventResult: vad.VADEvent{Type: vad.VADSpeechContinue},
	}
	eng := &mock.Engine{Session: sess}

	// 8 full frames of 10 samples plus a partial frame that must be ignored.
	segs, err := vad.Detect(eng, cfg, make([]float32, 85))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	want := []vad.Segment{
		{Start: 10 * time.Millisecond, End: 30 * time.Millisecond},
		{Start: 50 * time.Millisecond, End: 80 * time.Millisecond},
	}
	if len(segs) != len(want) {
		t.Fatalf("got %d segments %v, want %v", len(segs), segs, want)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, segs[i], want[i])
		}
	}
	if n := len(sess.ProcessFrameCalls); n != 8 {
		t.Errorf("ProcessFrame called %d times, want 8", n)
	}
	if len(sess.ProcessFrameCalls[0].Frame) != 10 {
		t.Errorf("frame length = %d, want 10", len(sess.ProcessFrameCalls[0].Frame))
	}
	if sess.CloseCallCount != 1 {
		t.Errorf("CloseCallCount = %d, want 1", sess.CloseCallCount)
	}
	if got := eng.NewSessionCalls[0].Cfg; got != cfg {
		t.Errorf("NewSession cfg = %+v, want %+v", got, cfg)
	}
}

func TestDetect_Errors(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("boom")

	if _, err := vad.Detect(&mock.Engine{NewSessionErr: sentinel}, cfg, make([]float32, 10)); !errors.Is(err, sentinel) {
		t.Errorf("NewSession failure: err = %v", err)
	}

	sess := &mock.Session{ProcessFrameErr: sentinel}
	if _, err := vad.Detect(&mock.Engine{Session: sess}, cfg, make([]float32, 10)); !errors.Is(err, sentinel) {
		t.Errorf("ProcessFrame failure: err = %v", err)
	}

	if _, err := vad.Detect(&mock.Engine{}, vad.Config{}, nil); err == nil {
		t.Error("invalid config accepted")
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     vad.Config
		wantErr bool
	}{
		{name: "valid", cfg: cfg},
		{name: "no rate", cfg: vad.Config{FrameSizeMs: 20}, wantErr: true},
		{name: "no frame", cfg: vad.Config{SampleRate: 16000}, wantErr: true},
		{name: "sub-sample frame", cfg: vad.Config{SampleRate: 100, FrameSizeMs: 5}, wantErr: true},
		{name: "inverted thresholds", cfg: vad.Config{SampleRate: 16000, FrameSizeMs: 20, SpeechThreshold: 0.1, SilenceThreshold: 0.2}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if err := tc.cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

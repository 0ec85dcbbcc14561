package energy_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/MrWong99/podium/pkg/provider/vad"
	"github.com/MrWong99/podium/pkg/provider/vad/energy"
)

const sr = 16000

var cfg = vad.Config{SampleRate: sr, FrameSizeMs: 20}

// toneBursts renders alternating tone and silence sections of the given
// lengths in seconds, starting with silence.
func toneBursts(sections ...float64) []float32 {
	var out []float32
	for i, secs := range sections {
		n := int(secs * sr)
		for j := range n {
			var v float32
			if i%2 == 1 {
				v = float32(0.2 * math.Sin(2*math.Pi*180*float64(j)/sr))
			}
			out = append(out, v)
		}
	}
	return out
}

func TestEngine_SegmentsToneBursts(t *testing.T) {
	t.Parallel()
	samples := toneBursts(0.5, 1.0, 0.6, 0.8, 0.4)
	segs, err := vad.Detect(energy.New(), cfg, samples)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments %v, want 2", len(segs), segs)
	}
	near := func(got time.Duration, want float64) bool {
		return math.Abs(got.Seconds()-want) <= 0.05
	}
	if !near(segs[0].Start, 0.5) || !near(segs[0].End, 1.5) {
		t.Errorf("segment 0 = %v..%v, want ~0.5..1.5", segs[0].Start, segs[0].End)
	}
	if !near(segs[1].Start, 2.1) || !near(segs[1].End, 2.9) {
		t.Errorf("segment 1 = %v..%v, want ~2.1..2.9", segs[1].Start, segs[1].End)
	}
}

func TestEngine_SilenceHasNoSegments(t *testing.T) {
	t.Parallel()
	segs, err := vad.Detect(energy.New(), cfg, make([]float32, 5*sr))
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 0 {
		t.Errorf("silence produced segments %v", segs)
	}
}

func TestSession_Hysteresis(t *testing.T) {
	t.Parallel()
	sess, err := energy.New(energy.WithStartFrames(2), energy.WithHangoverFrames(2)).NewSession(cfg)
	if err != nil {
		t.Fatal(err)
	}
	loud := make([]float32, 320)
	quiet := make([]float32, 320)
	for i := range loud {
		loud[i] = 0.1
	}

	seq := []struct {
		frame []float32
		want  vad.VADEventType
	}{
		{loud, vad.VADSilence},
		{loud, vad.VADSpeechStart},
		{quiet, vad.VADSpeechContinue},
		{loud, vad.VADSpeechContinue},
		{quiet, vad.VADSpeechContinue},
		{quiet, vad.VADSpeechEnd},
		{quiet, vad.VADSilence},
	}
	for i, step := range seq {
		ev, err := sess.ProcessFrame(step.frame)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if ev.Type != step.want {
			t.Errorf("frame %d: type = %v, want %v", i, ev.Type, step.want)
		}
	}
}

func TestSession_Errors(t *testing.T) {
	t.Parallel()
	sess, err := energy.New().NewSession(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sess.ProcessFrame(make([]float32, 10)); !errors.Is(err, vad.ErrFrameSize) {
		t.Errorf("short frame err = %v, want ErrFrameSize", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.ProcessFrame(make([]float32, 320)); !errors.Is(err, vad.ErrClosed) {
		t.Errorf("closed session err = %v, want ErrClosed", err)
	}
	if _, err := energy.New().NewSession(vad.Config{}); err == nil {
		t.Error("NewSession accepted empty config")
	}
}

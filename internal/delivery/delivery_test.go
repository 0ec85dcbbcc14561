package delivery_test

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/MrWong99/podium/internal/calibration"
	"github.com/MrWong99/podium/internal/delivery"
	"github.com/MrWong99/podium/pkg/provider/stt"
	"github.com/MrWong99/podium/pkg/provider/vad"
	vadmock "github.com/MrWong99/podium/pkg/provider/vad/mock"
)

const sr = 16000

// tone returns seconds of a sine at hz with amplitude amp.
func tone(hz, amp, seconds float64) []float32 {
	n := int(seconds * sr)
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*hz*float64(i)/sr))
	}
	return out
}

// chirp sweeps linearly from f0 to f1 Hz with a continuous phase.
func chirp(f0, f1, amp, seconds float64) []float32 {
	n := int(seconds * sr)
	out := make([]float32, n)
	var phase float64
	for i := range out {
		f := f0 + (f1-f0)*float64(i)/float64(n)
		phase += 2 * math.Pi * f / sr
		out[i] = float32(amp * math.Sin(phase))
	}
	return out
}

func word(text string, start, end float64) stt.Word {
	return stt.Word{
		Text:  text,
		Start: time.Duration(start * float64(time.Second)),
		End:   time.Duration(end * float64(time.Second)),
	}
}

func TestClassifyPitchVariation_Boundaries(t *testing.T) {
	t.Parallel()

	cal := calibration.Default().Pitch
	tests := []struct {
		std  float64
		want delivery.PitchLabel
	}{
		{0, delivery.PitchMonotone},
		{1.79, delivery.PitchMonotone},
		{1.8, delivery.PitchSomeVariation},
		{2.99, delivery.PitchSomeVariation},
		{3.0, delivery.PitchDynamic},
		{12, delivery.PitchDynamic},
	}
	for _, tc := range tests {
		for range 3 {
			if got := delivery.ClassifyPitchVariation(tc.std, cal); got != tc.want {
				t.Errorf("ClassifyPitchVariation(%v) = %q, want %q", tc.std, got, tc.want)
			}
		}
	}
}

func TestAnalyze_EmptyInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		samples []float32
		rate    int
	}{
		{"nil samples", nil, sr},
		{"empty samples", []float32{}, sr},
		{"zero rate", tone(150, 0.3, 1), 0},
		{"negative rate", tone(150, 0.3, 1), -8000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := delivery.Analyze(tc.samples, tc.rate)
			if !reflect.DeepEqual(got, delivery.Unknown()) {
				t.Errorf("Analyze = %+v, want Unknown()", got)
			}
		})
	}
}

func TestAnalyze_SilentClip(t *testing.T) {
	t.Parallel()

	res := delivery.Analyze(make([]float32, 5*sr), sr)

	if res.Monotone.Label != delivery.PitchUnknown {
		t.Errorf("Monotone.Label = %q, want unknown", res.Monotone.Label)
	}
	if res.Monotone.MeanPitchHz != nil || res.Monotone.IsMonotone {
		t.Errorf("Monotone = %+v, want null pitch and not monotone", res.Monotone)
	}
	switch res.Volume.ConsistencyLabel {
	case delivery.VolumeUnknown, delivery.VolumeTooQuiet:
	default:
		t.Errorf("Volume.ConsistencyLabel = %q, want unknown or too_quiet", res.Volume.ConsistencyLabel)
	}
	if res.Silence.PauseQuality != delivery.PauseUnknown {
		t.Errorf("Silence.PauseQuality = %q, want unknown", res.Silence.PauseQuality)
	}
	if res.Volume.TrailingOffExamples == nil || res.Silence.EffectiveExamples == nil || res.Silence.AwkwardExamples == nil {
		t.Error("example slices must be non-nil")
	}
}

func TestAnalyze_ShortClipLeavesPitchUnknown(t *testing.T) {
	t.Parallel()
	// A handful of voiced frames is below the reliability floor.
	res := delivery.Analyze(tone(150, 0.3, 0.1), sr)
	if res.Monotone.Label != delivery.PitchUnknown {
		t.Errorf("Monotone.Label = %q, want unknown", res.Monotone.Label)
	}
	if res.Monotone.VoicedFrames >= calibration.Default().Pitch.MinVoicedFrames {
		t.Errorf("VoicedFrames = %d, want below the floor", res.Monotone.VoicedFrames)
	}
}

func TestAnalyze_SteadyToneIsMonotone(t *testing.T) {
	t.Parallel()

	res := delivery.Analyze(tone(150, 0.3, 2), sr)

	m := res.Monotone
	if m.Label != delivery.PitchMonotone || !m.IsMonotone {
		t.Fatalf("Monotone = %+v, want monotone", m)
	}
	if m.MeanPitchHz == nil || math.Abs(*m.MeanPitchHz-150) > 3 {
		t.Errorf("MeanPitchHz = %v, want ~150", m.MeanPitchHz)
	}
	if m.PitchStdSemitones == nil || *m.PitchStdSemitones > 0.5 {
		t.Errorf("PitchStdSemitones = %v, want ~0", m.PitchStdSemitones)
	}
	if m.VoicedFrames < 80 {
		t.Errorf("VoicedFrames = %d, want most frames voiced", m.VoicedFrames)
	}

	v := res.Volume
	if v.ConsistencyLabel != delivery.VolumeConsistent {
		t.Errorf("Volume.ConsistencyLabel = %q, want consistent", v.ConsistencyLabel)
	}
	// A 0.3 sine has RMS 0.212, about -13.5 dBFS.
	if v.MeanDBFS == nil || math.Abs(*v.MeanDBFS+13.5) > 0.5 {
		t.Errorf("MeanDBFS = %v, want ~-13.5", v.MeanDBFS)
	}
}

func TestAnalyze_SweepIsDynamic(t *testing.T) {
	t.Parallel()
	res := delivery.Analyze(chirp(100, 250, 0.3, 3), sr)
	if res.Monotone.Label != delivery.PitchDynamic {
		t.Errorf("Monotone = %+v, want dynamic", res.Monotone)
	}
}

func TestAnalyze_QuietToneIsTooQuiet(t *testing.T) {
	t.Parallel()
	res := delivery.Analyze(tone(150, 0.01, 2), sr)
	if res.Volume.ConsistencyLabel != delivery.VolumeTooQuiet || !res.Volume.TooQuiet {
		t.Errorf("Volume = %+v, want too_quiet", res.Volume)
	}
}

func TestAnalyze_TrailingOff(t *testing.T) {
	t.Parallel()

	samples := append(tone(150, 0.5, 1.6), tone(150, 0.05, 0.4)...)
	words := []stt.Word{word("Hello", 0, 1.0), word("there.", 1.0, 2.0)}

	res := delivery.Analyze(samples, sr, delivery.WithWords(words))

	v := res.Volume
	if v.TrailingOffEvents != 1 {
		t.Fatalf("TrailingOffEvents = %d, want 1 (%+v)", v.TrailingOffEvents, v)
	}
	if v.TrailingOffRatio != 1 {
		t.Errorf("TrailingOffRatio = %v, want 1", v.TrailingOffRatio)
	}
	if v.ConsistencyLabel != delivery.VolumeInconsistent {
		t.Errorf("ConsistencyLabel = %q, want inconsistent", v.ConsistencyLabel)
	}
	ex := v.TrailingOffExamples[0]
	if ex.Start != 1.65 || ex.End != 2 {
		t.Errorf("example = %+v, want 1.65..2", ex)
	}
	if ex.Ratio >= calibration.Default().Volume.TrailingRatio {
		t.Errorf("ratio = %v, want below threshold", ex.Ratio)
	}
}

func TestAnalyze_PausesFromWords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		words     []stt.Word
		quality   delivery.PauseQuality
		effective int
		awkward   int
	}{
		{
			name:    "single word",
			words:   []stt.Word{word("Hi.", 0, 0.4)},
			quality: delivery.PauseUnknown,
		},
		{
			name:    "no gaps",
			words:   []stt.Word{word("one", 0, 0.3), word("two", 0.35, 0.6), word("three.", 0.7, 1.0)},
			quality: delivery.PauseUnknown,
		},
		{
			name:      "pause after sentence",
			words:     []stt.Word{word("We", 0, 0.2), word("start.", 0.2, 0.5), word("Then", 1.0, 1.3)},
			quality:   delivery.PauseEffective,
			effective: 1,
		},
		{
			name:      "long gap counts as boundary",
			words:     []stt.Word{word("first", 0, 0.4), word("second", 1.4, 1.8)},
			quality:   delivery.PauseEffective,
			effective: 1,
		},
		{
			name: "hesitation mid sentence",
			words: []stt.Word{
				word("We", 0, 0.2), word("start.", 0.2, 0.5), word("Then", 1.0, 1.3),
				word("um", 2.1, 2.3), word("done.", 2.4, 2.8),
			},
			quality:   delivery.PauseNeedsWork,
			effective: 1,
			awkward:   1,
		},
		{
			name: "overlong boundary pause",
			words: []stt.Word{
				word("One.", 0, 0.4), word("Two.", 0.9, 1.3), word("Three.", 1.8, 2.2), word("Four.", 4.2, 4.6),
			},
			quality:   delivery.PauseMixed,
			effective: 2,
			awkward:   1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := delivery.Analyze(nil, sr, delivery.WithWords(tc.words)).Silence
			if s.PauseQuality != tc.quality {
				t.Errorf("PauseQuality = %q, want %q", s.PauseQuality, tc.quality)
			}
			if s.EffectivePauses != tc.effective || s.AwkwardSilences != tc.awkward {
				t.Errorf("effective/awkward = %d/%d, want %d/%d", s.EffectivePauses, s.AwkwardSilences, tc.effective, tc.awkward)
			}
		})
	}
}

func TestAnalyze_PauseExampleValues(t *testing.T) {
	t.Parallel()

	words := []stt.Word{word("We", 0, 0.2), word("start.", 0.2, 0.5), word("Then", 1.0, 1.3)}
	s := delivery.Analyze(nil, sr, delivery.WithWords(words)).Silence

	want := []delivery.Pause{{Start: 0.5, End: 1, Duration: 0.5}}
	if !reflect.DeepEqual(s.EffectiveExamples, want) {
		t.Errorf("EffectiveExamples = %+v, want %+v", s.EffectiveExamples, want)
	}
}

func TestAnalyze_PausesFromVAD(t *testing.T) {
	t.Parallel()

	// 20 ms frames: speech 0-1.5 s, silence 1.5-2.1 s, speech 2.1-3.0 s.
	var events []vad.VADEvent
	add := func(n int, typ vad.VADEventType) {
		for range n {
			events = append(events, vad.VADEvent{Type: typ})
		}
	}
	add(75, vad.VADSpeechContinue)
	add(30, vad.VADSilence)
	add(45, vad.VADSpeechContinue)

	sess := &vadmock.Session{Events: events, EventResult: vad.VADEvent{Type: vad.VADSilence}}
	eng := &vadmock.Engine{Session: sess}

	res := delivery.Analyze(make([]float32, 3*sr), sr, delivery.WithVAD(eng))

	if len(eng.NewSessionCalls) != 1 {
		t.Fatalf("NewSession called %d times, want 1", len(eng.NewSessionCalls))
	}
	cfg := eng.NewSessionCalls[0].Cfg
	if cfg.SampleRate != sr || cfg.FrameSizeMs != 20 {
		t.Errorf("session config = %+v", cfg)
	}
	if sess.CloseCallCount != 1 {
		t.Errorf("session closed %d times, want 1", sess.CloseCallCount)
	}

	// The first run is long enough to count as a boundary.
	s := res.Silence
	if s.PauseQuality != delivery.PauseEffective || s.EffectivePauses != 1 {
		t.Fatalf("Silence = %+v, want one effective pause", s)
	}
	want := delivery.Pause{Start: 1.5, End: 2.1, Duration: 0.6}
	if s.EffectiveExamples[0] != want {
		t.Errorf("pause = %+v, want %+v", s.EffectiveExamples[0], want)
	}
}

func TestAnalyze_PausesFromEnergyVAD(t *testing.T) {
	t.Parallel()

	var samples []float32
	samples = append(samples, make([]float32, sr/2)...)
	samples = append(samples, tone(180, 0.3, 1.5)...)
	samples = append(samples, make([]float32, int(0.6*sr))...)
	samples = append(samples, tone(180, 0.3, 0.8)...)
	samples = append(samples, make([]float32, int(0.4*sr))...)

	s := delivery.Analyze(samples, sr).Silence
	if s.PauseQuality != delivery.PauseEffective {
		t.Errorf("Silence = %+v, want effective", s)
	}
}

func TestAnalyze_VADFailureLeavesPausesUnknown(t *testing.T) {
	t.Parallel()

	eng := &vadmock.Engine{NewSessionErr: vad.ErrClosed}
	res := delivery.Analyze(tone(150, 0.3, 2), sr, delivery.WithVAD(eng))

	if res.Silence.PauseQuality != delivery.PauseUnknown {
		t.Errorf("PauseQuality = %q, want unknown", res.Silence.PauseQuality)
	}
	if res.Monotone.Label != delivery.PitchMonotone {
		t.Errorf("Monotone.Label = %q, pitch must not depend on VAD", res.Monotone.Label)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	t.Parallel()
	samples := chirp(120, 200, 0.2, 2)
	a := delivery.Analyze(samples, sr)
	b := delivery.Analyze(samples, sr)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("results differ:\n%+v\n%+v", a, b)
	}
}

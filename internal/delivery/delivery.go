// Package delivery scores vocal delivery from decoded mono audio.
//
// Three independent sub-scores are produced: pitch variation (monotone
// detection), loudness consistency including trailing-off at the end of
// utterances, and pause quality. Utterance boundaries come from word timings
// when a transcript is supplied and from energy-based voice activity
// detection otherwise.
//
// [Analyze] never fails. Inputs that cannot be scored leave the affected
// sub-score in its unknown state.
package delivery

import (
	"log/slog"

	"github.com/MrWong99/podium/internal/calibration"
	"github.com/MrWong99/podium/pkg/provider/stt"
	"github.com/MrWong99/podium/pkg/provider/vad"
	"github.com/MrWong99/podium/pkg/provider/vad/energy"
)

type options struct {
	cal   calibration.Table
	words []stt.Word
	vad   vad.Engine
}

// Option configures Analyze.
type Option func(*options)

// WithCalibration overrides the calibration table.
func WithCalibration(t calibration.Table) Option {
	return func(o *options) { o.cal = t }
}

// WithWords supplies word timings. They drive pause boundary context and
// utterance spans in place of voice activity detection.
func WithWords(words []stt.Word) Option {
	return func(o *options) { o.words = words }
}

// WithVAD replaces the default energy detector used when no words are
// supplied.
func WithVAD(e vad.Engine) Option {
	return func(o *options) {
		if e != nil {
			o.vad = e
		}
	}
}

// Analyze scores samples, which are mono and normalised to [-1, 1].
func Analyze(samples []float32, sampleRate int, opts ...Option) Result {
	o := options{cal: calibration.Default(), vad: energy.New()}
	for _, opt := range opts {
		opt(&o)
	}

	res := Unknown()
	haveAudio := sampleRate > 0 && len(samples) > 0
	var duration float64
	if haveAudio {
		duration = float64(len(samples)) / float64(sampleRate)
	}

	var spans []span
	switch {
	case len(o.words) > 0:
		res.Silence = analyzePauses(wordUnits(o.words), false, o.cal.Pauses)
		spans = sentenceSpans(o.words, duration, o.cal.Volume)
	case haveAudio:
		segs, err := vad.Detect(o.vad, vad.Config{
			SampleRate:       sampleRate,
			FrameSizeMs:      o.cal.VAD.FrameMs,
			SpeechThreshold:  o.cal.VAD.SpeechRMS,
			SilenceThreshold: o.cal.VAD.SilentRMS,
		}, samples)
		if err != nil {
			slog.Warn("delivery: voice activity detection failed, pauses unscored", "err", err)
			break
		}
		res.Silence = analyzePauses(segmentUnits(segs), true, o.cal.Pauses)
		spans = segmentSpans(segs, duration, o.cal.Volume)
	}

	if !haveAudio {
		return res
	}
	res.Monotone = analyzePitch(samples, sampleRate, o.cal.Pitch)
	res.Volume = analyzeVolume(samples, sampleRate, spans, o.cal.Volume)
	return res
}

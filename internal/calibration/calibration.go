// Package calibration holds the scale factors and classification thresholds
// that turn raw motion and audio statistics into scores and labels.
//
// Every value here is an empirical tuning artifact, not a law. [Default]
// returns the shipped table; deployments override any subset through the
// calibration block of the YAML config, and tests assert against the table
// rather than against inlined numbers.
package calibration

import (
	"errors"
	"fmt"
)

// Table is the complete calibration surface.
type Table struct {
	Gesture    Gesture    `yaml:"gesture"`
	EyeContact EyeContact `yaml:"eye_contact"`
	Posture    Posture    `yaml:"posture"`
	Events     Events     `yaml:"events"`
	Pitch      Pitch      `yaml:"pitch"`
	Volume     Volume     `yaml:"volume"`
	Pauses     Pauses     `yaml:"pauses"`
	VAD        VAD        `yaml:"vad"`
	Pace       Pace       `yaml:"pace"`
}

// Gesture calibrates the hand-motion energy score.
type Gesture struct {
	// EnergyScale maps mean hand velocity (normalised image widths per
	// second) onto the 0-10 energy score. Higher values increase the score
	// for the same motion.
	EnergyScale float64 `yaml:"energy_scale"`

	// LowBelow and HighFrom bucket the energy score into low, moderate and
	// high activity.
	LowBelow float64 `yaml:"low_below"`
	HighFrom float64 `yaml:"high_from"`
}

// EyeContact calibrates the camera-facing stability proxy. It measures how
// steady the face stays in frame and never estimates gaze direction.
type EyeContact struct {
	// Scale converts mean face-centre displacement per sampled frame into
	// score points subtracted from 10.
	Scale float64 `yaml:"scale"`

	LowBelow float64 `yaml:"low_below"`
	HighFrom float64 `yaml:"high_from"`

	// DriftDisplacement flags a frame as drifting when the face centre moved
	// at least this far since the previous present face.
	DriftDisplacement float64 `yaml:"drift_displacement"`

	// YawRatio and PitchRatio bound the head-orientation proxy computed from
	// face-mesh anchors (nose offset against the eye line). Frames beyond
	// either bound are not counted as facing the camera.
	YawRatio   float64 `yaml:"yaw_ratio"`
	PitchRatio float64 `yaml:"pitch_ratio"`
}

// Posture calibrates the vertical sway score.
type Posture struct {
	// StabilityScale converts mean vertical displacement per sampled frame
	// into score points subtracted from 10.
	StabilityScale float64 `yaml:"stability_scale"`

	UnstableBelow float64 `yaml:"unstable_below"`
	StableFrom    float64 `yaml:"stable_from"`

	// SwayThreshold flags a frame transition as swaying.
	SwayThreshold float64 `yaml:"sway_threshold"`
}

// Events calibrates the flag-to-timeline conversion.
type Events struct {
	// MinSeconds is the shortest flagged run reported as an event.
	MinSeconds float64 `yaml:"min_seconds"`

	// HighSeveritySeconds marks events at least this long as high severity.
	HighSeveritySeconds float64 `yaml:"high_severity_seconds"`
}

// Pitch calibrates the monotone detector.
type Pitch struct {
	FrameSeconds float64 `yaml:"frame_seconds"`
	HopSeconds   float64 `yaml:"hop_seconds"`
	MinHz        float64 `yaml:"min_hz"`
	MaxHz        float64 `yaml:"max_hz"`

	// VoicedRMS gates out quiet frames before pitch estimation.
	VoicedRMS float64 `yaml:"voiced_rms"`

	// MinPeriodicity is the normalised autocorrelation peak a frame needs to
	// count as voiced.
	MinPeriodicity float64 `yaml:"min_periodicity"`

	// MinVoicedFrames is the reliability floor below which the label is
	// unknown.
	MinVoicedFrames int `yaml:"min_voiced_frames"`

	// MonotoneBelow and DynamicFrom bucket the semitone standard deviation.
	MonotoneBelow float64 `yaml:"monotone_below"`
	DynamicFrom   float64 `yaml:"dynamic_from"`
}

// Volume calibrates loudness consistency and trailing-off detection.
type Volume struct {
	WindowSeconds float64 `yaml:"window_seconds"`
	HopSeconds    float64 `yaml:"hop_seconds"`

	// TooQuietDBFS is the mean loudness floor.
	TooQuietDBFS float64 `yaml:"too_quiet_dbfs"`

	// InconsistentStdDB and InconsistentTrailingRatio mark delivery as
	// inconsistent when either is reached.
	InconsistentStdDB         float64 `yaml:"inconsistent_std_db"`
	InconsistentTrailingRatio float64 `yaml:"inconsistent_trailing_ratio"`

	// SilenceFloorRMS treats a clip whose loudest window is below it as
	// digital silence with unknown consistency.
	SilenceFloorRMS float64 `yaml:"silence_floor_rms"`

	// Trailing-off: spans shorter than TrailingMinSpanSeconds are skipped;
	// the tail is min(TrailingTailSeconds, TrailingTailFraction*span) and an
	// event fires when tail RMS / body RMS is below TrailingRatio.
	TrailingMinSpanSeconds float64 `yaml:"trailing_min_span_seconds"`
	TrailingTailSeconds    float64 `yaml:"trailing_tail_seconds"`
	TrailingTailFraction   float64 `yaml:"trailing_tail_fraction"`
	TrailingRatio          float64 `yaml:"trailing_ratio"`
	MaxExamples            int     `yaml:"max_examples"`

	// Utterance spans from word timings split on sentence punctuation or a
	// gap of at least SpanGapSeconds, and are kept when at least
	// MinSpanSeconds long.
	SpanGapSeconds float64 `yaml:"span_gap_seconds"`
	MinSpanSeconds float64 `yaml:"min_span_seconds"`
}

// Pauses calibrates effective-pause versus awkward-silence classification.
type Pauses struct {
	MinSeconds float64 `yaml:"min_seconds"`

	// BoundaryGapSeconds makes any gap this long count as a boundary.
	BoundaryGapSeconds float64 `yaml:"boundary_gap_seconds"`

	// UtteranceMinSeconds makes a gap after a speech run at least this long
	// count as a boundary when no word timings are available.
	UtteranceMinSeconds float64 `yaml:"utterance_min_seconds"`

	EffectiveMinSeconds    float64 `yaml:"effective_min_seconds"`
	EffectiveMaxSeconds    float64 `yaml:"effective_max_seconds"`
	AwkwardMidSeconds      float64 `yaml:"awkward_mid_seconds"`
	AwkwardBoundarySeconds float64 `yaml:"awkward_boundary_seconds"`
	MaxExamples            int     `yaml:"max_examples"`
}

// VAD calibrates the energy segmentation used when no transcript exists.
type VAD struct {
	FrameMs   int     `yaml:"frame_ms"`
	SpeechRMS float64 `yaml:"speech_rms"`
	SilentRMS float64 `yaml:"silent_rms"`
}

// Pace calibrates the words-per-minute label.
type Pace struct {
	SlowBelowWPM float64 `yaml:"slow_below_wpm"`
	FastAboveWPM float64 `yaml:"fast_above_wpm"`
}

// Default returns the shipped calibration table.
func Default() Table {
	return Table{
		Gesture: Gesture{
			EnergyScale: 6.0,
			LowBelow:    2.5,
			HighFrom:    6.5,
		},
		EyeContact: EyeContact{
			Scale:             60.0,
			LowBelow:          4.0,
			HighFrom:          7.0,
			DriftDisplacement: 0.04,
			YawRatio:          0.35,
			PitchRatio:        0.85,
		},
		Posture: Posture{
			StabilityScale: 80.0,
			UnstableBelow:  4.0,
			StableFrom:     7.0,
			SwayThreshold:  0.02,
		},
		Events: Events{
			MinSeconds:          2.0,
			HighSeveritySeconds: 4.0,
		},
		Pitch: Pitch{
			FrameSeconds:    0.04,
			HopSeconds:      0.02,
			MinHz:           75,
			MaxHz:           320,
			VoicedRMS:       0.008,
			MinPeriodicity:  0.30,
			MinVoicedFrames: 8,
			MonotoneBelow:   1.8,
			DynamicFrom:     3.0,
		},
		Volume: Volume{
			WindowSeconds:             0.05,
			HopSeconds:                0.025,
			TooQuietDBFS:              -33.0,
			InconsistentStdDB:         7.5,
			InconsistentTrailingRatio: 0.35,
			SilenceFloorRMS:           1e-4,
			TrailingMinSpanSeconds:    0.9,
			TrailingTailSeconds:       0.35,
			TrailingTailFraction:      0.35,
			TrailingRatio:             0.62,
			MaxExamples:               5,
			SpanGapSeconds:            1.0,
			MinSpanSeconds:            0.4,
		},
		Pauses: Pauses{
			MinSeconds:             0.25,
			BoundaryGapSeconds:     0.95,
			UtteranceMinSeconds:    1.2,
			EffectiveMinSeconds:    0.35,
			EffectiveMaxSeconds:    1.4,
			AwkwardMidSeconds:      0.7,
			AwkwardBoundarySeconds: 1.8,
			MaxExamples:            6,
		},
		VAD: VAD{
			FrameMs:   20,
			SpeechRMS: 0.015,
			SilentRMS: 0.008,
		},
		Pace: Pace{
			SlowBelowWPM: 110,
			FastAboveWPM: 170,
		},
	}
}

// Validate checks that scales are positive and every threshold pair is
// ordered. All violations are returned together.
func (t Table) Validate() error {
	var errs []error
	positive := func(name string, v float64) {
		if !(v > 0) {
			errs = append(errs, fmt.Errorf("calibration: %s must be positive, got %v", name, v))
		}
	}
	ordered := func(lo, hi string, a, b float64) {
		if a > b {
			errs = append(errs, fmt.Errorf("calibration: %s (%v) must not exceed %s (%v)", lo, a, hi, b))
		}
	}

	positive("gesture.energy_scale", t.Gesture.EnergyScale)
	ordered("gesture.low_below", "gesture.high_from", t.Gesture.LowBelow, t.Gesture.HighFrom)

	positive("eye_contact.scale", t.EyeContact.Scale)
	ordered("eye_contact.low_below", "eye_contact.high_from", t.EyeContact.LowBelow, t.EyeContact.HighFrom)
	positive("eye_contact.drift_displacement", t.EyeContact.DriftDisplacement)
	positive("eye_contact.yaw_ratio", t.EyeContact.YawRatio)
	positive("eye_contact.pitch_ratio", t.EyeContact.PitchRatio)

	positive("posture.stability_scale", t.Posture.StabilityScale)
	ordered("posture.unstable_below", "posture.stable_from", t.Posture.UnstableBelow, t.Posture.StableFrom)
	positive("posture.sway_threshold", t.Posture.SwayThreshold)

	positive("events.min_seconds", t.Events.MinSeconds)
	ordered("events.min_seconds", "events.high_severity_seconds", t.Events.MinSeconds, t.Events.HighSeveritySeconds)

	positive("pitch.frame_seconds", t.Pitch.FrameSeconds)
	positive("pitch.hop_seconds", t.Pitch.HopSeconds)
	positive("pitch.min_hz", t.Pitch.MinHz)
	ordered("pitch.min_hz", "pitch.max_hz", t.Pitch.MinHz, t.Pitch.MaxHz)
	if t.Pitch.MinVoicedFrames < 2 {
		errs = append(errs, fmt.Errorf("calibration: pitch.min_voiced_frames must be at least 2, got %d", t.Pitch.MinVoicedFrames))
	}
	ordered("pitch.monotone_below", "pitch.dynamic_from", t.Pitch.MonotoneBelow, t.Pitch.DynamicFrom)

	positive("volume.window_seconds", t.Volume.WindowSeconds)
	positive("volume.hop_seconds", t.Volume.HopSeconds)
	if t.Volume.TooQuietDBFS >= 0 {
		errs = append(errs, fmt.Errorf("calibration: volume.too_quiet_dbfs must be negative, got %v", t.Volume.TooQuietDBFS))
	}
	positive("volume.trailing_ratio", t.Volume.TrailingRatio)
	positive("volume.trailing_tail_seconds", t.Volume.TrailingTailSeconds)
	if t.Volume.TrailingTailFraction <= 0 || t.Volume.TrailingTailFraction >= 1 {
		errs = append(errs, fmt.Errorf("calibration: volume.trailing_tail_fraction must be in (0, 1), got %v", t.Volume.TrailingTailFraction))
	}

	positive("pauses.min_seconds", t.Pauses.MinSeconds)
	ordered("pauses.effective_min_seconds", "pauses.effective_max_seconds", t.Pauses.EffectiveMinSeconds, t.Pauses.EffectiveMaxSeconds)

	if t.VAD.FrameMs <= 0 {
		errs = append(errs, errors.New("calibration: vad.frame_ms must be positive"))
	}
	ordered("vad.silent_rms", "vad.speech_rms", t.VAD.SilentRMS, t.VAD.SpeechRMS)

	ordered("pace.slow_below_wpm", "pace.fast_above_wpm", t.Pace.SlowBelowWPM, t.Pace.FastAboveWPM)

	return errors.Join(errs...)
}

// Package nonverbal scores visual delivery from sampled video frames.
//
// Three aggregators consume the same frame sequence in lock-step: gesture
// energy from the hand centroid, a camera-facing stability proxy from the face
// centre, and posture stability from vertical drift of the upper body. Each
// aggregator is a pure function of its ordered observations. Motion is only
// measured between consecutive sampled frames in which the tracked anchor was
// present.
package nonverbal

import (
	"context"
	"iter"
	"log/slog"

	"github.com/MrWong99/podium/internal/calibration"
	"github.com/MrWong99/podium/pkg/landmark"
	"github.com/MrWong99/podium/pkg/video"
)

// DetectHook is called after every detector query. It lets callers record
// detection metrics without this package depending on them.
type DetectHook func(m landmark.Modality, present bool)

type options struct {
	cal    calibration.Table
	source PostureSource
	hook   DetectHook
}

// Option configures Analyze.
type Option func(*options)

// WithCalibration overrides the calibration table.
func WithCalibration(t calibration.Table) Option {
	return func(o *options) { o.cal = t }
}

// WithPostureSource selects the posture anchor. Defaults to [PostureFromPose],
// which leaves posture unknown when no pose detector is loaded; [PostureAuto]
// falls back to the face centre instead.
func WithPostureSource(s PostureSource) Option {
	return func(o *options) {
		if s.IsValid() {
			o.source = s
		}
	}
}

// WithDetectHook registers a per-detection callback.
func WithDetectHook(h DetectHook) Option {
	return func(o *options) { o.hook = h }
}

// Analyze runs every available detector over frames and returns the merged
// record. Unavailable detectors are never queried and leave their scores
// unknown.
func Analyze(ctx context.Context, frames iter.Seq[video.Frame], dets landmark.Detectors, opts ...Option) Metrics {
	o := options{cal: calibration.Default(), source: PostureFromPose}
	for _, opt := range opts {
		opt(&o)
	}

	hand := dets.Get(landmark.Hand)
	face := dets.Get(landmark.Face)
	pose := dets.Get(landmark.Pose)

	source := o.source
	if source == PostureAuto {
		source = PostureFromPose
		if !pose.Available() && face.Available() {
			slog.Info("nonverbal: pose detector unavailable, anchoring posture on face")
			source = PostureFromFace
		}
	}
	postureAvailable := pose.Available()
	if source == PostureFromFace {
		postureAvailable = face.Available()
	}

	gesture := NewGestureAggregator(o.cal.Gesture, hand.Available())
	eye := NewEyeContactAggregator(o.cal.EyeContact, o.cal.Events, face.Available())
	posture := NewPostureAggregator(o.cal.Posture, o.cal.Events, source, postureAvailable)

	detect := func(d landmark.Detector, img video.Frame) (landmark.Set, bool) {
		if !d.Available() {
			return landmark.Set{}, false
		}
		set, ok := d.Detect(ctx, img.Image)
		if o.hook != nil {
			o.hook(d.Modality(), ok)
		}
		return set, ok
	}

	var count int
	if frames != nil {
		for f := range frames {
			count++
			hs, hok := detect(hand, f)
			gesture.Observe(f.Timestamp, hs, hok)

			fs, fok := detect(face, f)
			eye.Observe(f.Timestamp, fs, fok)

			if source == PostureFromFace {
				posture.Observe(f.Timestamp, fs, fok)
			} else {
				ps, pok := detect(pose, f)
				posture.Observe(f.Timestamp, ps, pok)
			}
		}
	}

	m := Merge(gesture.Result(), eye.Result(), posture.Result(), count, o.cal.Events)
	slog.Debug("nonverbal: analysis complete",
		"frames", count,
		"activity", m.ActivityLevel,
		"eye_contact", m.EyeContactLevel,
		"posture", m.PostureLevel,
		"posture_source", source,
	)
	return m
}

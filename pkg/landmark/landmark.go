// Package landmark defines the Detector interface for per-frame keypoint
// detection backends (hand, face, pose).
//
// A detector wraps a pre-trained perception model that is loaded once and then
// queried frame by frame. Detectors are optional: a detector whose model asset
// could not be found or loaded is represented by the [Unavailable] variant,
// which reports Available() == false and answers every Detect call with an
// absent result without attempting inference. Callers branch on Available()
// instead of handling load errors at call time.
//
// Implementations must be safe for concurrent use when their underlying
// inference call is reentrant; otherwise they must document that one instance
// is required per concurrent analysis.
package landmark

import (
	"context"
	"errors"
	"image"
	"math"
)

// Modality names the body part a detector tracks.
type Modality string

const (
	Hand Modality = "hand"
	Face Modality = "face"
	Pose Modality = "pose"
)

// IsValid reports whether m is a recognised modality.
func (m Modality) IsValid() bool {
	switch m {
	case Hand, Face, Pose:
		return true
	}
	return false
}

// Point is a single keypoint in normalised image coordinates: X and Y lie in
// [0,1] with the origin in the top-left corner. Z is model-specific depth and
// may be zero.
type Point struct {
	X float64
	Y float64
	Z float64
}

// Set is the landmark output for one frame from one detector.
type Set struct {
	// Modality identifies the detector that produced the set.
	Modality Modality

	// Points holds the detected keypoints in model order. Model-specific
	// indices (e.g. pose shoulders at 11 and 12) are preserved.
	Points []Point

	// Score is the model's presence confidence in [0,1]. Zero when the model
	// does not report one.
	Score float64
}

// Empty reports whether the set carries no points.
func (s Set) Empty() bool { return len(s.Points) == 0 }

// Centroid returns the mean of all points. ok is false for an empty set.
func (s Set) Centroid() (p Point, ok bool) {
	if s.Empty() {
		return Point{}, false
	}
	var sx, sy, sz float64
	for _, pt := range s.Points {
		sx += pt.X
		sy += pt.Y
		sz += pt.Z
	}
	n := float64(len(s.Points))
	return Point{X: sx / n, Y: sy / n, Z: sz / n}, true
}

// BoundsCenter returns the center of the axis-aligned bounding box of all
// points. ok is false for an empty set.
func (s Set) BoundsCenter() (p Point, ok bool) {
	if s.Empty() {
		return Point{}, false
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, pt := range s.Points {
		minX = min(minX, pt.X)
		minY = min(minY, pt.Y)
		maxX = max(maxX, pt.X)
		maxY = max(maxY, pt.Y)
	}
	return Point{X: (minX + maxX) / 2, Y: (minY + maxY) / 2}, true
}

// At returns the point at index i. ok is false when i is out of range.
func (s Set) At(i int) (p Point, ok bool) {
	if i < 0 || i >= len(s.Points) {
		return Point{}, false
	}
	return s.Points[i], true
}

// Distance returns the Euclidean distance between a and b in the X/Y plane.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Detector is the abstraction over a single-modality landmark model.
type Detector interface {
	// Modality reports which body part the detector tracks.
	Modality() Modality

	// Available reports whether the underlying model was loaded. An unavailable
	// detector stays unavailable for its whole lifetime.
	Available() bool

	// Detect runs inference on img. It returns ok == false when nothing was
	// found, when inference failed for this frame, or when the detector is
	// unavailable. Per-frame misses are expected and are not errors.
	Detect(ctx context.Context, img image.Image) (set Set, ok bool)

	// Close releases the model. Calling Close more than once is safe.
	Close() error
}

// Unavailable returns the detector variant used when a model could not be
// loaded. reason is surfaced in logs and readiness output.
func Unavailable(m Modality, reason string) Detector {
	return &unavailable{modality: m, reason: reason}
}

// Reason returns the reason string recorded by [Unavailable], or "" when d is
// not an unavailable detector.
func Reason(d Detector) string {
	if u, ok := d.(*unavailable); ok {
		return u.reason
	}
	return ""
}

type unavailable struct {
	modality Modality
	reason   string
}

var _ Detector = (*unavailable)(nil)

func (u *unavailable) Modality() Modality { return u.modality }
func (u *unavailable) Available() bool    { return false }
func (u *unavailable) Close() error       { return nil }

func (u *unavailable) Detect(context.Context, image.Image) (Set, bool) {
	return Set{}, false
}

// Detectors is the per-process registry of loaded detectors. It is built once
// at startup and injected into the analysis pipeline. A nil field is treated
// as unavailable.
type Detectors struct {
	Hand Detector
	Face Detector
	Pose Detector
}

// Get returns the detector for m, substituting an [Unavailable] detector for a
// nil field so callers never need a nil check.
func (d Detectors) Get(m Modality) Detector {
	var det Detector
	switch m {
	case Hand:
		det = d.Hand
	case Face:
		det = d.Face
	case Pose:
		det = d.Pose
	}
	if det == nil {
		return Unavailable(m, "not configured")
	}
	return det
}

// Close closes every configured detector and joins their errors.
func (d Detectors) Close() error {
	var errs []error
	for _, det := range []Detector{d.Hand, d.Face, d.Pose} {
		if det == nil {
			continue
		}
		if err := det.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

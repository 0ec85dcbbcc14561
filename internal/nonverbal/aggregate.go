package nonverbal

import (
	"math"
	"time"

	"github.com/MrWong99/podium/internal/calibration"
	"github.com/MrWong99/podium/pkg/landmark"
)

// pairTracker remembers the anchor of the previous sampled frame. A pair is
// only formed between two consecutive present observations; an absent frame
// breaks the chain and nothing is interpolated across it.
type pairTracker struct {
	prev   landmark.Point
	prevTS time.Duration
	have   bool
}

// step records the observation at ts and returns the motion since the
// previous frame when both are present.
func (p *pairTracker) step(ts time.Duration, pt landmark.Point, present bool) (dx, dy float64, dt time.Duration, ok bool) {
	if !present {
		p.have = false
		return 0, 0, 0, false
	}
	if p.have {
		dx, dy, dt, ok = pt.X-p.prev.X, pt.Y-p.prev.Y, ts-p.prevTS, true
	}
	p.prev, p.prevTS, p.have = pt, ts, true
	return dx, dy, dt, ok
}

// GestureResult is the output of a GestureAggregator.
type GestureResult struct {
	Energy      float64
	AvgVelocity float64
	Level       Level
	Samples     int
}

// GestureAggregator scores hand motion energy from the centroid of the hand
// keypoints. Velocity is measured in normalised image units per second so the
// score does not depend on the sampling rate.
type GestureAggregator struct {
	cal       calibration.Gesture
	available bool
	track     pairTracker
	sum       float64
	n         int
}

// NewGestureAggregator returns an aggregator. available reports whether the
// hand detector loaded; when false the result is always unknown.
func NewGestureAggregator(cal calibration.Gesture, available bool) *GestureAggregator {
	return &GestureAggregator{cal: cal, available: available}
}

// Observe feeds one sampled frame.
func (g *GestureAggregator) Observe(ts time.Duration, set landmark.Set, present bool) {
	var anchor landmark.Point
	if present {
		anchor, present = set.Centroid()
	}
	dx, dy, dt, ok := g.track.step(ts, anchor, present)
	if !ok || dt <= 0 {
		return
	}
	g.sum += math.Hypot(dx, dy) / dt.Seconds()
	g.n++
}

// Result computes the energy score and activity level.
func (g *GestureAggregator) Result() GestureResult {
	if !g.available || g.n == 0 {
		return GestureResult{Level: LevelUnknown, Samples: g.n}
	}
	avg := g.sum / float64(g.n)
	energy := clamp10(avg * g.cal.EnergyScale)
	return GestureResult{
		Energy:      energy,
		AvgVelocity: avg,
		Level:       bucket(energy, g.cal.LowBelow, g.cal.HighFrom, LevelLow, LevelModerate, LevelHigh),
		Samples:     g.n,
	}
}

// EyeContactResult is the output of an EyeContactAggregator.
type EyeContactResult struct {
	Score       float64
	Level       Level
	Samples     int
	Frames      int
	FacingPct   *float64
	DriftEvents []Segment
}

// Face-mesh anchors used by the facing proxy.
const (
	meshLeftEye  = 33
	meshRightEye = 263
	meshNose     = 1
	meshMouth    = 13
)

// EyeContactAggregator scores how steadily the face centre stays in frame.
// It is a camera-facing stability proxy: it never estimates where the
// speaker is looking.
type EyeContactAggregator struct {
	cal       calibration.EyeContact
	events    calibration.Events
	available bool
	track     pairTracker
	sum       float64
	n         int

	frames int
	facing int
	ts     []float64
	drift  []bool
}

// NewEyeContactAggregator returns an aggregator. available reports whether
// the face detector loaded.
func NewEyeContactAggregator(cal calibration.EyeContact, events calibration.Events, available bool) *EyeContactAggregator {
	return &EyeContactAggregator{cal: cal, events: events, available: available}
}

// Observe feeds one sampled frame.
func (e *EyeContactAggregator) Observe(ts time.Duration, set landmark.Set, present bool) {
	if !e.available {
		return
	}
	e.frames++
	var center landmark.Point
	if present {
		center, present = set.BoundsCenter()
	}
	dx, dy, _, ok := e.track.step(ts, center, present)
	var disp float64
	if ok {
		disp = math.Hypot(dx, dy)
		e.sum += disp
		e.n++
	}

	facing := present && e.facingCamera(set)
	if facing {
		e.facing++
	}
	e.ts = append(e.ts, ts.Seconds())
	e.drift = append(e.drift, !facing || disp >= e.cal.DriftDisplacement)
}

// facingCamera applies the head-orientation proxy when face-mesh anchors are
// available. Sets without them count as facing.
func (e *EyeContactAggregator) facingCamera(set landmark.Set) bool {
	le, ok1 := set.At(meshLeftEye)
	re, ok2 := set.At(meshRightEye)
	nose, ok3 := set.At(meshNose)
	mouth, ok4 := set.At(meshMouth)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return true
	}
	midX := (le.X + re.X) / 2
	midY := (le.Y + re.Y) / 2
	interEye := math.Max(math.Abs(re.X-le.X), 1e-6)
	eyeToMouth := math.Max(math.Abs(mouth.Y-midY), 1e-6)
	yaw := math.Abs(nose.X-midX) / interEye
	pitch := math.Abs(nose.Y-midY) / eyeToMouth
	return yaw <= e.cal.YawRatio && pitch <= e.cal.PitchRatio
}

// Result computes the stability score, level, facing share and drift
// timeline.
func (e *EyeContactAggregator) Result() EyeContactResult {
	r := EyeContactResult{Level: LevelUnknown, Samples: e.n, Frames: e.frames}
	if !e.available {
		return r
	}
	if e.frames > 0 {
		pct := float64(e.facing) / float64(e.frames) * 100
		r.FacingPct = &pct
	}
	r.DriftEvents = segmentsFromFlags(e.ts, e.drift, e.events.MinSeconds)
	if e.n == 0 {
		return r
	}
	r.Score = clamp10(10 - (e.sum/float64(e.n))*e.cal.Scale)
	r.Level = bucket(r.Score, e.cal.LowBelow, e.cal.HighFrom, LevelLow, LevelModerate, LevelHigh)
	return r
}

// PostureSource selects which detector anchors the posture score.
type PostureSource string

const (
	// PostureFromPose tracks the pose mid-shoulder point.
	PostureFromPose PostureSource = "pose"

	// PostureFromFace tracks the face bounding-box centre.
	PostureFromFace PostureSource = "face"

	// PostureAuto uses the pose detector when it is loaded and the face
	// detector otherwise. It is resolved once per analysis by [Analyze].
	PostureAuto PostureSource = "auto"
)

// IsValid reports whether s is a recognised posture source.
func (s PostureSource) IsValid() bool {
	return s == PostureFromPose || s == PostureFromFace || s == PostureAuto
}

// Pose keypoints for the shoulders.
const (
	poseLeftShoulder  = 11
	poseRightShoulder = 12
)

// PostureResult is the output of a PostureAggregator.
type PostureResult struct {
	Score   float64
	Level   Level
	Samples int
	Sway    float64
	Events  []Segment
}

// PostureAggregator scores vertical drift of an upper-body anchor. Only the
// Y component counts: lateral movement is gesture, not sway.
type PostureAggregator struct {
	cal       calibration.Posture
	events    calibration.Events
	source    PostureSource
	available bool
	track     pairTracker
	sum       float64
	n         int

	ts   []float64
	sway []bool
}

// NewPostureAggregator returns an aggregator anchored on source. available
// reports whether the detector for source loaded.
func NewPostureAggregator(cal calibration.Posture, events calibration.Events, source PostureSource, available bool) *PostureAggregator {
	return &PostureAggregator{cal: cal, events: events, source: source, available: available}
}

// Source returns the anchor source.
func (p *PostureAggregator) Source() PostureSource { return p.source }

// Observe feeds one sampled frame with the set from the source detector.
func (p *PostureAggregator) Observe(ts time.Duration, set landmark.Set, present bool) {
	var anchor landmark.Point
	if present {
		anchor, present = p.anchor(set)
	}
	_, dy, _, ok := p.track.step(ts, anchor, present)
	if !ok {
		return
	}
	dy = math.Abs(dy)
	p.sum += dy
	p.n++
	p.ts = append(p.ts, ts.Seconds())
	p.sway = append(p.sway, dy >= p.cal.SwayThreshold)
}

func (p *PostureAggregator) anchor(set landmark.Set) (landmark.Point, bool) {
	if p.source == PostureFromFace {
		return set.BoundsCenter()
	}
	l, okL := set.At(poseLeftShoulder)
	r, okR := set.At(poseRightShoulder)
	if okL && okR {
		return landmark.Point{X: (l.X + r.X) / 2, Y: (l.Y + r.Y) / 2, Z: (l.Z + r.Z) / 2}, true
	}
	return set.Centroid()
}

// Result computes the stability score, level, sway and event timeline.
func (p *PostureAggregator) Result() PostureResult {
	r := PostureResult{Level: LevelUnknown, Samples: p.n}
	if !p.available || p.n == 0 {
		return r
	}
	r.Sway = p.sum / float64(p.n)
	r.Score = clamp10(10 - r.Sway*p.cal.StabilityScale)
	r.Level = bucket(r.Score, p.cal.UnstableBelow, p.cal.StableFrom, LevelUnstable, LevelModerate, LevelStable)
	r.Events = segmentsFromFlags(p.ts, p.sway, p.events.MinSeconds)
	return r
}

package nonverbal

import "github.com/MrWong99/podium/internal/calibration"

// Metrics is the flat visual portion of an analysis record. Field names and
// level vocabularies are a stable wire format.
type Metrics struct {
	GestureEnergy float64 `json:"gesture_energy"`
	ActivityLevel Level   `json:"activity_level"`
	AvgVelocity   float64 `json:"avg_velocity"`
	Samples       int     `json:"samples"`

	EyeContactScore float64 `json:"eye_contact_score"`
	EyeContactLevel Level   `json:"eye_contact_level"`
	PostureScore    float64 `json:"posture_score"`
	PostureLevel    Level   `json:"posture_level"`

	EyeContactSamples int      `json:"eye_contact_samples"`
	PostureSamples    int      `json:"posture_samples"`
	SwayScore         float64  `json:"sway_score"`
	FramesSampled     int      `json:"frames_sampled"`
	FacingCameraPct   *float64 `json:"facing_camera_pct"`

	CameraDriftEvents []Segment `json:"camera_drift_events"`
	PostureEvents     []Segment `json:"posture_events"`
	NonVerbalEvents   []Event   `json:"non_verbal_events"`
}

// Empty returns the structurally complete record for a clip with no visual
// signal.
func Empty() Metrics {
	return Merge(GestureResult{}, EyeContactResult{}, PostureResult{}, 0, calibration.Default().Events)
}

// Merge combines the three aggregator results into one record. A missing
// result contributes its unknown defaults; Merge never fails.
func Merge(g GestureResult, e EyeContactResult, p PostureResult, frames int, cal calibration.Events) Metrics {
	m := Metrics{
		GestureEnergy: round(clamp10(g.Energy), 3),
		ActivityLevel: orUnknown(g.Level),
		AvgVelocity:   round(g.AvgVelocity, 6),
		Samples:       g.Samples,

		EyeContactScore: round(clamp10(e.Score), 3),
		EyeContactLevel: orUnknown(e.Level),
		PostureScore:    round(clamp10(p.Score), 3),
		PostureLevel:    orUnknown(p.Level),

		EyeContactSamples: e.Samples,
		PostureSamples:    p.Samples,
		SwayScore:         round(p.Sway, 6),
		FramesSampled:     frames,

		CameraDriftEvents: nonNil(e.DriftEvents),
		PostureEvents:     nonNil(p.Events),
	}
	if e.FacingPct != nil {
		pct := round(*e.FacingPct, 3)
		m.FacingCameraPct = &pct
	}
	m.NonVerbalEvents = buildEvents(m.CameraDriftEvents, m.PostureEvents, m.ActivityLevel, cal)
	return m
}

func orUnknown(l Level) Level {
	if l == "" {
		return LevelUnknown
	}
	return l
}

func nonNil(s []Segment) []Segment {
	if s == nil {
		return []Segment{}
	}
	return s
}

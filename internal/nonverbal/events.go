package nonverbal

import (
	"fmt"
	"math"
	"sort"

	"github.com/MrWong99/podium/internal/calibration"
)

// Segment is a contiguous run of flagged frames on the clip timeline.
type Segment struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	StartHMS string  `json:"start_hms"`
	EndHMS   string  `json:"end_hms"`
}

// Duration returns End - Start in seconds.
func (s Segment) Duration() float64 { return s.End - s.Start }

// Event types.
const (
	EventCameraDrift = "camera_drift"
	EventHighSway    = "high_sway"
	EventLowGesture  = "low_gesture"
	EventHighGesture = "high_gesture"
)

// Event is a coaching note pinned to a point in the clip.
type Event struct {
	Timestamp    float64 `json:"timestamp"`
	TimestampHMS string  `json:"timestamp_hms"`
	Type         string  `json:"type"`
	Severity     string  `json:"severity"`
	Title        string  `json:"title"`
	Message      string  `json:"message"`
}

// HMS formats seconds as HH:MM:SS.ss.
func HMS(seconds float64) string {
	seconds = math.Max(0, seconds)
	h := int(seconds / 3600)
	m := int(math.Mod(seconds, 3600) / 60)
	s := math.Mod(seconds, 60)
	return fmt.Sprintf("%02d:%02d:%05.2f", h, m, s)
}

// segmentsFromFlags collapses flagged timestamps into runs. A run spans from
// its first to its last flagged timestamp and is kept when it lasts at least
// minSeconds.
func segmentsFromFlags(ts []float64, flags []bool, minSeconds float64) []Segment {
	out := []Segment{}
	start := -1.0
	last := 0.0
	emit := func() {
		if start >= 0 && last-start >= minSeconds {
			s, e := round(start, 3), round(last, 3)
			out = append(out, Segment{Start: s, End: e, StartHMS: HMS(s), EndHMS: HMS(e)})
		}
		start = -1
	}
	for i, flagged := range flags {
		if i >= len(ts) {
			break
		}
		if !flagged {
			emit()
			continue
		}
		if start < 0 {
			start = ts[i]
		}
		last = ts[i]
	}
	emit()
	return out
}

func severity(d float64, cal calibration.Events) string {
	if d >= cal.HighSeveritySeconds {
		return "high"
	}
	return "medium"
}

// buildEvents turns the segment timelines and the activity level into a
// timestamp-ordered list of coaching notes.
func buildEvents(drift, sway []Segment, activity Level, cal calibration.Events) []Event {
	events := []Event{}
	for _, s := range drift {
		events = append(events, Event{
			Timestamp:    s.Start,
			TimestampHMS: s.StartHMS,
			Type:         EventCameraDrift,
			Severity:     severity(s.Duration(), cal),
			Title:        "Face drifted from camera",
			Message:      fmt.Sprintf("Moved away from the camera for ~%.1fs.", s.Duration()),
		})
	}
	for _, s := range sway {
		events = append(events, Event{
			Timestamp:    s.Start,
			TimestampHMS: s.StartHMS,
			Type:         EventHighSway,
			Severity:     severity(s.Duration(), cal),
			Title:        "Posture became unstable",
			Message:      fmt.Sprintf("Noticeable upper-body sway for ~%.1fs.", s.Duration()),
		})
	}
	switch activity {
	case LevelLow:
		events = append(events, Event{
			TimestampHMS: HMS(0),
			Type:         EventLowGesture,
			Severity:     "low",
			Title:        "Limited gesture use",
			Message:      "Consider using a few deliberate hand gestures for emphasis.",
		})
	case LevelHigh:
		events = append(events, Event{
			TimestampHMS: HMS(0),
			Type:         EventHighGesture,
			Severity:     "medium",
			Title:        "High gesture intensity",
			Message:      "Energetic movement detected; keep gestures intentional.",
		})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp < events[j].Timestamp })
	return events
}

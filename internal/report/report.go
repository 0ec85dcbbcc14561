// Package report turns merged analysis metrics into coaching output: timeline
// markers pinned to points in the clip and a short list of summary feedback
// sentences.
package report

import (
	"fmt"
	"math"
	"sort"

	"github.com/MrWong99/podium/internal/delivery"
	"github.com/MrWong99/podium/internal/nonverbal"
	"github.com/MrWong99/podium/internal/speech"
)

// defaultDuration places markers when the clip length is unknown.
const defaultDuration = 30.0

// Severity of a marker.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Marker is one coaching note on the clip timeline.
type Marker struct {
	Second   float64  `json:"second"`
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Report is the coaching block added to a record.
type Report struct {
	Markers  []Marker `json:"timeline_markers"`
	Feedback []string `json:"summary_feedback"`
}

// Input is everything the report is derived from. Speech is nil when no
// transcript was produced.
type Input struct {
	DurationSeconds float64
	Speech          *speech.Metrics
	Audio           delivery.Result
	Visual          nonverbal.Metrics
}

// Build derives markers and feedback from in. It is a pure function.
func Build(in Input) Report {
	return Report{Markers: Markers(in), Feedback: Feedback(in)}
}

func at(v float64) float64 { return math.Round(math.Max(0, v)*100) / 100 }

// Markers returns the timeline markers ordered by time. A clip without any
// finding gets a single encouraging marker at its midpoint.
func Markers(in Input) []Marker {
	d := in.DurationSeconds
	if d <= 0 {
		d = defaultDuration
	}
	var out []Marker

	if s := in.Speech; s != nil {
		switch s.PaceLabel {
		case speech.PaceFast:
			out = append(out, Marker{at(d * 0.25), "pace", SeverityWarning, "Pace is fast here. Add short pauses to improve clarity."})
		case speech.PaceSlow:
			out = append(out, Marker{at(d * 0.25), "pace", SeverityWarning, "Pace is slow here. Tighten sentence openings and transitions."})
		}
		for i, f := range s.FillerWords {
			if i == 3 {
				break
			}
			sev := SeverityInfo
			if f.Count >= 3 {
				sev = SeverityWarning
			}
			out = append(out, Marker{
				at(d * (0.35 + float64(i)*0.18)), "filler_words", sev,
				fmt.Sprintf("Filler word %q appears often (%d times).", f.Word, f.Count),
			})
		}
		if s.StutterEvents > 0 {
			out = append(out, Marker{at(d * 0.65), "fluency", SeverityWarning,
				fmt.Sprintf("Repeated-word stutters detected (%d).", s.StutterEvents)})
		}
	}

	if in.Audio.Monotone.Label == delivery.PitchMonotone {
		out = append(out, Marker{at(d * 0.4), "tone", SeverityWarning,
			"Low pitch variation detected. Add more vocal inflection on key points."})
	}

	vol := in.Audio.Volume
	trailingAt := d * 0.75
	if len(vol.TrailingOffExamples) > 0 {
		trailingAt = vol.TrailingOffExamples[0].Start
	}
	switch {
	case vol.TooQuiet:
		out = append(out, Marker{at(trailingAt), "volume", SeverityWarning,
			"Overall volume is low. Project your voice more consistently."})
	case vol.TrailingOffRatio >= 0.35:
		out = append(out, Marker{at(trailingAt), "volume", SeverityWarning,
			"You tend to trail off at sentence endings. Maintain volume through the final word."})
	}

	sil := in.Audio.Silence
	if sil.AwkwardSilences > 0 {
		awkwardAt := d * 0.55
		if len(sil.AwkwardExamples) > 0 {
			awkwardAt = sil.AwkwardExamples[0].Start
		}
		out = append(out, Marker{at(awkwardAt), "silence", SeverityWarning,
			"Awkward mid-sentence silence detected. Pause after complete thoughts instead."})
	}

	for _, ev := range in.Visual.NonVerbalEvents {
		out = append(out, Marker{at(ev.Timestamp), "non_verbal", eventSeverity(ev.Severity), ev.Message})
	}

	if len(out) == 0 {
		out = append(out, Marker{at(d * 0.5), "overall", SeverityInfo,
			"Great baseline delivery. Keep practicing for consistency."})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Second < out[j].Second })
	return out
}

func eventSeverity(s string) Severity {
	switch s {
	case "high":
		return SeverityCritical
	case "medium":
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Feedback returns the summary sentences in a fixed topic order: pace,
// fillers, fluency, tone, volume, pauses, then body language.
func Feedback(in Input) []string {
	out := []string{}

	if s := in.Speech; s != nil {
		wpm := "n/a"
		if s.WordsPerMinute != nil {
			wpm = fmt.Sprintf("%.1f", *s.WordsPerMinute)
		}
		switch s.PaceLabel {
		case speech.PaceFast:
			out = append(out, fmt.Sprintf("You are speaking quickly (~%s WPM). Aim for 120-160 WPM and pause at key points.", wpm))
		case speech.PaceSlow:
			out = append(out, fmt.Sprintf("You are speaking slowly (~%s WPM). Try shorter phrases and more vocal energy.", wpm))
		case speech.PaceGood:
			out = append(out, fmt.Sprintf("Your pace is in a strong range (~%s WPM).", wpm))
		}

		switch {
		case s.FillerWordCount >= 6:
			out = append(out, "High filler-word usage detected. Replace fillers with short silent pauses.")
		case s.FillerWordCount > 0:
			out = append(out, "Some filler words detected. Practice intentional pauses before key points.")
		default:
			out = append(out, "Filler-word usage looks clean in this sample.")
		}

		if s.StutterEvents > 0 {
			out = append(out, "Minor stutter patterns detected. Slow down sentence starts and breathe between points.")
		}
	}

	switch in.Audio.Monotone.Label {
	case delivery.PitchMonotone:
		out = append(out, "Your pitch variation is limited. Emphasize key words with intentional inflection.")
	case delivery.PitchDynamic:
		out = append(out, "Vocal inflection is dynamic and helps keep attention.")
	}

	switch vol := in.Audio.Volume; {
	case vol.TooQuiet:
		out = append(out, "Overall volume is quiet. Increase projection so every sentence lands clearly.")
	case vol.TrailingOffRatio >= 0.35:
		out = append(out, "You trail off at sentence endings. Keep your volume steady through the final phrase.")
	}

	switch sil := in.Audio.Silence; {
	case sil.AwkwardSilences > 0:
		out = append(out, fmt.Sprintf("%d awkward mid-sentence silence(s) detected. Pause after complete thoughts.", sil.AwkwardSilences))
	case sil.EffectivePauses > 0:
		out = append(out, fmt.Sprintf("%d effective pause(s) detected after sentence boundaries.", sil.EffectivePauses))
	}

	v := in.Visual
	switch v.ActivityLevel {
	case nonverbal.LevelLow:
		out = append(out, "Gestures are limited. Use a few deliberate hand movements to emphasise key points.")
	case nonverbal.LevelHigh:
		out = append(out, "Gestures are very energetic. Keep movements purposeful so they support your message.")
	}
	switch v.EyeContactLevel {
	case nonverbal.LevelLow:
		out = append(out, "You often moved away from the camera. Keep your face centred and steady in frame.")
	case nonverbal.LevelHigh:
		out = append(out, "You stayed steady and centred on camera.")
	}
	switch v.PostureLevel {
	case nonverbal.LevelUnstable:
		out = append(out, "Noticeable upper-body sway. Plant your feet and keep your shoulders level.")
	case nonverbal.LevelStable:
		out = append(out, "Your posture looked steady throughout.")
	}
	return out
}

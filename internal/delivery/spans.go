package delivery

import (
	"regexp"
	"strings"

	"github.com/MrWong99/podium/internal/calibration"
	"github.com/MrWong99/podium/pkg/provider/stt"
	"github.com/MrWong99/podium/pkg/provider/vad"
)

// sentenceEnd matches terminal punctuation, optionally followed by closing
// quotes or brackets.
var sentenceEnd = regexp.MustCompile(`[.!?]["')\]]*$`)

// isSentenceBoundary reports whether word closes a sentence.
func isSentenceBoundary(word string) bool {
	return sentenceEnd.MatchString(strings.TrimSpace(word))
}

// span is an utterance interval in seconds.
type span struct {
	start, end float64
}

// unit is one stretch of speech used for pause detection: a word when a
// transcript is available, otherwise a VAD speech segment.
type unit struct {
	start, end  float64
	sentenceEnd bool
}

func wordUnits(words []stt.Word) []unit {
	out := make([]unit, 0, len(words))
	for _, w := range words {
		out = append(out, unit{
			start:       w.Start.Seconds(),
			end:         w.End.Seconds(),
			sentenceEnd: isSentenceBoundary(w.Text),
		})
	}
	return out
}

func segmentUnits(segs []vad.Segment) []unit {
	out := make([]unit, 0, len(segs))
	for _, s := range segs {
		out = append(out, unit{start: s.Start.Seconds(), end: s.End.Seconds()})
	}
	return out
}

// sentenceSpans groups words into utterances, splitting on sentence
// punctuation or a long gap, and clips them to the clip duration.
func sentenceSpans(words []stt.Word, duration float64, cal calibration.Volume) []span {
	if len(words) == 0 {
		return nil
	}
	var raw []span
	start := words[0].Start.Seconds()
	prevEnd := words[0].End.Seconds()
	for i := 1; i < len(words); i++ {
		cur := words[i]
		gap := max(0, cur.Start.Seconds()-prevEnd)
		if isSentenceBoundary(words[i-1].Text) || gap >= cal.SpanGapSeconds {
			raw = append(raw, span{start, prevEnd})
			start = cur.Start.Seconds()
		}
		prevEnd = max(prevEnd, cur.End.Seconds())
	}
	raw = append(raw, span{start, prevEnd})
	return clipSpans(raw, duration, cal.MinSpanSeconds)
}

// segmentSpans treats each speech segment as an utterance.
func segmentSpans(segs []vad.Segment, duration float64, cal calibration.Volume) []span {
	raw := make([]span, 0, len(segs))
	for _, s := range segs {
		raw = append(raw, span{s.Start.Seconds(), s.End.Seconds()})
	}
	return clipSpans(raw, duration, cal.MinSpanSeconds)
}

func clipSpans(raw []span, duration, minSeconds float64) []span {
	out := make([]span, 0, len(raw))
	for _, sp := range raw {
		s := max(0, sp.start)
		e := max(s, sp.end)
		if duration > 0 {
			e = min(e, duration)
		}
		if e-s >= minSeconds {
			out = append(out, span{s, e})
		}
	}
	return out
}

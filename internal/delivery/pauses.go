package delivery

import "github.com/MrWong99/podium/internal/calibration"

// analyzePauses classifies every gap between consecutive speech units. A gap
// after a sentence boundary of moderate length reads as deliberate; a long
// gap mid-thought reads as hesitation. runBoundary lets a long preceding
// speech run count as a boundary, for units that carry no punctuation.
func analyzePauses(units []unit, runBoundary bool, cal calibration.Pauses) Silence {
	if len(units) < 2 {
		return unknownSilence()
	}

	effective := []Pause{}
	awkward := []Pause{}
	for i := 1; i < len(units); i++ {
		prev, cur := units[i-1], units[i]
		gap := max(0, cur.start-prev.end)
		if gap < cal.MinSeconds {
			continue
		}

		boundary := prev.sentenceEnd || gap >= cal.BoundaryGapSeconds
		if runBoundary && prev.end-prev.start >= cal.UtteranceMinSeconds {
			boundary = true
		}
		p := Pause{Start: round(prev.end, 2), End: round(cur.start, 2), Duration: round(gap, 2)}

		switch {
		case boundary && gap >= cal.EffectiveMinSeconds && gap <= cal.EffectiveMaxSeconds:
			effective = append(effective, p)
		case !boundary && gap >= cal.AwkwardMidSeconds, boundary && gap > cal.AwkwardBoundarySeconds:
			awkward = append(awkward, p)
		}
	}

	quality := PauseUnknown
	switch {
	case len(awkward) > 0 && len(awkward) >= len(effective):
		quality = PauseNeedsWork
	case len(effective) > 0 && len(awkward) == 0:
		quality = PauseEffective
	case len(effective) > 0 || len(awkward) > 0:
		quality = PauseMixed
	}

	return Silence{
		PauseQuality:      quality,
		EffectivePauses:   len(effective),
		AwkwardSilences:   len(awkward),
		EffectiveExamples: limit(effective, cal.MaxExamples),
		AwkwardExamples:   limit(awkward, cal.MaxExamples),
	}
}

func limit[T any](s []T, n int) []T {
	if n >= 0 && len(s) > n {
		return s[:n]
	}
	return s
}

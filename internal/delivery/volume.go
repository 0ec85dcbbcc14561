package delivery

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/MrWong99/podium/internal/calibration"
)

// rmsFloor keeps the dBFS of a silent window finite.
const rmsFloor = 1e-7

func rms(x []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, s := range x {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(x)))
}

// analyzeVolume measures windowed loudness and checks each utterance span for
// a quiet tail.
func analyzeVolume(samples []float32, sampleRate int, spans []span, cal calibration.Volume) Volume {
	sr := float64(sampleRate)
	frameSize := max(1, int(cal.WindowSeconds*sr))
	hop := max(1, int(cal.HopSeconds*sr))

	var (
		dbs  []float64
		peak float64
	)
	for start := 0; start < len(samples)-frameSize; start += hop {
		r := rms(samples[start : start+frameSize])
		peak = math.Max(peak, r)
		dbs = append(dbs, 20*math.Log10(math.Max(r, rmsFloor)))
	}
	if len(dbs) == 0 || peak < cal.SilenceFloorRMS {
		return unknownVolume()
	}

	mean, std := stat.PopMeanStdDev(dbs, nil)
	tooQuiet := mean < cal.TooQuietDBFS

	examples := []TrailingExample{}
	for _, sp := range spans {
		dur := sp.end - sp.start
		if dur < cal.TrailingMinSpanSeconds {
			continue
		}
		startIdx := int(sp.start * sr)
		endIdx := min(int(sp.end*sr), len(samples))
		if endIdx <= startIdx+10 {
			continue
		}
		segment := samples[startIdx:endIdx]
		tailSeconds := math.Min(cal.TrailingTailSeconds, dur*cal.TrailingTailFraction)
		tailLen := int(tailSeconds * sr)
		if tailLen <= 10 || tailLen >= len(segment) {
			continue
		}
		body := rms(segment[:len(segment)-tailLen])
		if body <= rmsFloor {
			continue
		}
		ratio := rms(segment[len(segment)-tailLen:]) / body
		if ratio < cal.TrailingRatio {
			examples = append(examples, TrailingExample{
				Start: round(math.Max(sp.start, sp.end-tailSeconds), 2),
				End:   round(sp.end, 2),
				Ratio: round(ratio, 2),
			})
		}
	}

	var trailingRatio float64
	if len(spans) > 0 {
		trailingRatio = float64(len(examples)) / float64(len(spans))
	}

	label := VolumeConsistent
	switch {
	case tooQuiet:
		label = VolumeTooQuiet
	case trailingRatio >= cal.InconsistentTrailingRatio || std > cal.InconsistentStdDB:
		label = VolumeInconsistent
	}

	count := len(examples)
	if cal.MaxExamples >= 0 && len(examples) > cal.MaxExamples {
		examples = examples[:cal.MaxExamples]
	}
	return Volume{
		ConsistencyLabel:    label,
		MeanDBFS:            ptr(round(mean, 2)),
		DBFSStd:             ptr(round(std, 2)),
		TooQuiet:            tooQuiet,
		TrailingOffEvents:   count,
		TrailingOffRatio:    round(trailingRatio, 2),
		TrailingOffExamples: examples,
	}
}

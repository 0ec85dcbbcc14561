package nonverbal

import "math"

// Level is a bucketed label for a visual score. The vocabulary is part of the
// JSON wire format.
type Level string

const (
	LevelUnknown  Level = "unknown"
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
	LevelUnstable Level = "unstable"
	LevelStable   Level = "stable"
)

// bucket assigns low, mid or high by half-open thresholds: v < lowBelow is
// low, v >= highFrom is high.
func bucket(v, lowBelow, highFrom float64, low, mid, high Level) Level {
	switch {
	case v < lowBelow:
		return low
	case v < highFrom:
		return mid
	default:
		return high
	}
}

func clamp10(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(10, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

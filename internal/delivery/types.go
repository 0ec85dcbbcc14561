package delivery

// PitchLabel classifies pitch variation.
type PitchLabel string

const (
	PitchUnknown       PitchLabel = "unknown"
	PitchMonotone      PitchLabel = "monotone"
	PitchSomeVariation PitchLabel = "some_variation"
	PitchDynamic       PitchLabel = "dynamic"
)

// VolumeLabel classifies loudness consistency.
type VolumeLabel string

const (
	VolumeUnknown      VolumeLabel = "unknown"
	VolumeConsistent   VolumeLabel = "consistent"
	VolumeInconsistent VolumeLabel = "inconsistent"
	VolumeTooQuiet     VolumeLabel = "too_quiet"
)

// PauseQuality classifies how well silences are placed.
type PauseQuality string

const (
	PauseUnknown   PauseQuality = "unknown"
	PauseEffective PauseQuality = "effective"
	PauseMixed     PauseQuality = "mixed"
	PauseNeedsWork PauseQuality = "needs_work"
)

// Monotone is the pitch-variation sub-score. Pointer fields are null when
// too few voiced frames were found.
type Monotone struct {
	Label             PitchLabel `json:"label"`
	IsMonotone        bool       `json:"is_monotone"`
	MeanPitchHz       *float64   `json:"mean_pitch_hz"`
	PitchVarianceHz   *float64   `json:"pitch_variance_hz"`
	PitchStdSemitones *float64   `json:"pitch_std_semitones"`
	VoicedFrames      int        `json:"voiced_frames"`
}

// TrailingExample marks the tail of an utterance whose loudness dropped.
type TrailingExample struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Ratio float64 `json:"ratio"`
}

// Volume is the loudness-consistency sub-score.
type Volume struct {
	ConsistencyLabel    VolumeLabel       `json:"consistency_label"`
	MeanDBFS            *float64          `json:"mean_dbfs"`
	DBFSStd             *float64          `json:"dbfs_std"`
	TooQuiet            bool              `json:"too_quiet"`
	TrailingOffEvents   int               `json:"trailing_off_events"`
	TrailingOffRatio    float64           `json:"trailing_off_ratio"`
	TrailingOffExamples []TrailingExample `json:"trailing_off_examples"`
}

// Pause is one silence between speech.
type Pause struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

// Silence is the pause-quality sub-score.
type Silence struct {
	PauseQuality      PauseQuality `json:"pause_quality"`
	EffectivePauses   int          `json:"effective_pauses"`
	AwkwardSilences   int          `json:"awkward_silences"`
	EffectiveExamples []Pause      `json:"effective_examples"`
	AwkwardExamples   []Pause      `json:"awkward_examples"`
}

// Result is the audio_delivery block of an analysis record.
type Result struct {
	Monotone Monotone `json:"monotone"`
	Volume   Volume   `json:"volume"`
	Silence  Silence  `json:"silence"`
}

// Unknown returns the result used when no audio could be analysed.
func Unknown() Result {
	return Result{
		Monotone: unknownMonotone(0),
		Volume:   unknownVolume(),
		Silence:  unknownSilence(),
	}
}

func unknownMonotone(voiced int) Monotone {
	return Monotone{Label: PitchUnknown, VoicedFrames: voiced}
}

func unknownVolume() Volume {
	return Volume{ConsistencyLabel: VolumeUnknown, TrailingOffExamples: []TrailingExample{}}
}

func unknownSilence() Silence {
	return Silence{
		PauseQuality:      PauseUnknown,
		EffectiveExamples: []Pause{},
		AwkwardExamples:   []Pause{},
	}
}

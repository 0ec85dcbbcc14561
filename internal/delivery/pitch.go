package delivery

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/stat"

	"github.com/MrWong99/podium/internal/calibration"
)

// ClassifyPitchVariation buckets a semitone standard deviation. Boundaries
// are half-open: a value equal to MonotoneBelow is already some_variation.
func ClassifyPitchVariation(semitoneStd float64, cal calibration.Pitch) PitchLabel {
	switch {
	case semitoneStd < cal.MonotoneBelow:
		return PitchMonotone
	case semitoneStd < cal.DynamicFrom:
		return PitchSomeVariation
	default:
		return PitchDynamic
	}
}

// analyzePitch estimates a fundamental frequency per voiced frame from the
// normalised autocorrelation peak and reports the spread in semitones.
func analyzePitch(samples []float32, sampleRate int, cal calibration.Pitch) Monotone {
	sr := float64(sampleRate)
	frameSize := int(cal.FrameSeconds * sr)
	hop := max(1, int(cal.HopSeconds*sr))
	minLag := max(1, int(sr/cal.MaxHz))
	maxLag := max(minLag+1, int(sr/cal.MinHz))
	if frameSize < 2 || len(samples) < frameSize+1 || frameSize <= maxLag {
		return unknownMonotone(0)
	}

	ones := make([]float64, frameSize)
	for i := range ones {
		ones[i] = 1
	}
	hann := window.Hann(ones)

	// Zero padding to at least twice the frame keeps the FFT autocorrelation
	// linear rather than circular over the searched lags.
	nfft := 1
	for nfft < 2*frameSize {
		nfft <<= 1
	}
	fft := fourier.NewFFT(nfft)
	buf := make([]float64, nfft)
	coeff := make([]complex128, nfft/2+1)
	ac := make([]float64, nfft)

	var pitches []float64
	for start := 0; start < len(samples)-frameSize; start += hop {
		frame := samples[start : start+frameSize]

		var mean float64
		for _, s := range frame {
			mean += float64(s)
		}
		mean /= float64(frameSize)

		var energy float64
		for _, s := range frame {
			d := float64(s) - mean
			energy += d * d
		}
		if math.Sqrt(energy/float64(frameSize)) < cal.VoicedRMS {
			continue
		}

		clear(buf)
		for i, s := range frame {
			buf[i] = (float64(s) - mean) * hann[i]
		}
		coeff = fft.Coefficients(coeff, buf)
		for i, c := range coeff {
			coeff[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
		}
		ac = fft.Sequence(ac, coeff)

		zero := ac[0]
		if zero <= 0 {
			continue
		}
		peak := minLag
		for lag := minLag + 1; lag <= maxLag; lag++ {
			if ac[lag] > ac[peak] {
				peak = lag
			}
		}
		if ac[peak]/(zero+1e-9) < cal.MinPeriodicity {
			continue
		}
		f0 := sr / float64(peak)
		if f0 >= cal.MinHz && f0 <= cal.MaxHz {
			pitches = append(pitches, f0)
		}
	}

	if len(pitches) < cal.MinVoicedFrames {
		return unknownMonotone(len(pitches))
	}

	meanHz, variance := stat.PopMeanVariance(pitches, nil)
	semis := make([]float64, len(pitches))
	for i, p := range pitches {
		semis[i] = 12 * math.Log2(math.Max(p, 1e-6))
	}
	std := stat.PopStdDev(semis, nil)
	label := ClassifyPitchVariation(std, cal)

	return Monotone{
		Label:             label,
		IsMonotone:        label == PitchMonotone,
		MeanPitchHz:       ptr(round(meanHz, 1)),
		PitchVarianceHz:   ptr(round(variance, 2)),
		PitchStdSemitones: ptr(round(std, 2)),
		VoicedFrames:      len(pitches),
	}
}

func ptr[T any](v T) *T { return &v }

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

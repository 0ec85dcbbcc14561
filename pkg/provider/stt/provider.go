// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription engine (a local whisper.cpp model or
// a whisper-server over HTTP) and turns a complete decoded clip into a
// Transcript with per-word timings. Word timings let the delivery scorer tell
// a pause at a sentence boundary from a mid-sentence silence, and let the
// speech metrics compute pace and fillers.
//
// Transcription is optional everywhere in this module: callers that receive
// an error fall back to energy-based segmentation and an empty transcript.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrEmptyAudio is returned when Transcribe is called without samples.
var ErrEmptyAudio = errors.New("stt: no audio samples")

// Provider is the abstraction over any batch STT backend.
type Provider interface {
	// Transcribe recognises speech in mono samples normalised to [-1, 1] at
	// sampleRate Hz. Word timings are relative to the first sample.
	//
	// Returns an error if the backend fails or ctx is cancelled. An empty
	// Transcript with a nil error means no speech was recognised.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (Transcript, error)
}

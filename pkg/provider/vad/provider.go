// Package vad defines the Engine interface for Voice Activity Detection backends.
//
// A VAD engine wraps a frame-level speech detector (an energy gate, Silero,
// WebRTC VAD) and surfaces it as a stateful, per-stream session. Each session
// maintains its own internal state (hysteresis counters, smoothing history) so
// that several clips can be segmented concurrently.
//
// VAD is synchronous by design: ProcessFrame returns immediately with a
// detection result. [Detect] drives a session over a whole decoded clip and
// returns the speech segments, which the delivery scorer uses for utterance
// spans and pause detection when no word timings are available.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle should not be shared across goroutines unless the
// implementation explicitly documents thread safety for that type.
package vad

import "errors"

// ErrFrameSize is returned by ProcessFrame when the frame length does not
// match the configured frame size.
var ErrFrameSize = errors.New("vad: frame size mismatch")

// ErrClosed is returned by ProcessFrame after Close.
var ErrClosed = errors.New("vad: session is closed")

// Config holds the parameters for a VAD session. All numeric thresholds are
// expressed in the engine's native scale; see each Engine's documentation for
// recommended starting values.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// samples passed to ProcessFrame. Common values: 8000, 16000, 48000.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds. Most VAD
	// models operate on fixed frame sizes (e.g., 10, 20, or 30 ms).
	// ProcessFrame returns ErrFrameSize if the supplied frame does not match.
	FrameSizeMs int

	// SpeechThreshold is the level above which a frame is classified as
	// speech. Higher values reduce false positives at the cost of increased
	// speech start latency.
	SpeechThreshold float64

	// SilenceThreshold is the level below which a frame is classified as
	// silence and an active speech segment is considered ended. Must be
	// ≤ SpeechThreshold.
	SilenceThreshold float64
}

// FrameLen returns the number of samples in one frame, or 0 when the
// configuration is incomplete.
func (c Config) FrameLen() int {
	if c.SampleRate <= 0 || c.FrameSizeMs <= 0 {
		return 0
	}
	return c.SampleRate * c.FrameSizeMs / 1000
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, errors.New("vad: sample rate must be positive"))
	}
	if c.FrameSizeMs <= 0 {
		errs = append(errs, errors.New("vad: frame size must be positive"))
	} else if c.FrameLen() == 0 {
		errs = append(errs, errors.New("vad: frame shorter than one sample"))
	}
	if c.SilenceThreshold > c.SpeechThreshold {
		errs = append(errs, errors.New("vad: silence threshold exceeds speech threshold"))
	}
	return errors.Join(errs...)
}

// SessionHandle represents an active VAD session for a single audio stream.
// It is an interface so that test code can supply mock implementations
// without a live engine. Reset clears detection state without closing the
// session.
type SessionHandle interface {
	// ProcessFrame analyses a single frame of normalised mono samples at the
	// SampleRate and FrameSizeMs configured when the session was created.
	// Returns ErrFrameSize if the frame length is wrong.
	ProcessFrame(frame []float32) (VADEvent, error)

	// Reset clears all accumulated detection state without closing the
	// session.
	Reset()

	// Close releases all resources associated with the session. After Close,
	// ProcessFrame returns ErrClosed. Calling Close more than once is safe and
	// returns nil.
	Close() error
}

// Engine is the factory for VAD sessions. It is the top-level interface
// implemented by each VAD backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may call
// NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a new VAD session with the given configuration. The
	// session is immediately ready to accept audio frames.
	//
	// Returns an error if the configuration is invalid or if the engine cannot
	// allocate resources for the session.
	NewSession(cfg Config) (SessionHandle, error)
}

// Package energy provides a pure-Go VAD engine that gates frames on RMS
// energy with hysteresis.
//
// Thresholds in vad.Config are RMS levels of normalised samples in [-1, 1].
// A frame at or above SpeechThreshold counts toward speech onset; once in
// speech, frames below SilenceThreshold count toward the end of the segment.
// Requiring several consecutive frames on each side avoids flickering on
// plosives and short dips between syllables.
package energy

import (
	"fmt"
	"math"

	"github.com/MrWong99/podium/pkg/audio"
	"github.com/MrWong99/podium/pkg/provider/vad"
)

const (
	// DefaultSpeechThreshold suits 16 kHz speech recorded at normal levels.
	DefaultSpeechThreshold = 0.015

	// DefaultSilenceThreshold ends a segment once the level falls below it.
	DefaultSilenceThreshold = 0.008

	defaultStartFrames    = 2
	defaultHangoverFrames = 2
)

var _ vad.Engine = (*Engine)(nil)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithStartFrames sets how many consecutive loud frames open a segment.
func WithStartFrames(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.startFrames = n
		}
	}
}

// WithHangoverFrames sets how many consecutive quiet frames close a segment.
func WithHangoverFrames(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.hangoverFrames = n
		}
	}
}

// Engine creates energy-gated VAD sessions. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	startFrames    int
	hangoverFrames int
}

// New returns an Engine with the given options applied.
func New(opts ...Option) *Engine {
	e := &Engine{
		startFrames:    defaultStartFrames,
		hangoverFrames: defaultHangoverFrames,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewSession validates cfg and returns a fresh session. Zero thresholds are
// replaced by the package defaults.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.SpeechThreshold <= 0 {
		cfg.SpeechThreshold = DefaultSpeechThreshold
	}
	if cfg.SilenceThreshold <= 0 {
		cfg.SilenceThreshold = math.Min(DefaultSilenceThreshold, cfg.SpeechThreshold)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("energy: %w", err)
	}
	return &session{
		cfg:            cfg,
		frameLen:       cfg.FrameLen(),
		startFrames:    e.startFrames,
		hangoverFrames: e.hangoverFrames,
	}, nil
}

// session is not safe for concurrent use.
type session struct {
	cfg            vad.Config
	frameLen       int
	startFrames    int
	hangoverFrames int

	inSpeech     bool
	speechCount  int
	silenceCount int
	closed       bool
}

func (s *session) ProcessFrame(frame []float32) (vad.VADEvent, error) {
	if s.closed {
		return vad.VADEvent{}, vad.ErrClosed
	}
	if len(frame) != s.frameLen {
		return vad.VADEvent{}, fmt.Errorf("%w: got %d samples, want %d", vad.ErrFrameSize, len(frame), s.frameLen)
	}

	level := audio.RMS(frame)
	prob := math.Min(1, level/s.cfg.SpeechThreshold)

	if s.inSpeech {
		if level < s.cfg.SilenceThreshold {
			s.silenceCount++
			if s.silenceCount >= s.hangoverFrames {
				s.inSpeech = false
				s.silenceCount = 0
				s.speechCount = 0
				return vad.VADEvent{Type: vad.VADSpeechEnd, Probability: prob}, nil
			}
		} else {
			s.silenceCount = 0
		}
		return vad.VADEvent{Type: vad.VADSpeechContinue, Probability: prob}, nil
	}

	if level >= s.cfg.SpeechThreshold {
		s.speechCount++
		if s.speechCount >= s.startFrames {
			s.inSpeech = true
			s.speechCount = 0
			return vad.VADEvent{Type: vad.VADSpeechStart, Probability: prob}, nil
		}
	} else {
		s.speechCount = 0
	}
	return vad.VADEvent{Type: vad.VADSilence, Probability: prob}, nil
}

func (s *session) Reset() {
	s.inSpeech = false
	s.speechCount = 0
	s.silenceCount = 0
}

func (s *session) Close() error {
	s.closed = true
	return nil
}

package video

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"math"
	"time"
)

// dueTolerance absorbs container timestamp jitter when deciding whether a
// frame reaches the next sampling slot.
const dueTolerance = time.Millisecond

// Sampler selects frames at a fixed rate from a decoded stream.
type Sampler struct {
	fps      float64
	interval time.Duration
}

// NewSampler returns a Sampler emitting targetFPS frames per second. It
// returns [ErrInvalidFPS] when targetFPS is not positive.
func NewSampler(targetFPS float64) (*Sampler, error) {
	if targetFPS <= 0 || math.IsNaN(targetFPS) || math.IsInf(targetFPS, 0) {
		return nil, ErrInvalidFPS
	}
	return &Sampler{
		fps:      targetFPS,
		interval: time.Duration(float64(time.Second) / targetFPS),
	}, nil
}

// FPS returns the configured sampling rate.
func (s *Sampler) FPS() float64 { return s.fps }

// Frames opens src and returns the sampled frame sequence. Each source frame
// is decoded once; a frame is emitted when its timestamp reaches the next
// slot k/targetFPS, so output spacing stays close to 1/targetFPS whatever the
// native rate. Sources slower than the target emit every frame.
//
// The sequence is single-use. Open and decode failures end it early and are
// logged, never returned. Cancelling ctx stops decoding.
func (s *Sampler) Frames(ctx context.Context, src Source) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		if src == nil {
			return
		}
		stream, err := src.Open(ctx, s.fps)
		if err != nil {
			slog.Warn("video: open failed, no frames will be sampled", "err", err)
			return
		}
		defer stream.Close()

		var (
			next    time.Duration
			last    = time.Duration(-1)
			emitted int
		)
		for {
			if ctx.Err() != nil {
				return
			}
			f, err := stream.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				slog.Warn("video: decode failed, ending sample pass", "err", err, "emitted", emitted)
				return
			}
			if f.Timestamp <= last || f.Timestamp+dueTolerance < next {
				continue
			}
			last = f.Timestamp
			// Advance to the first slot after this frame so a long gap in the
			// source does not trigger a burst of catch-up frames.
			k := int64(f.Timestamp+dueTolerance)/int64(s.interval) + 1
			next = time.Duration(k) * s.interval
			emitted++
			if !yield(f) {
				return
			}
		}
		if emitted == 0 {
			slog.Warn("video: source produced no decodable frames")
		}
	}
}

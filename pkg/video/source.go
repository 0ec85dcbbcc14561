// Package video decodes recorded clips into timestamped frames and samples
// them at a fixed rate.
//
// A [Source] opens a [Stream] of decoded frames in presentation order. The
// [Sampler] wraps a stream and yields the frames due at a target rate, one
// decode pass per clip. Unopenable or empty sources produce an empty sequence;
// callers treat that as "no visual signal", never as an error.
package video

import (
	"context"
	"errors"
	"image"
	"time"
)

// DefaultTargetFPS is the sampling rate used when callers do not choose one.
const DefaultTargetFPS = 5.0

// ErrInvalidFPS is returned when a sampling rate is zero or negative.
var ErrInvalidFPS = errors.New("video: target fps must be positive")

// Frame is a single decoded image at a point in the clip.
type Frame struct {
	// Index is the zero-based position of the frame in the decoded stream.
	Index int

	// Timestamp is the presentation time relative to the clip start.
	Timestamp time.Duration

	// Image holds the decoded pixels. It is only valid until the next frame
	// is requested from the same stream.
	Image image.Image
}

// Seconds returns the frame timestamp in seconds.
func (f Frame) Seconds() float64 { return f.Timestamp.Seconds() }

// Stream yields decoded frames in presentation order.
type Stream interface {
	// Next returns the next frame, or io.EOF once the stream is exhausted.
	Next() (Frame, error)

	// Close releases decoder resources. Calling Close more than once is safe.
	Close() error
}

// Source opens decodable frame streams.
type Source interface {
	// Open starts decoding. maxFPS is a hint: sources that can drop frames
	// cheaply before decoding may cap their output at that rate, but must
	// still report timestamps on the original timeline.
	Open(ctx context.Context, maxFPS float64) (Stream, error)
}

package video

import (
	"context"
	"image"
	"io"
	"time"
)

// MemorySource replays in-memory images at a fixed native frame rate. It backs
// synthetic clips in tests and callers that already hold decoded frames.
type MemorySource struct {
	// FPS is the native frame rate used to derive timestamps.
	FPS float64

	// Images are the frames in presentation order.
	Images []image.Image

	// Render, if set, is called for frame indices 0..Count-1 instead of
	// reading Images. It lets long synthetic clips avoid holding every frame.
	Render func(index int) image.Image

	// Count is the number of frames produced by Render.
	Count int
}

var _ Source = (*MemorySource)(nil)

// Open returns a stream over the configured frames. It never fails.
func (m *MemorySource) Open(context.Context, float64) (Stream, error) {
	n := len(m.Images)
	if m.Render != nil {
		n = m.Count
	}
	return &memoryStream{src: m, total: n}, nil
}

type memoryStream struct {
	src   *MemorySource
	total int
	pos   int
}

func (s *memoryStream) Next() (Frame, error) {
	if s.pos >= s.total || s.src.FPS <= 0 {
		return Frame{}, io.EOF
	}
	i := s.pos
	s.pos++
	var img image.Image
	if s.src.Render != nil {
		img = s.src.Render(i)
	} else {
		img = s.src.Images[i]
	}
	return Frame{
		Index:     i,
		Timestamp: time.Duration(float64(i) / s.src.FPS * float64(time.Second)),
		Image:     img,
	}, nil
}

func (s *memoryStream) Close() error {
	s.pos = s.total
	return nil
}

package vad

import (
	"fmt"
	"time"
)

// Detect opens a session on eng, feeds samples through it in frames of
// cfg.FrameSizeMs and returns the speech segments in order. A trailing
// partial frame is ignored; a segment still open at the end of input closes
// at the end of the last full frame.
func Detect(eng Engine, cfg Config, samples []float32) ([]Segment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sess, err := eng.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("vad: new session: %w", err)
	}
	defer sess.Close()

	n := cfg.FrameLen()
	frameDur := time.Duration(cfg.FrameSizeMs) * time.Millisecond

	var (
		segments []Segment
		open     bool
		start    time.Duration
		frames   int
	)
	for off := 0; off+n <= len(samples); off += n {
		ev, err := sess.ProcessFrame(samples[off : off+n])
		if err != nil {
			return segments, fmt.Errorf("vad: frame %d: %w", frames, err)
		}
		at := time.Duration(frames) * frameDur
		switch {
		case ev.Type.IsSpeech() && !open:
			open, start = true, at
		case !ev.Type.IsSpeech() && open:
			open = false
			segments = append(segments, Segment{Start: start, End: at})
		}
		frames++
	}
	if open {
		segments = append(segments, Segment{Start: start, End: time.Duration(frames) * frameDur})
	}
	return segments, nil
}

package stt

import (
	"strings"
	"time"
)

// Transcript is the recognised speech of one clip.
type Transcript struct {
	// Text is the full transcribed content.
	Text string

	// Language is the detected or requested language code. May be empty.
	Language string

	// Words holds per-word timings in spoken order. May be nil when the
	// backend recognised nothing.
	Words []Word
}

// Empty reports whether nothing was recognised.
func (t Transcript) Empty() bool {
	return strings.TrimSpace(t.Text) == "" && len(t.Words) == 0
}

// Word is one recognised word with its timing.
type Word struct {
	// Text is the word as spoken, including attached punctuation such as a
	// trailing full stop.
	Text string

	// Start and End are offsets from the beginning of the clip.
	Start time.Duration
	End   time.Duration

	// Confidence is the recognition probability (0.0–1.0). May be zero if the
	// backend does not report it.
	Confidence float64
}

// JoinWords concatenates word texts with single spaces.
func JoinWords(words []Word) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

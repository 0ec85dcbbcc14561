// Package audio decodes the audio track of recorded media into normalised
// mono samples and provides the PCM helpers shared by the analysis and
// transcription layers.
//
// Decoding is delegated to an ffmpeg subprocess so any container ffmpeg can
// read is supported. Failures are reported as errors that map onto
// human-readable notes through [Note]; callers are expected to degrade to an
// "unknown" audio result rather than abort.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultSampleRate is the analysis sample rate in Hz.
const DefaultSampleRate = 16000

// minClipSeconds is the shortest clip considered usable for tonal analysis.
const minClipSeconds = 0.75

// maxStderrNote bounds how much ffmpeg stderr is echoed into a note.
const maxStderrNote = 120

var (
	// ErrFFmpegMissing is returned when the ffmpeg binary cannot be resolved.
	ErrFFmpegMissing = errors.New("audio: ffmpeg not found")

	// ErrFFprobeMissing is returned when the ffprobe binary cannot be resolved.
	ErrFFprobeMissing = errors.New("audio: ffprobe not found")

	// ErrNoSamples is returned when ffmpeg produced no audio at all.
	ErrNoSamples = errors.New("audio: extraction returned no samples")

	// ErrTooShort is returned when the decoded clip is shorter than 0.75 s.
	ErrTooShort = errors.New("audio: clip too short for tonal analysis")
)

// FFmpegError reports a failed ffmpeg run together with its stderr.
type FFmpegError struct {
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("audio: ffmpeg: %v", e.Err)
	}
	return fmt.Sprintf("audio: ffmpeg: %v (%s)", e.Err, e.Stderr)
}

func (e *FFmpegError) Unwrap() error { return e.Err }

// Clip is decoded mono audio.
type Clip struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the clip length.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// Extractor decodes media audio with ffmpeg. The zero value uses "ffmpeg" from
// PATH at [DefaultSampleRate].
type Extractor struct {
	// FFmpeg is the ffmpeg binary. Empty means "ffmpeg".
	FFmpeg string

	// SampleRate is the output rate in Hz. Zero means DefaultSampleRate.
	SampleRate int
}

func (e *Extractor) rate() int {
	if e.SampleRate > 0 {
		return e.SampleRate
	}
	return DefaultSampleRate
}

// Extract decodes the first audio track of path to mono float32 samples. The
// returned clip is only usable when err is nil.
func (e *Extractor) Extract(ctx context.Context, path string) (Clip, error) {
	sr := e.rate()
	bin := e.FFmpeg
	if bin == "" {
		bin = "ffmpeg"
	}
	resolved, err := exec.LookPath(bin)
	if err != nil {
		return Clip{SampleRate: sr}, fmt.Errorf("%w: %v", ErrFFmpegMissing, err)
	}

	cmd := exec.CommandContext(ctx, resolved,
		"-v", "error",
		"-i", path,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sr),
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Clip{SampleRate: sr}, &FFmpegError{Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	if stdout.Len() == 0 {
		return Clip{SampleRate: sr}, ErrNoSamples
	}

	clip := Clip{Samples: PCMToFloat32(stdout.Bytes()), SampleRate: sr}
	if len(clip.Samples) < int(float64(sr)*minClipSeconds) {
		return Clip{SampleRate: sr}, ErrTooShort
	}
	return clip, nil
}

// MediaDuration reads the container duration with ffprobe. It works for
// audio-only files as well as video.
func MediaDuration(ctx context.Context, ffprobe, path string) (time.Duration, error) {
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	resolved, err := exec.LookPath(ffprobe)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFFprobeMissing, err)
	}
	cmd := exec.CommandContext(ctx, resolved,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("audio: ffprobe %q: %w", path, err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("audio: parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	if secs <= 0 {
		return 0, fmt.Errorf("audio: non-positive duration %v", secs)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Note converts an extraction error into the caller-facing explanation that
// accompanies an unknown audio result. It returns "" for a nil error.
func Note(err error) string {
	var ferr *FFmpegError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFFmpegMissing):
		return "ffmpeg not found. Audio tonal analysis was skipped."
	case errors.Is(err, ErrNoSamples):
		return "Audio extraction returned no samples. Tonal analysis was skipped."
	case errors.Is(err, ErrTooShort):
		return "Audio sample was too short for reliable tonal analysis."
	case errors.As(err, &ferr):
		note := "ffmpeg failed during audio extraction. Tonal analysis unavailable."
		if ferr.Stderr != "" {
			note += " (" + truncate(ferr.Stderr, maxStderrNote) + ")"
		}
		return note
	default:
		return "Audio extraction failed. Tonal analysis unavailable."
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

package audio_test

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/podium/pkg/audio"
)

func TestNote(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 200)
	// "é" occupies bytes 119 and 120, straddling the cut.
	accented := strings.Repeat("x", 119) + "é" + strings.Repeat("y", 40)
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "missing", err: fmt.Errorf("%w: not in PATH", audio.ErrFFmpegMissing), want: "ffmpeg not found. Audio tonal analysis was skipped."},
		{name: "empty", err: audio.ErrNoSamples, want: "Audio extraction returned no samples. Tonal analysis was skipped."},
		{name: "short", err: audio.ErrTooShort, want: "Audio sample was too short for reliable tonal analysis."},
		{
			name: "ffmpeg stderr",
			err:  &audio.FFmpegError{Stderr: "no audio stream", Err: errors.New("exit status 1")},
			want: "ffmpeg failed during audio extraction. Tonal analysis unavailable. (no audio stream)",
		},
		{
			name: "ffmpeg stderr truncated",
			err:  &audio.FFmpegError{Stderr: long, Err: errors.New("exit status 1")},
			want: "ffmpeg failed during audio extraction. Tonal analysis unavailable. (" + long[:120] + ")",
		},
		{
			name: "ffmpeg stderr truncated on rune boundary",
			err:  &audio.FFmpegError{Stderr: accented, Err: errors.New("exit status 1")},
			want: "ffmpeg failed during audio extraction. Tonal analysis unavailable. (" + strings.Repeat("x", 119) + ")",
		},
		{
			name: "ffmpeg stderr multibyte within bound",
			err:  &audio.FFmpegError{Stderr: "Datei nicht gefunden: präsentation.mp4", Err: errors.New("exit status 1")},
			want: "ffmpeg failed during audio extraction. Tonal analysis unavailable. (Datei nicht gefunden: präsentation.mp4)",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := audio.Note(tc.err)
			if got != tc.want {
				t.Errorf("Note() = %q, want %q", got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("Note() = %q is not valid UTF-8", got)
			}
		})
	}
}

func TestClipDuration(t *testing.T) {
	t.Parallel()
	c := audio.Clip{Samples: make([]float32, 24000), SampleRate: 16000}
	if got := c.Duration(); got != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", got)
	}
	if got := (audio.Clip{}).Duration(); got != 0 {
		t.Errorf("zero clip Duration = %v", got)
	}
}

func TestExtract_MissingBinary(t *testing.T) {
	t.Parallel()
	e := &audio.Extractor{FFmpeg: filepath.Join(t.TempDir(), "no-ffmpeg")}
	_, err := e.Extract(context.Background(), "clip.mp4")
	if !errors.Is(err, audio.ErrFFmpegMissing) {
		t.Errorf("err = %v, want ErrFFmpegMissing", err)
	}
}

func TestExtract_Synthetic(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not on PATH")
	}
	dir := t.TempDir()
	tone := filepath.Join(dir, "tone.wav")
	blip := filepath.Join(dir, "blip.wav")
	for path, dur := range map[string]string{tone: "2", blip: "0.3"} {
		gen := exec.Command("ffmpeg", "-v", "error", "-f", "lavfi",
			"-i", "sine=frequency=220:sample_rate=44100", "-t", dur, path)
		if out, err := gen.CombinedOutput(); err != nil {
			t.Skipf("cannot synthesise audio: %v (%s)", err, out)
		}
	}

	e := &audio.Extractor{}
	clip, err := e.Extract(context.Background(), tone)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if clip.SampleRate != audio.DefaultSampleRate {
		t.Errorf("SampleRate = %d", clip.SampleRate)
	}
	if d := clip.Duration(); d < 1900*time.Millisecond || d > 2100*time.Millisecond {
		t.Errorf("Duration = %v, want ~2s", d)
	}
	if rms := audio.RMS(clip.Samples); rms < 0.05 {
		t.Errorf("RMS = %v, want audible tone", rms)
	}

	if _, err := e.Extract(context.Background(), blip); !errors.Is(err, audio.ErrTooShort) {
		t.Errorf("short clip err = %v, want ErrTooShort", err)
	}

	var ferr *audio.FFmpegError
	if _, err := e.Extract(context.Background(), filepath.Join(dir, "missing.wav")); !errors.As(err, &ferr) {
		t.Errorf("missing file err = %v, want *FFmpegError", err)
	}

	if _, err := exec.LookPath("ffprobe"); err == nil {
		d, err := audio.MediaDuration(context.Background(), "", tone)
		if err != nil {
			t.Fatalf("MediaDuration: %v", err)
		}
		if d < 1900*time.Millisecond || d > 2100*time.Millisecond {
			t.Errorf("MediaDuration = %v, want ~2s", d)
		}
	}
}

package video

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// fallbackFPS is assumed when a container does not report a usable frame rate.
const fallbackFPS = 30.0

// Info describes the primary video stream of a container.
type Info struct {
	Width    int
	Height   int
	FPS      float64
	Duration time.Duration
}

// ReadInfo reads stream geometry and duration with ffprobe. A zero Duration
// means the container did not report one.
func ReadInfo(ctx context.Context, ffprobe, path string) (Info, error) {
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,avg_frame_rate,r_frame_rate:format=duration",
		"-of", "json",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return Info{}, fmt.Errorf("video: ffprobe %q: %w (%s)", path, err, strings.TrimSpace(stderr.String()))
	}
	return parseInfo(out)
}

type ffprobeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseInfo(data []byte) (Info, error) {
	var p ffprobeOutput
	if err := json.Unmarshal(data, &p); err != nil {
		return Info{}, fmt.Errorf("video: parse ffprobe output: %w", err)
	}
	if len(p.Streams) == 0 {
		return Info{}, errors.New("video: no video stream")
	}
	s := p.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return Info{}, fmt.Errorf("video: invalid frame size %dx%d", s.Width, s.Height)
	}
	info := Info{Width: s.Width, Height: s.Height}
	info.FPS = parseRate(s.AvgFrameRate)
	if info.FPS <= 0 {
		info.FPS = parseRate(s.RFrameRate)
	}
	if info.FPS <= 0 {
		info.FPS = fallbackFPS
	}
	if d, err := strconv.ParseFloat(p.Format.Duration, 64); err == nil && d > 0 {
		info.Duration = time.Duration(d * float64(time.Second))
	}
	return info, nil
}

// parseRate parses ffprobe rationals such as "30000/1001". It returns 0 for
// "0/0" and malformed input.
func parseRate(r string) float64 {
	num, den, found := strings.Cut(r, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// FFmpegSource decodes a media file by piping raw RGB frames out of ffmpeg.
type FFmpegSource struct {
	// Path is the media file to decode.
	Path string

	// FFmpeg and FFprobe are the binaries to run. Empty means look up
	// "ffmpeg" and "ffprobe" on PATH.
	FFmpeg  string
	FFprobe string
}

var _ Source = (*FFmpegSource)(nil)

// Open reads the stream info and starts ffmpeg. When maxFPS is below the native
// rate, ffmpeg's fps filter drops frames before they are converted, and
// timestamps are reported on the resampled grid.
func (s *FFmpegSource) Open(ctx context.Context, maxFPS float64) (Stream, error) {
	info, err := ReadInfo(ctx, s.FFprobe, s.Path)
	if err != nil {
		return nil, err
	}

	rate := info.FPS
	args := []string{"-v", "error", "-i", s.Path, "-an"}
	if maxFPS > 0 && maxFPS < info.FPS {
		rate = maxFPS
		args = append(args, "-vf", "fps="+strconv.FormatFloat(maxFPS, 'f', -1, 64))
	}
	args = append(args, "-f", "rawvideo", "-pix_fmt", "rgb24", "-")

	bin := s.FFmpeg
	if bin == "" {
		bin = "ffmpeg"
	}
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, bin, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("video: ffmpeg stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("video: start ffmpeg: %w", err)
	}

	return &ffmpegStream{
		cmd:    cmd,
		cancel: cancel,
		r:      bufio.NewReaderSize(stdout, 1<<20),
		stderr: &stderr,
		rate:   rate,
		raw:    make([]byte, info.Width*info.Height*3),
		img:    image.NewRGBA(image.Rect(0, 0, info.Width, info.Height)),
	}, nil
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	r      io.Reader
	stderr *bytes.Buffer
	rate   float64
	raw    []byte
	img    *image.RGBA
	pos    int

	closeOnce sync.Once
}

func (s *ffmpegStream) Next() (Frame, error) {
	if _, err := io.ReadFull(s.r, s.raw); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if werr := s.wait(); werr != nil && s.pos == 0 {
				return Frame{}, werr
			}
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("video: read frame %d: %w", s.pos, err)
	}
	for i, j := 0, 0; i < len(s.raw); i, j = i+3, j+4 {
		s.img.Pix[j] = s.raw[i]
		s.img.Pix[j+1] = s.raw[i+1]
		s.img.Pix[j+2] = s.raw[i+2]
		s.img.Pix[j+3] = 0xff
	}
	f := Frame{
		Index:     s.pos,
		Timestamp: time.Duration(float64(s.pos) / s.rate * float64(time.Second)),
		Image:     s.img,
	}
	s.pos++
	return f, nil
}

// wait reaps ffmpeg and reports a decode failure with its stderr.
func (s *ffmpegStream) wait() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.cmd.Wait()
		s.cancel()
	})
	if err != nil {
		return fmt.Errorf("video: ffmpeg: %w (%s)", err, strings.TrimSpace(s.stderr.String()))
	}
	return nil
}

func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.cmd.Wait()
	})
	return nil
}

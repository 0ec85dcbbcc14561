// Package analysis orchestrates a full delivery analysis of one recording.
//
// An [Analyzer] owns the process-wide collaborators (landmark detectors, an
// optional transcriber, calibration and metrics) and exposes three entry
// points: the visual pass over a frame source, the audio pass over decoded
// samples, and a file-level convenience that runs both concurrently and
// merges them into a single [Record].
//
// Contract violations (non-positive fps, nil source, empty path) are the only
// errors. Everything else degrades to unknown sub-scores with explanatory
// notes.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/podium/internal/calibration"
	"github.com/MrWong99/podium/internal/delivery"
	"github.com/MrWong99/podium/internal/nonverbal"
	"github.com/MrWong99/podium/internal/observe"
	"github.com/MrWong99/podium/internal/report"
	"github.com/MrWong99/podium/internal/speech"
	"github.com/MrWong99/podium/pkg/audio"
	"github.com/MrWong99/podium/pkg/landmark"
	"github.com/MrWong99/podium/pkg/provider/stt"
	"github.com/MrWong99/podium/pkg/provider/vad"
	"github.com/MrWong99/podium/pkg/video"
)

var (
	// ErrInvalidFPS is returned when the target sampling rate is not positive.
	ErrInvalidFPS = video.ErrInvalidFPS

	// ErrNilSource is returned when AnalyzeNonVerbal receives no source.
	ErrNilSource = errors.New("analysis: nil video source")

	// ErrEmptyPath is returned when AnalyzeFile receives an empty path.
	ErrEmptyPath = errors.New("analysis: empty media path")
)

// Notes attached to degraded records.
const (
	notePitchUnknown     = "Could not estimate pitch variation confidently for this recording."
	noteTranscribeFailed = "Transcription failed on this file. Returning analysis with empty transcript."
	noteFFprobeMissing   = "ffprobe not found. Could not auto-detect media duration."
	noteFFprobeFailed    = "ffprobe failed to read media duration."
)

// NonVerbal is the visual portion of a record.
type NonVerbal = nonverbal.Metrics

// Record is the merged analysis result. The visual fields are embedded so the
// JSON shape stays flat.
type Record struct {
	nonverbal.Metrics

	AudioDelivery delivery.Result `json:"audio_delivery"`

	// Notes explain degraded sub-scores. Always present, possibly empty.
	Notes []string `json:"notes"`

	// DurationSeconds is the media duration, when known.
	DurationSeconds float64 `json:"duration_seconds,omitempty"`

	// Transcript and Speech are set only when transcription ran.
	Transcript string          `json:"transcript,omitempty"`
	Speech     *speech.Metrics `json:"speech,omitempty"`

	// Report is set only when requested.
	Report *report.Report `json:"report,omitempty"`
}

// Merge combines the two independent passes into a structurally complete
// record. Either side may be in its unknown state.
func Merge(nv NonVerbal, audio delivery.Result) Record {
	return Record{Metrics: nv, AudioDelivery: audio, Notes: []string{}}
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithCalibration overrides the calibration table.
func WithCalibration(t calibration.Table) Option {
	return func(a *Analyzer) { a.cal = t }
}

// WithMetrics sets the metric instruments. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithTranscriber enables word-timed transcription in AnalyzeFile.
func WithTranscriber(p stt.Provider) Option {
	return func(a *Analyzer) { a.stt = p }
}

// WithSpeech replaces the transcript metrics analyzer.
func WithSpeech(s *speech.Analyzer) Option {
	return func(a *Analyzer) { a.speech = s }
}

// WithPostureSource selects the posture anchor.
func WithPostureSource(s nonverbal.PostureSource) Option {
	return func(a *Analyzer) { a.posture = s }
}

// WithVAD replaces the voice activity engine used without word timings.
func WithVAD(e vad.Engine) Option {
	return func(a *Analyzer) { a.vad = e }
}

// WithBinaries sets the ffmpeg and ffprobe executables. Empty values keep
// the PATH lookup.
func WithBinaries(ffmpeg, ffprobe string) Option {
	return func(a *Analyzer) {
		a.ffmpeg = ffmpeg
		a.ffprobe = ffprobe
	}
}

// WithSampleRate sets the audio extraction rate in Hz.
func WithSampleRate(hz int) Option {
	return func(a *Analyzer) {
		if hz > 0 {
			a.sampleRate = hz
		}
	}
}

// Analyzer runs analyses against a fixed set of collaborators. It is safe for
// concurrent use as long as its detectors and transcriber are.
type Analyzer struct {
	dets       landmark.Detectors
	cal        calibration.Table
	metrics    *observe.Metrics
	stt        stt.Provider
	speech     *speech.Analyzer
	posture    nonverbal.PostureSource
	vad        vad.Engine
	ffmpeg     string
	ffprobe    string
	sampleRate int
}

// New returns an Analyzer using dets for the visual pass.
func New(dets landmark.Detectors, opts ...Option) *Analyzer {
	a := &Analyzer{
		dets:       dets,
		cal:        calibration.Default(),
		posture:    nonverbal.PostureFromPose,
		sampleRate: audio.DefaultSampleRate,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.speech == nil {
		a.speech = speech.New(speech.WithPace(a.cal.Pace))
	}
	return a
}

// AnalyzeNonVerbal samples src at targetFPS and scores gesture energy,
// camera-facing stability and posture in one decode pass.
func (a *Analyzer) AnalyzeNonVerbal(ctx context.Context, src video.Source, targetFPS float64) (NonVerbal, error) {
	if src == nil {
		return NonVerbal{}, ErrNilSource
	}
	sampler, err := video.NewSampler(targetFPS)
	if err != nil {
		return NonVerbal{}, err
	}

	ctx, span := observe.StartSpan(ctx, "analysis.nonverbal",
		trace.WithAttributes(attribute.Float64("target_fps", targetFPS)))
	defer span.End()
	start := time.Now()

	m := nonverbal.Analyze(ctx, sampler.Frames(ctx, src), a.dets,
		nonverbal.WithCalibration(a.cal),
		nonverbal.WithPostureSource(a.posture),
		nonverbal.WithDetectHook(func(mod landmark.Modality, present bool) {
			a.metrics.RecordDetect(ctx, string(mod), present)
		}),
	)

	a.metrics.RecordStage(ctx, observe.StageVisual, time.Since(start))
	a.metrics.FramesSampled.Add(ctx, int64(m.FramesSampled))
	for name, lvl := range map[string]nonverbal.Level{
		"gesture":     m.ActivityLevel,
		"eye_contact": m.EyeContactLevel,
		"posture":     m.PostureLevel,
	} {
		if lvl == nonverbal.LevelUnknown {
			a.metrics.RecordUnknown(ctx, name)
		}
	}
	span.SetAttributes(attribute.Int("frames_sampled", m.FramesSampled))
	return m, nil
}

// AnalyzeAudioDelivery scores pitch variation, volume consistency and pauses.
// words may be nil; when present they supply utterance boundaries.
func (a *Analyzer) AnalyzeAudioDelivery(ctx context.Context, samples []float32, sampleRate int, words []stt.Word) delivery.Result {
	ctx, span := observe.StartSpan(ctx, "analysis.audio")
	defer span.End()
	start := time.Now()

	opts := []delivery.Option{delivery.WithCalibration(a.cal), delivery.WithWords(words)}
	if a.vad != nil {
		opts = append(opts, delivery.WithVAD(a.vad))
	}
	res := delivery.Analyze(samples, sampleRate, opts...)

	a.metrics.RecordStage(ctx, observe.StageAudio, time.Since(start))
	if res.Monotone.Label == delivery.PitchUnknown {
		a.metrics.RecordUnknown(ctx, "monotone")
	}
	if res.Volume.ConsistencyLabel == delivery.VolumeUnknown {
		a.metrics.RecordUnknown(ctx, "volume")
	}
	if res.Silence.PauseQuality == delivery.PauseUnknown {
		a.metrics.RecordUnknown(ctx, "silence")
	}
	return res
}

// FileOptions selects the optional parts of AnalyzeFile.
type FileOptions struct {
	// TargetFPS is the visual sampling rate. Zero means
	// [video.DefaultTargetFPS].
	TargetFPS float64

	// Transcribe runs the configured transcriber. Ignored when none is set.
	Transcribe bool

	// Report adds timeline markers and summary feedback.
	Report bool
}

// AnalyzeFile decodes path with ffmpeg and runs the visual and audio passes
// concurrently.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string, opts FileOptions) (Record, error) {
	if path == "" {
		return Record{}, ErrEmptyPath
	}
	fps := opts.TargetFPS
	if fps == 0 {
		fps = video.DefaultTargetFPS
	}
	if fps < 0 {
		return Record{}, ErrInvalidFPS
	}

	ctx, span := observe.StartSpan(ctx, "analysis.file", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()
	a.metrics.ActiveAnalyses.Add(ctx, 1)
	defer a.metrics.ActiveAnalyses.Add(ctx, -1)
	start := time.Now()
	log := observe.Logger(ctx).With("path", path)

	var (
		nv  NonVerbal
		ap  audioPass
		dur time.Duration
		derr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nv, err = a.AnalyzeNonVerbal(gctx, &video.FFmpegSource{Path: path, FFmpeg: a.ffmpeg, FFprobe: a.ffprobe}, fps)
		return err
	})
	g.Go(func() error {
		ap = a.runAudio(gctx, path, opts.Transcribe)
		return nil
	})
	g.Go(func() error {
		dur, derr = audio.MediaDuration(gctx, a.ffprobe, path)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Record{}, fmt.Errorf("analysis: %s: %w", path, err)
	}

	rec := Merge(nv, ap.result)
	rec.Notes = append(rec.Notes, ap.notes...)
	switch {
	case derr == nil:
		rec.DurationSeconds = round2(dur.Seconds())
	case errors.Is(derr, audio.ErrFFprobeMissing):
		rec.Notes = append(rec.Notes, noteFFprobeMissing)
	default:
		log.Warn("analysis: ffprobe duration failed", "err", derr)
		rec.Notes = append(rec.Notes, noteFFprobeFailed)
	}
	if rec.DurationSeconds == 0 && ap.clipDuration > 0 {
		rec.DurationSeconds = round2(ap.clipDuration.Seconds())
	}

	if ap.transcribed {
		rec.Transcript = ap.transcript.Text
		sm := a.speech.Analyze(ap.transcript.Text, time.Duration(rec.DurationSeconds*float64(time.Second)))
		rec.Speech = &sm
	}
	if opts.Report {
		r := report.Build(report.Input{
			DurationSeconds: rec.DurationSeconds,
			Speech:          rec.Speech,
			Audio:           rec.AudioDelivery,
			Visual:          rec.Metrics,
		})
		rec.Report = &r
	}

	a.metrics.RecordStage(ctx, observe.StageTotal, time.Since(start))
	log.Info("analysis: file analysed",
		"frames", rec.FramesSampled,
		"activity", rec.ActivityLevel,
		"monotone", rec.AudioDelivery.Monotone.Label,
		"notes", len(rec.Notes),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return rec, nil
}

// audioPass is the outcome of extraction, transcription and scoring.
type audioPass struct {
	result       delivery.Result
	notes        []string
	clipDuration time.Duration
	transcript   stt.Transcript
	transcribed  bool
}

func (a *Analyzer) runAudio(ctx context.Context, path string, transcribe bool) audioPass {
	log := observe.Logger(ctx).With("path", path)
	out := audioPass{result: delivery.Unknown()}

	extractStart := time.Now()
	ex := audio.Extractor{FFmpeg: a.ffmpeg, SampleRate: a.sampleRate}
	clip, err := ex.Extract(ctx, path)
	a.metrics.RecordStage(ctx, observe.StageExtract, time.Since(extractStart))
	if err != nil {
		log.Warn("analysis: audio extraction failed, audio scores unknown", "err", err)
		out.notes = append(out.notes, audio.Note(err))
		a.metrics.RecordUnknown(ctx, "monotone")
		a.metrics.RecordUnknown(ctx, "volume")
		a.metrics.RecordUnknown(ctx, "silence")
		return out
	}
	out.clipDuration = clip.Duration()

	var words []stt.Word
	if transcribe && a.stt != nil {
		tStart := time.Now()
		tr, err := a.stt.Transcribe(ctx, clip.Samples, clip.SampleRate)
		a.metrics.RecordStage(ctx, observe.StageTranscribe, time.Since(tStart))
		if err != nil {
			log.Warn("analysis: transcription failed, using voice activity for pauses", "err", err)
			out.notes = append(out.notes, noteTranscribeFailed)
		} else {
			out.transcript = tr
			out.transcribed = true
			words = tr.Words
		}
	}

	out.result = a.AnalyzeAudioDelivery(ctx, clip.Samples, clip.SampleRate, words)
	if out.result.Monotone.Label == delivery.PitchUnknown {
		out.notes = append(out.notes, notePitchUnknown)
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

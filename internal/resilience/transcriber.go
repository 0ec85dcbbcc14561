package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MrWong99/podium/pkg/provider/stt"
)

// ErrAllFailed is returned when every backend failed or was skipped.
var ErrAllFailed = errors.New("resilience: all transcribers failed")

type backend struct {
	name    string
	p       stt.Provider
	breaker *Breaker
}

// Transcriber implements [stt.Provider] by trying backends in registration
// order until one succeeds. Backends whose breaker is open are skipped.
// Errors caused by the caller (empty audio, a cancelled context) are
// returned as-is without failing over.
type Transcriber struct {
	cfg      BreakerConfig
	backends []backend
}

var (
	_ stt.Provider = (*Transcriber)(nil)
	_ io.Closer    = (*Transcriber)(nil)
)

// NewTranscriber returns a Transcriber with primary as its first backend.
// cfg is applied to the breaker of every backend; its Name is replaced by the
// backend name.
func NewTranscriber(primaryName string, primary stt.Provider, cfg BreakerConfig) *Transcriber {
	t := &Transcriber{cfg: cfg}
	t.Add(primaryName, primary)
	return t
}

// Add appends a fallback backend. Not safe to call once transcription started.
func (t *Transcriber) Add(name string, p stt.Provider) {
	bc := t.cfg
	bc.Name = name
	t.backends = append(t.backends, backend{name: name, p: p, breaker: NewBreaker(bc)})
}

// Transcribe implements [stt.Provider].
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (stt.Transcript, error) {
	if len(samples) == 0 {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}
	var lastErr error
	for i := range t.backends {
		b := &t.backends[i]
		var tr stt.Transcript
		err := b.breaker.Do(func() error {
			var err error
			tr, err = b.p.Transcribe(ctx, samples, sampleRate)
			return err
		})
		if err == nil {
			return tr, nil
		}
		if ctx.Err() != nil {
			return stt.Transcript{}, ctx.Err()
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			slog.Debug("skipping transcriber (circuit open)", "transcriber", b.name)
		} else {
			slog.Warn("transcriber failed, trying next", "transcriber", b.name, "err", err)
		}
	}
	return stt.Transcript{}, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

// Close closes every backend that holds resources.
func (t *Transcriber) Close() error {
	var errs []error
	for _, b := range t.backends {
		if c, ok := b.p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

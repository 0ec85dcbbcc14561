// Package deepgram provides a Deepgram-backed STT provider. A clip is
// streamed over the Deepgram live WebSocket API as linear16 PCM and the final
// results are collected into one transcript. It implements the stt.Provider
// interface.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/podium/pkg/audio"
	"github.com/MrWong99/podium/pkg/provider/stt"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"

	// chunkDuration is the amount of audio per binary message.
	chunkDuration = 250 * time.Millisecond
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithEndpoint overrides the WebSocket endpoint. Used for self-hosted
// deployments and tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// WithFillerWords asks Deepgram to keep "um" and "uh" in the transcript. On
// by default so filler counting sees them.
func WithFillerWords(keep bool) Option {
	return func(p *Provider) {
		p.fillerWords = keep
	}
}

// Provider implements stt.Provider backed by the Deepgram live API.
type Provider struct {
	apiKey      string
	endpoint    string
	model       string
	language    string
	fillerWords bool
}

var _ stt.Provider = (*Provider)(nil)

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:      apiKey,
		endpoint:    deepgramEndpoint,
		model:       defaultModel,
		language:    defaultLanguage,
		fillerWords: true,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe streams samples to Deepgram, signals the end of the stream and
// waits for the server to flush its final results.
func (p *Provider) Transcribe(ctx context.Context, samples []float32, sampleRate int) (stt.Transcript, error) {
	if len(samples) == 0 {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}
	if sampleRate <= 0 {
		return stt.Transcript{}, fmt.Errorf("deepgram: invalid sample rate %d", sampleRate)
	}

	wsURL, err := p.buildURL(sampleRate)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: build URL: %w", err)
	}
	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	// Results arrive while audio is still being sent, so reading runs
	// concurrently with the writes.
	type readResult struct {
		tr  stt.Transcript
		err error
	}
	done := make(chan readResult, 1)
	go func() {
		tr, err := collect(ctx, conn)
		done <- readResult{tr, err}
	}()

	if err := p.send(ctx, conn, samples, sampleRate); err != nil {
		return stt.Transcript{}, err
	}

	select {
	case r := <-done:
		if r.err != nil {
			return stt.Transcript{}, r.err
		}
		r.tr.Language = p.language
		return r.tr, nil
	case <-ctx.Done():
		return stt.Transcript{}, ctx.Err()
	}
}

func (p *Provider) send(ctx context.Context, conn *websocket.Conn, samples []float32, sampleRate int) error {
	step := int(chunkDuration.Seconds() * float64(sampleRate))
	if step < 1 {
		step = 1
	}
	for i := 0; i < len(samples); i += step {
		end := min(i+step, len(samples))
		if err := conn.Write(ctx, websocket.MessageBinary, audio.Float32ToPCM(samples[i:end])); err != nil {
			return fmt.Errorf("deepgram: send audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return fmt.Errorf("deepgram: close stream: %w", err)
	}
	return nil
}

// collect reads messages until the server closes the connection and joins the
// final results in arrival order.
func collect(ctx context.Context, conn *websocket.Conn) (stt.Transcript, error) {
	var (
		texts []string
		words []stt.Word
	)
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			return stt.Transcript{}, fmt.Errorf("deepgram: read: %w", err)
		}
		r, ok := parseResults(msg)
		if !ok || !r.final {
			continue
		}
		if t := strings.TrimSpace(r.text); t != "" {
			texts = append(texts, t)
		}
		words = append(words, r.words...)
	}
	return stt.Transcript{Text: strings.Join(texts, " "), Words: words}, nil
}

// buildURL constructs the streaming endpoint URL for the given sample rate.
func (p *Provider) buildURL(sampleRate int) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", p.language)
	q.Set("punctuate", "true")
	q.Set("encoding", "linear16")
	q.Set("channels", "1")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	if p.fillerWords {
		q.Set("filler_words", "true")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- wire format ----

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word           string  `json:"word"`
				PunctuatedWord string  `json:"punctuated_word"`
				Start          float64 `json:"start"`
				End            float64 `json:"end"`
				Confidence     float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type results struct {
	final bool
	text  string
	words []stt.Word
}

// parseResults decodes a Results message. Other message types (Metadata,
// SpeechStarted, UtteranceEnd) are ignored.
func parseResults(data []byte) (results, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return results{}, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return results{}, false
	}

	alt := resp.Channel.Alternatives[0]
	words := make([]stt.Word, 0, len(alt.Words))
	for _, w := range alt.Words {
		// The punctuated form keeps the sentence-final marks that pause
		// classification relies on.
		text := w.PunctuatedWord
		if text == "" {
			text = w.Word
		}
		words = append(words, stt.Word{
			Text:       text,
			Start:      time.Duration(w.Start * float64(time.Second)),
			End:        time.Duration(w.End * float64(time.Second)),
			Confidence: w.Confidence,
		})
	}
	return results{final: resp.IsFinal, text: alt.Transcript, words: words}, true
}

package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/podium/pkg/provider/stt"
)

func TestNew_EmptyKey(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestBuildURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []Option
		rate int
		want map[string]string
	}{
		{
			name: "defaults",
			rate: 16000,
			want: map[string]string{
				"model":        "nova-3",
				"language":     "en",
				"punctuate":    "true",
				"encoding":     "linear16",
				"channels":     "1",
				"sample_rate":  "16000",
				"filler_words": "true",
			},
		},
		{
			name: "custom",
			opts: []Option{WithModel("base"), WithLanguage("de-DE"), WithFillerWords(false)},
			rate: 48000,
			want: map[string]string{
				"model":        "base",
				"language":     "de-DE",
				"sample_rate":  "48000",
				"filler_words": "",
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, err := New("key", tc.opts...)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			raw, err := p.buildURL(tc.rate)
			if err != nil {
				t.Fatalf("buildURL: %v", err)
			}
			u, err := url.Parse(raw)
			if err != nil {
				t.Fatalf("parse URL: %v", err)
			}
			q := u.Query()
			for k, want := range tc.want {
				if got := q.Get(k); got != want {
					t.Errorf("%s = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestParseResults(t *testing.T) {
	t.Parallel()

	msg := `{
		"type": "Results",
		"is_final": true,
		"channel": {"alternatives": [{
			"transcript": "hello world",
			"confidence": 0.98,
			"words": [
				{"word": "hello", "punctuated_word": "Hello", "start": 0.5, "end": 0.9, "confidence": 0.99},
				{"word": "world", "start": 1.0, "end": 1.4, "confidence": 0.97}
			]
		}]}
	}`
	r, ok := parseResults([]byte(msg))
	if !ok {
		t.Fatal("expected Results to parse")
	}
	if !r.final || r.text != "hello world" {
		t.Errorf("final=%v text=%q", r.final, r.text)
	}
	if len(r.words) != 2 {
		t.Fatalf("got %d words, want 2", len(r.words))
	}
	if r.words[0].Text != "Hello" {
		t.Errorf("word[0] = %q, want punctuated form", r.words[0].Text)
	}
	if r.words[1].Text != "world" {
		t.Errorf("word[1] = %q, want plain form fallback", r.words[1].Text)
	}
	if r.words[0].Start != 500*time.Millisecond || r.words[1].End != 1400*time.Millisecond {
		t.Errorf("timings = %v..%v", r.words[0].Start, r.words[1].End)
	}

	for _, ignored := range []string{`{"type":"Metadata"}`, `not json`, `{"type":"Results","channel":{"alternatives":[]}}`} {
		if _, ok := parseResults([]byte(ignored)); ok {
			t.Errorf("parseResults(%s) should be ignored", ignored)
		}
	}
}

type serverRecord struct {
	mu    sync.Mutex
	auth  string
	bytes int
}

func (r *serverRecord) get() (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.auth, r.bytes
}

// fakeServer accepts one stream, counts audio bytes and answers CloseStream
// with an interim and two final results before closing normally.
func fakeServer(t *testing.T, rec *serverRecord) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.auth = r.Header.Get("Authorization")
		rec.mu.Unlock()
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		ctx := r.Context()
		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageBinary {
				rec.mu.Lock()
				rec.bytes += len(data)
				rec.mu.Unlock()
				continue
			}
			if !strings.Contains(string(data), "CloseStream") {
				continue
			}
			for _, m := range []string{
				`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"so"}]}}`,
				`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"So, hi.","words":[{"word":"so","punctuated_word":"So,","start":0.1,"end":0.3},{"word":"hi","punctuated_word":"hi.","start":0.4,"end":0.6}]}]}}`,
				`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"Bye.","words":[{"word":"bye","punctuated_word":"Bye.","start":1.2,"end":1.5}]}]}}`,
			} {
				if err := c.Write(ctx, websocket.MessageText, []byte(m)); err != nil {
					return
				}
			}
			c.Close(websocket.StatusNormalClosure, "")
			return
		}
	}))
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	rec := &serverRecord{}
	srv := fakeServer(t, rec)
	defer srv.Close()

	p, err := New("secret", WithEndpoint("ws"+strings.TrimPrefix(srv.URL, "http")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	samples := make([]float32, 16000)
	tr, err := p.Transcribe(context.Background(), samples, 16000)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "So, hi. Bye." {
		t.Errorf("Text = %q", tr.Text)
	}
	if len(tr.Words) != 3 || tr.Words[2].Text != "Bye." {
		t.Errorf("Words = %+v", tr.Words)
	}
	if tr.Language != "en" {
		t.Errorf("Language = %q, want en", tr.Language)
	}
	auth, n := rec.get()
	if auth != "Token secret" {
		t.Errorf("Authorization = %q", auth)
	}
	if n != 32000 {
		t.Errorf("server received %d audio bytes, want 32000", n)
	}
}

func TestTranscribe_Errors(t *testing.T) {
	t.Parallel()

	p, _ := New("key", WithEndpoint("ws://127.0.0.1:1"))
	if _, err := p.Transcribe(context.Background(), nil, 16000); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Errorf("empty samples: err = %v, want ErrEmptyAudio", err)
	}
	if _, err := p.Transcribe(context.Background(), []float32{0}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := p.Transcribe(context.Background(), []float32{0}, 16000); err == nil {
		t.Error("expected dial error")
	}
}

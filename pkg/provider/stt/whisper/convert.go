package whisper

import (
	"strings"
	"time"

	"github.com/MrWong99/podium/pkg/provider/stt"
)

// token is a text token with timing, decoupled from the CGO binding types so
// the merge logic can be tested without a model.
type token struct {
	text  string
	start time.Duration
	end   time.Duration
	p     float64
}

// mergeTokens joins whisper sub-word tokens into words. A token that begins
// with a space starts a new word; other tokens extend the current one.
// Punctuation tokens therefore stay attached to the preceding word, which the
// pause classifier relies on. Word confidence is the minimum over its tokens.
func mergeTokens(toks []token) []stt.Word {
	var (
		words []stt.Word
		cur   *stt.Word
	)
	for _, t := range toks {
		if t.text == "" {
			continue
		}
		if cur == nil || strings.HasPrefix(t.text, " ") {
			if cur != nil && strings.TrimSpace(cur.Text) != "" {
				words = append(words, *cur)
			}
			cur = &stt.Word{Text: t.text, Start: t.start, End: t.end, Confidence: t.p}
			continue
		}
		cur.Text += t.text
		if t.end > cur.End {
			cur.End = t.end
		}
		if t.p < cur.Confidence {
			cur.Confidence = t.p
		}
	}
	if cur != nil && strings.TrimSpace(cur.Text) != "" {
		words = append(words, *cur)
	}
	for i := range words {
		words[i].Text = strings.TrimSpace(words[i].Text)
	}
	return words
}

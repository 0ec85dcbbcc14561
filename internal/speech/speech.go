// Package speech computes transcript-level delivery metrics: speaking pace,
// filler words and repeated-word stutters.
//
// Filler matching is exact for short hesitation sounds and fuzzy for longer
// lexical fillers so that common transcription misspellings ("basicaly",
// "literaly") still count. Fuzzy matching uses Jaro-Winkler similarity with a
// high threshold; real words that merely share a stem ("actual", "literal")
// stay below it.
package speech

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/podium/internal/calibration"
)

// PaceLabel classifies words per minute.
type PaceLabel string

const (
	PaceUnknown PaceLabel = "unknown"
	PaceSlow    PaceLabel = "slow"
	PaceGood    PaceLabel = "good"
	PaceFast    PaceLabel = "fast"
)

// DefaultFillers is the shipped filler vocabulary. Multi-word entries are
// counted as phrases in the lowered transcript.
var DefaultFillers = []string{
	"um", "uh", "like", "you know", "actually", "basically", "literally", "so",
}

const (
	defaultFuzzyThreshold = 0.96

	// fuzzyMinLen keeps short fillers exact; at two or four letters almost
	// any neighbour scores high.
	fuzzyMinLen = 6
)

// FillerCount is the number of occurrences of one filler.
type FillerCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Metrics is the transcript-derived portion of a report.
type Metrics struct {
	DurationSeconds float64       `json:"duration_seconds"`
	WordCount       int           `json:"word_count"`
	WordsPerMinute  *float64      `json:"words_per_minute"`
	PaceLabel       PaceLabel     `json:"pace_label"`
	FillerWordCount int           `json:"filler_word_count"`
	FillerWords     []FillerCount `json:"filler_words"`
	StutterEvents   int           `json:"stutter_events"`
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithPace overrides the pace thresholds.
func WithPace(p calibration.Pace) Option {
	return func(a *Analyzer) { a.pace = p }
}

// WithFillers replaces the filler vocabulary.
func WithFillers(words []string) Option {
	return func(a *Analyzer) { a.fillers = words }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a token to count
// as a long filler. Default: 0.96.
func WithFuzzyThreshold(th float64) Option {
	return func(a *Analyzer) { a.threshold = th }
}

// Analyzer computes Metrics. It is read-only after construction and safe for
// concurrent use.
type Analyzer struct {
	pace      calibration.Pace
	fillers   []string
	threshold float64
}

// New returns an Analyzer with the default vocabulary and pace thresholds.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		pace:      calibration.Default().Pace,
		fillers:   DefaultFillers,
		threshold: defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze computes metrics for transcript text spoken over duration.
func (a *Analyzer) Analyze(text string, duration time.Duration) Metrics {
	tokens := Tokenize(text)
	fillers := a.CountFillers(text)
	var total int
	for _, f := range fillers {
		total += f.Count
	}

	m := Metrics{
		DurationSeconds: round(duration.Seconds(), 2),
		WordCount:       len(tokens),
		FillerWordCount: total,
		FillerWords:     fillers,
		StutterEvents:   CountStutters(tokens),
	}
	if duration > 0 {
		wpm := float64(len(tokens)) / duration.Seconds() * 60
		m.PaceLabel = ClassifyPace(&wpm, a.pace)
		wpm = round(wpm, 1)
		m.WordsPerMinute = &wpm
	} else {
		m.PaceLabel = ClassifyPace(nil, a.pace)
	}
	return m
}

// ClassifyPace buckets words per minute. A nil rate is unknown.
func ClassifyPace(wpm *float64, p calibration.Pace) PaceLabel {
	switch {
	case wpm == nil:
		return PaceUnknown
	case *wpm < p.SlowBelowWPM:
		return PaceSlow
	case *wpm > p.FastAboveWPM:
		return PaceFast
	default:
		return PaceGood
	}
}

var tokenRE = regexp.MustCompile(`[\p{L}\p{N}_']+`)

// Tokenize lowercases text and splits it into word tokens. Apostrophes inside
// words are kept.
func Tokenize(text string) []string {
	raw := tokenRE.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if t = strings.Trim(t, "'"); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// CountFillers counts filler occurrences, most frequent first.
func (a *Analyzer) CountFillers(text string) []FillerCount {
	lowered := strings.ToLower(text)
	tokens := Tokenize(lowered)
	counts := map[string]int{}

	var single []string
	for _, f := range a.fillers {
		f = strings.ToLower(strings.TrimSpace(f))
		switch {
		case f == "":
		case strings.Contains(f, " "):
			if n := strings.Count(lowered, f); n > 0 {
				counts[f] = n
			}
		default:
			single = append(single, f)
		}
	}

	for _, tok := range tokens {
		if f, ok := a.matchFiller(tok, single); ok {
			counts[f]++
		}
	}

	out := make([]FillerCount, 0, len(counts))
	for w, n := range counts {
		out = append(out, FillerCount{Word: w, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	return out
}

func (a *Analyzer) matchFiller(tok string, fillers []string) (string, bool) {
	for _, f := range fillers {
		if tok == f {
			return f, true
		}
	}
	if len(tok) < fuzzyMinLen {
		return "", false
	}
	best, score := "", 0.0
	for _, f := range fillers {
		if len(f) < fuzzyMinLen {
			continue
		}
		if s := matchr.JaroWinkler(tok, f, false); s >= a.threshold && s > score {
			best, score = f, s
		}
	}
	return best, best != ""
}

// CountStutters counts adjacent repeated tokens ("I I think").
func CountStutters(tokens []string) int {
	var n int
	for i := 1; i < len(tokens); i++ {
		if tokens[i] == tokens[i-1] {
			n++
		}
	}
	return n
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

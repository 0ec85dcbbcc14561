// Package resilience provides transcriber failover guarded by per-backend
// circuit breakers.
//
// A [Breaker] stops calling a backend after a run of consecutive failures and
// lets a single trial call through once its cooldown has elapsed. [Transcriber]
// chains several speech-to-text backends so that a remote whisper server that
// is down does not cost every analysis in a batch a full request timeout.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// Closed forwards every call.
	Closed State = iota

	// Open rejects calls until the cooldown elapses.
	Open

	// HalfOpen lets exactly one trial call through to test the backend.
	HalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name labels log messages.
	Name string

	// MaxFailures is the number of consecutive failures that open the
	// breaker. Default: 3.
	MaxFailures int

	// Cooldown is how long the breaker stays open before a trial call.
	// Default: 30s.
	Cooldown time.Duration
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

// NewBreaker creates a [Breaker]. Zero-value config fields take defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// Do runs fn unless the breaker is open. While the half-open trial call is in
// flight other callers are rejected with [ErrOpen].
//
// An error matching [context.Canceled] or [context.DeadlineExceeded] is
// returned as is and says nothing about the backend: it neither counts as a
// failure nor resets the count. A trial call ending that way leaves the
// breaker open with its cooldown already elapsed, so the next call retries.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = HalfOpen
		slog.Info("circuit breaker half-open", "name", b.name)
	case HalfOpen:
		b.mu.Unlock()
		return ErrOpen
	}
	trial := b.state == HalfOpen
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case err == nil:
		if trial {
			slog.Info("circuit breaker closed", "name", b.name)
		}
		b.state, b.failures = Closed, 0
	case isCallerError(err):
		if trial {
			b.state = Open
		}
	default:
		b.failures++
		if trial || b.failures >= b.maxFailures {
			if b.state != Open {
				slog.Warn("circuit breaker opened", "name", b.name, "consecutive_failures", b.failures)
			}
			b.state, b.openedAt = Open, b.now()
		}
	}
	return err
}

func isCallerError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

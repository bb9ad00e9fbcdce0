// Package resilience provides a circuit breaker for the external services
// Wheelhouse depends on per turn (the station feed and the geocoder). When a
// service fails repeatedly, the breaker rejects calls immediately for a
// cooldown period so turns degrade to an apology fast instead of each waiting
// out a full HTTP timeout.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker is rejecting calls.
var ErrOpen = errors.New("resilience: circuit open")

// state is the breaker's operating mode: closed forwards all calls, open
// rejects them, and half-open lets a single probe through after the cooldown.
type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// Settings tunes a [Breaker]. Zero values get replaced with defaults.
type Settings struct {
	// Name labels the breaker in log messages.
	Name string

	// Threshold is the number of consecutive failures that opens the
	// breaker. Default: 3.
	Threshold int

	// Cooldown is how long the breaker rejects calls before allowing a
	// probe. Default: 15s.
	Cooldown time.Duration
}

// Breaker is a three-state circuit breaker. Safe for concurrent use.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	state    state
	failures int
	openedAt time.Time
}

// NewBreaker creates a closed [Breaker] with the given settings.
func NewBreaker(s Settings) *Breaker {
	if s.Threshold <= 0 {
		s.Threshold = 3
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 15 * time.Second
	}
	return &Breaker{
		name:      s.Name,
		threshold: s.Threshold,
		cooldown:  s.Cooldown,
	}
}

// Do runs fn unless the breaker is open, in which case it returns [ErrOpen]
// without calling fn. After the cooldown one probe call is let through; its
// outcome decides whether the breaker closes again or re-opens.
func (b *Breaker) Do(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}

	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateHalfOpen:
		// A probe is already in flight; reject until it resolves.
		return false
	default:
		if time.Since(b.openedAt) < b.cooldown {
			return false
		}
		b.state = stateHalfOpen
		slog.Info("circuit breaker probing", "name", b.name)
		return true
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != stateClosed {
			slog.Info("circuit breaker closed", "name", b.name)
		}
		b.state = stateClosed
		b.failures = 0
		return
	}

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = time.Now()
		slog.Warn("circuit breaker re-opened after failed probe", "name", b.name)
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.state = stateOpen
		b.openedAt = time.Now()
		slog.Warn("circuit breaker opened", "name", b.name, "failures", b.failures)
	}
}

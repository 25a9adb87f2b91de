package errors

import (
	"sync"
	"time"
)

// ErrBreakerOpen is returned by Breaker.Do while the breaker is open.
var ErrBreakerOpen = New(ErrCodeEmbedderUnavailable, "circuit breaker open", nil)

// Breaker is a minimal circuit breaker guarding the embedding backend: after
// Threshold consecutive failures it fails fast for Cooldown, then lets one
// probe through. A probe success closes the breaker; a probe failure reopens
// it for another cooldown.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
}

// NewBreaker builds a closed Breaker. threshold <= 0 and cooldown <= 0 fall
// back to 5 failures and 30 seconds.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown}
}

// Do runs op if the breaker admits it, recording the outcome. While open and
// inside the cooldown window it returns ErrBreakerOpen without calling op.
func (b *Breaker) Do(op func() error) error {
	if !b.admit() {
		return ErrBreakerOpen
	}

	err := op()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.failures >= b.threshold || b.open {
			b.open = true
			b.openedAt = time.Now()
		}
		return err
	}
	b.failures = 0
	b.open = false
	return nil
}

// admit reports whether a call may proceed. An open breaker past its
// cooldown admits a single probe.
func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if time.Since(b.openedAt) >= b.cooldown {
		// Push the window forward so concurrent callers don't all probe.
		b.openedAt = time.Now()
		return true
	}
	return false
}

// Open reports whether the breaker is currently failing fast.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && time.Since(b.openedAt) < b.cooldown
}

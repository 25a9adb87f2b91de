package errors

import (
	"context"
	"math/rand"
	"time"
)

// Backoff describes an exponential retry schedule: Attempts total tries,
// starting at Initial and multiplying by Factor up to Max, with optional
// jitter to spread concurrent retriers.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	Factor   float64
	Jitter   bool
}

// DefaultBackoff is the schedule the embedding client uses against a local
// Ollama daemon: quick first retry, capped well under the request timeout.
func DefaultBackoff() Backoff {
	return Backoff{
		Attempts: 3,
		Initial:  500 * time.Millisecond,
		Max:      8 * time.Second,
		Factor:   2.0,
	}
}

// Retry runs op until it succeeds, the schedule is exhausted, the error is
// known non-retryable, or ctx is done. The last error is returned verbatim;
// callers that need a code should wrap op's errors themselves.
func Retry(ctx context.Context, b Backoff, op func(context.Context) error) error {
	if b.Attempts < 1 {
		b.Attempts = 1
	}
	delay := b.Initial

	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = op(ctx)
		if err == nil {
			return nil
		}
		if attempt >= b.Attempts {
			return err
		}
		if se, ok := err.(*SearchError); ok && !se.Retryable {
			return err
		}

		wait := delay
		if b.Jitter {
			wait += time.Duration(rand.Int63n(int64(delay)/2 + 1))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * b.Factor)
		if b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
	}
}

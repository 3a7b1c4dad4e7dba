package utils

import (
	"context"
	"time"
)

// Retry runs fn up to attempts times, sleeping backoff between failures
// and doubling it each round.  It stops early when ctx is cancelled.  The
// core request flows do not retry anything automatically; this helper is
// for callers that explicitly want bounded retries (startup probes,
// one-off scripts).
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

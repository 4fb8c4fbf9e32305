package netutil

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Default retry settings.
const (
	DefaultAttempts = 3
	DefaultMinDelay = 1 * time.Second
	DefaultMaxDelay = 5 * time.Second
)

// ErrPermanent marks an error that must not be retried.
var ErrPermanent = errors.New("permanent error")

// Policy controls Retry.
type Policy struct {
	// Attempts is the total number of calls, at least 1.
	Attempts int
	// MinDelay and MaxDelay bound the randomized wait between attempts.
	MinDelay time.Duration
	MaxDelay time.Duration
}

// DefaultPolicy returns the policy used by built-in modules.
func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, MinDelay: DefaultMinDelay, MaxDelay: DefaultMaxDelay}
}

// Permanent wraps err so Retry stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrPermanent, err)
}

// Retry calls fn until it succeeds, returns a permanent error, the attempts
// are exhausted, or ctx is done. The wait between attempts is uniformly
// random in [MinDelay, MaxDelay]. The last error is returned.
func Retry(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)
	var err error
	for i := range attempts {
		if err = fn(ctx); err == nil || errors.Is(err, ErrPermanent) {
			return err
		}
		if i == attempts-1 {
			break
		}
		t := time.NewTimer(p.delay())
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(ctx.Err(), err)
		case <-t.C:
		}
	}
	return err
}

func (p Policy) delay() time.Duration {
	if p.MaxDelay <= p.MinDelay {
		return max(p.MinDelay, 0)
	}
	return p.MinDelay + rand.N(p.MaxDelay-p.MinDelay) //nolint:gosec // jitter does not need crypto randomness
}

package netutil

import (
	"context"
	"errors"
	"time"
)

// ErrIncomplete is returned by Poll when the deadline passed before fn
// reported completion.
var ErrIncomplete = errors.New("operation still in progress")

// Poll calls fn every interval until it reports done, returns an error, or
// timeout elapses. Poll never blocks longer than timeout; when the deadline
// passes it returns ErrIncomplete so callers can record a pending state
// instead of waiting forever.
func Poll(ctx context.Context, timeout, interval time.Duration, fn func(ctx context.Context) (done bool, err error)) error {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		done, err := fn(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
				return ErrIncomplete
			}
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrIncomplete
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

package lib

import (
	"context"
	"errors"
	"time"
)

const pollMaxBackoffFactor = 8

var ErrPollTimeout = errors.New("poll timeout")

// Poll calls f until it returns nil or dur elapses. The delay between attempts starts at
// interval (one second by default) and doubles up to eight times that value. The timeout
// error wraps the last error returned by f
func Poll(ctx context.Context, dur time.Duration, f func() error, interval ...time.Duration) error {
	delay := time.Second
	if len(interval) > 0 && interval[0] > 0 {
		delay = interval[0]
	}
	maxDelay := delay * pollMaxBackoffFactor
	deadline := time.Now().Add(dur)

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		lastErr := f()
		if lastErr == nil {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return WrapError(ErrPollTimeout, lastErr)
		}
		if delay > remaining {
			delay = remaining
		}

		timer.Reset(delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		if delay *= 2; delay > maxDelay {
			delay = maxDelay
		}
	}
}

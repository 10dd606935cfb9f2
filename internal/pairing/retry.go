package pairing

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// RetryPolicy bounds how often a pending pairing is re-polled.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// DefaultRetry re-polls once after two seconds.
var DefaultRetry = RetryPolicy{MaxRetries: 1, Backoff: 2 * time.Second}

// wait blocks for the backoff or until ctx is done.
func (p RetryPolicy) wait(ctx context.Context, clk clock.Clock) error {
	if p.Backoff <= 0 {
		return ctx.Err()
	}
	t := clk.Timer(p.Backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

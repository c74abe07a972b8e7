package service

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle inserts a cooperative delay between consecutive scan executions so
// back-to-back integrations do not trip per-IP limits on external platforms.
// Platform-specific adaptive limiting stays the hunter's own responsibility.
type Throttle interface {
	// Wait blocks until the next execution slot or ctx is done.
	// Parameters:
	//   - ctx: context for cancellation.
	// Returns:
	//   - error: non-nil if ctx was canceled while waiting.
	Wait(ctx context.Context) error
}

// spacingThrottle enforces a fixed minimum spacing using a token bucket of
// depth one.
type spacingThrottle struct {
	limiter *rate.Limiter
}

// NewSpacingThrottle creates a Throttle with a fixed minimum spacing between
// consecutive calls.
// Parameters:
//   - minSpacing: minimum interval between executions; zero or negative
//     disables waiting.
// Returns:
//   - Throttle: spacing throttle.
func NewSpacingThrottle(minSpacing time.Duration) Throttle {
	if minSpacing <= 0 {
		return noopThrottle{}
	}
	return &spacingThrottle{
		limiter: rate.NewLimiter(rate.Every(minSpacing), 1),
	}
}

func (t *spacingThrottle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// noopThrottle never waits. Used in tests and when spacing is disabled.
type noopThrottle struct{}

func (noopThrottle) Wait(ctx context.Context) error {
	return ctx.Err()
}

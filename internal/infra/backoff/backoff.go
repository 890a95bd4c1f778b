package backoff

import (
	"context"
	"time"

	cbackoff "github.com/cenkalti/backoff/v4"
)

// Policy maps a consecutive failure count (starting at 1) to a wait duration.
type Policy interface {
	Delay(attempt int) time.Duration
}

// Fixed waits the same interval after every failure.
type Fixed struct {
	Interval time.Duration
}

func (f Fixed) Delay(int) time.Duration {
	return cbackoff.NewConstantBackOff(f.Interval).NextBackOff()
}

// Exponential doubles the wait per failure, starting at Initial and capped at Max.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

func (e Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	b := cbackoff.NewExponentialBackOff(
		cbackoff.WithInitialInterval(e.Initial),
		cbackoff.WithMaxInterval(e.Max),
		cbackoff.WithMultiplier(2),
		cbackoff.WithRandomizationFactor(0),
		cbackoff.WithMaxElapsedTime(0),
	)
	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
		if d >= e.Max {
			return e.Max
		}
	}
	return d
}

// NewPolicy returns Fixed when initial and max are equal, Exponential otherwise.
func NewPolicy(initial, max time.Duration) Policy {
	if max <= initial {
		return Fixed{Interval: initial}
	}
	return Exponential{Initial: initial, Max: max}
}

// Clock abstracts waiting so loops can be driven by tests without real sleeps.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

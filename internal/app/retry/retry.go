package retry

import (
	"context"
	"time"
)

type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Sleeper pauses between attempts and returns early with ctx.Err() when the
// context ends.
type Sleeper func(ctx context.Context, d time.Duration) error

func SleepContext(ctx context.Context, d time.Duration) error {
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

// Do calls fn until it succeeds or MaxAttempts calls have failed, sleeping
// Delay between calls. It returns the number of calls made and the last error.
// A sleep interrupted by ctx stops the loop with the last fn error.
func Do(ctx context.Context, p Policy, sleep Sleeper, fn func(ctx context.Context, attempt int) error) (int, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if sleep == nil {
		sleep = SleepContext
	}
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return attempt, nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		if sleepErr := sleep(ctx, p.Delay); sleepErr != nil {
			return attempt, err
		}
	}
	return p.MaxAttempts, err
}

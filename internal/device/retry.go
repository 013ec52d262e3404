package device

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig configures bounded retries with exponential backoff.
type RetryConfig struct {
	Attempts  int           // total attempts, at least 1
	BaseDelay time.Duration // delay before the second attempt
	OnRetry   func(attempt int, delay time.Duration, err error)
}

// RetryWithBackoff calls fn until it succeeds or Attempts are used up.
// Delays double after each failure: BaseDelay, BaseDelay*2, ...
// The wait between attempts is abandoned when ctx is canceled.
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	delay := cfg.BaseDelay

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= cfg.Attempts {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	if cfg.Attempts == 1 {
		return err
	}
	return fmt.Errorf("after %d attempts: %w", cfg.Attempts, err)
}

package schedule

import (
	"context"
	"time"

	"github.com/CodexForgeBR/autobattle/internal/logging"
)

// WaitUntil waits until the target time, logging a countdown.
// Returns immediately if target is in the past.
// Respects context cancellation.
// Uses adaptive intervals: >1h=60s, >10min=30s, >1min=10s, <1min=1s.
func WaitUntil(ctx context.Context, target time.Time) error {
	remaining := time.Until(target)
	if remaining <= 0 {
		return nil
	}

	logging.Info("Waiting until " + target.Format("2006-01-02 15:04:05") + " (" + remaining.Round(time.Second).String() + " remaining)")

	for {
		interval := adaptiveInterval(remaining)

		// Don't sleep longer than remaining time
		if interval > remaining {
			interval = remaining
		}

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		remaining = time.Until(target)
		if remaining <= 0 {
			return nil
		}
		logging.Debug("  ... " + remaining.Round(time.Second).String() + " remaining")
	}
}

// StopContext returns a context that is canceled at w.Stop, or a plain child
// of parent when the window has no stop time.
func (w Window) StopContext(parent context.Context) (context.Context, context.CancelFunc) {
	if w.Stop.IsZero() {
		return context.WithCancel(parent)
	}
	return context.WithDeadline(parent, w.Stop)
}

// adaptiveInterval returns the countdown display interval based on remaining time.
func adaptiveInterval(remaining time.Duration) time.Duration {
	switch {
	case remaining > time.Hour:
		return 60 * time.Second
	case remaining > 10*time.Minute:
		return 30 * time.Second
	case remaining > time.Minute:
		return 10 * time.Second
	default:
		return 1 * time.Second
	}
}

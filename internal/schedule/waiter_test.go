package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestWaitUntil_PastTime(t *testing.T) {
	start := time.Now()
	err := WaitUntil(context.Background(), time.Now().Add(-time.Hour))

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "should return immediately for past time")
}

func TestWaitUntil_ShortWaitIsClamped(t *testing.T) {
	// The adaptive interval (1s) exceeds the remaining time and must be
	// clamped to it.
	target := time.Now().Add(200 * time.Millisecond)
	start := time.Now()
	err := WaitUntil(context.Background(), target)
	duration := time.Since(start)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, duration, 150*time.Millisecond)
	assert.Less(t, duration, 700*time.Millisecond, "should clamp interval to remaining time")
}

func TestWaitUntil_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := WaitUntil(ctx, time.Now().Add(10*time.Second))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second, "should cancel quickly")
}

func TestWaitUntil_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitUntil(ctx, time.Now().Add(10*time.Second))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStopContext(t *testing.T) {
	ctx, cancel := Window{}.StopContext(context.Background())
	_, hasDeadline := ctx.Deadline()
	assert.False(t, hasDeadline)
	cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	stop := time.Now().Add(50 * time.Millisecond)
	ctx, cancel = Window{Stop: stop}.StopContext(context.Background())
	defer cancel()
	deadline, hasDeadline := ctx.Deadline()
	require.True(t, hasDeadline)
	assert.True(t, stop.Equal(deadline))

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("stop context was not canceled at the stop time")
	}
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestAdaptiveInterval(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		expected  time.Duration
	}{
		{2 * time.Hour, 60 * time.Second},
		{time.Hour, 30 * time.Second},
		{30 * time.Minute, 30 * time.Second},
		{10 * time.Minute, 10 * time.Second},
		{5 * time.Minute, 10 * time.Second},
		{time.Minute, time.Second},
		{30 * time.Second, time.Second},
		{100 * time.Millisecond, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.remaining.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, adaptiveInterval(tt.remaining))
		})
	}
}

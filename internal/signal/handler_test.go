package signal

import (
	"context"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitFor polls cond until it is true or the deadline passes.
func waitFor(t *testing.T, cond func() bool, within time.Duration) bool {
	t.Helper()
	deadline := time.After(within)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if cond() {
			return true
		}
		select {
		case <-ticker.C:
		case <-deadline:
			return cond()
		}
	}
}

func TestSetupSignalHandler_SIGINTStopsAndCancels(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var interrupted atomic.Bool
	release := SetupSignalHandler(ctx, cancel, func() { interrupted.Store(true) }, nil)
	defer release()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	assert.True(t, waitFor(t, interrupted.Load, time.Second), "onInterrupt was not called")
	assert.True(t, waitFor(t, func() bool { return ctx.Err() != nil }, time.Second), "context was not canceled")
}

func TestSetupSignalHandler_SIGTERMStopsAndCancels(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var interrupted atomic.Bool
	release := SetupSignalHandler(ctx, cancel, func() { interrupted.Store(true) }, nil)
	defer release()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	assert.True(t, waitFor(t, interrupted.Load, time.Second), "onInterrupt was not called")
}

func TestSetupSignalHandler_SecondSignalForces(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var interrupts, forced atomic.Int32
	release := SetupSignalHandler(ctx, cancel,
		func() { interrupts.Add(1) },
		func() { forced.Add(1) },
	)
	defer release()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	require.True(t, waitFor(t, func() bool { return interrupts.Load() == 1 }, time.Second))

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	assert.True(t, waitFor(t, func() bool { return forced.Load() == 1 }, time.Second), "onForce was not called")
	assert.Equal(t, int32(1), interrupts.Load())
}

func TestSetupSignalHandler_ContextCancellationEndsListener(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var interrupted atomic.Bool
	release := SetupSignalHandler(ctx, cancel, func() { interrupted.Store(true) }, nil)
	defer release()

	cancel()
	time.Sleep(50 * time.Millisecond)
	assert.False(t, interrupted.Load())
}

func TestSetupSignalHandler_ReleaseIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := SetupSignalHandler(ctx, cancel, nil, nil)
	assert.NotPanics(t, func() {
		release()
		release()
	})
}

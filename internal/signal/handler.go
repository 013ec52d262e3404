// Package signal provides signal handling for graceful shutdown of autobattle.
//
// The first SIGINT or SIGTERM asks every running bot slot to stop and cancels
// the root context. A second signal while slots are still draining triggers
// the force callback so the process can exit without waiting for the join.
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SetupSignalHandler registers SIGINT and SIGTERM handlers.
//
// On the first signal it calls onInterrupt (if non-nil) and then cancel. On a
// second signal it calls onForce (if non-nil). Before the first signal, the
// listener goroutine exits when ctx is canceled by someone else.
//
// The returned release function unregisters the handlers and ends the
// listener goroutine. It is safe to call more than once.
//
// Example usage:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	release := signal.SetupSignalHandler(ctx, cancel, sup.StopAll, func() { os.Exit(130) })
//	defer release()
func SetupSignalHandler(ctx context.Context, cancel context.CancelFunc, onInterrupt, onForce func()) (release func()) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once
	release = func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
		})
	}

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		case <-done:
			return
		}

		if onInterrupt != nil {
			onInterrupt()
		}
		cancel()

		select {
		case <-sigCh:
			if onForce != nil {
				onForce()
			}
		case <-done:
		}
	}()

	return release
}

// Package battle drives one bot instance through the battle loop: reading the
// current screen, handling it, and finding the next available battle in the
// expansion catalogs when none is offered.
package battle

import (
	"context"
	"image"
	"sync"

	"github.com/CodexForgeBR/autobattle/internal/expansion"
	"github.com/CodexForgeBR/autobattle/internal/logging"
	"github.com/CodexForgeBR/autobattle/internal/screen"
	"github.com/CodexForgeBR/autobattle/internal/vision"
)

// Device is the input and capture channel to one emulator.
type Device interface {
	Tap(ctx context.Context, x, y int) error
	Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error
	Capture(ctx context.Context) (image.Image, error)
}

// Classifier names the screen shown in a frame.
type Classifier interface {
	Classify(frame image.Image) screen.State
}

// Preparer is implemented by finders that can precompute per-frame data once
// per capture.
type Preparer interface {
	Prepare(img image.Image) image.Image
}

// Stats counts cycles of a Run.
type Stats struct {
	Cycles    int
	Successes int
	Failures  int
}

// Controller runs the battle loop for one slot. It is not safe for concurrent
// use except for Stats.
type Controller struct {
	Device     Device
	Classifier Classifier
	Finder     screen.Finder
	Tracker    *expansion.Tracker
	Timing     Timing
	Limits     Limits
	// Threshold applies to every check that does not pass its own.
	Threshold float64
	Log       logging.Logger
	// ScreenSize is taken from the first captured frame when zero.
	ScreenSize image.Point
	// ResetFlag, when set, is polled before every cycle and returns the
	// slots whose completion sets were just reset.
	ResetFlag func() ([]int, error)
	// OnCatalogReset is called after every entry of every series was
	// completed and the set was cleared.
	OnCatalogReset func()

	mu       sync.Mutex
	stats    Stats
	reported map[vision.Ref]bool
}

// New returns a Controller with default limits.
func New(dev Device, classifier Classifier, finder screen.Finder, tracker *expansion.Tracker, timing Timing, log logging.Logger) *Controller {
	return &Controller{
		Device:     dev,
		Classifier: classifier,
		Finder:     finder,
		Tracker:    tracker,
		Timing:     timing,
		Limits:     DefaultLimits(),
		Log:        log,
	}
}

// Stats returns a snapshot of the cycle counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Reload re-reads the completion set of this slot from disk.
func (c *Controller) Reload() error {
	return c.Tracker.Reload()
}

// Run executes cycles until ctx is done and returns the final counters.
func (c *Controller) Run(ctx context.Context) Stats {
	c.Log.Info("Battle loop started")
	for ctx.Err() == nil {
		c.consumeResetFlag()

		c.mu.Lock()
		c.stats.Cycles++
		n := c.stats.Cycles
		c.mu.Unlock()

		c.Log.Debugf("Cycle %d", n)
		ok := c.RunOneCycle(ctx)
		if ctx.Err() != nil {
			break
		}

		c.mu.Lock()
		if ok {
			c.stats.Successes++
		} else {
			c.stats.Failures++
		}
		c.mu.Unlock()

		if ok {
			c.Log.Successf("Cycle %d completed", n)
		} else {
			c.Log.Warnf("Cycle %d did not complete, retrying", n)
		}
		c.sleep(ctx, c.Timing.CycleDelay)
	}
	st := c.Stats()
	c.Log.Infof("Battle loop stopped after %d cycles (%d completed, %d failed)", st.Cycles, st.Successes, st.Failures)
	return st
}

func (c *Controller) consumeResetFlag() {
	if c.ResetFlag == nil {
		return
	}
	slots, err := c.ResetFlag()
	if err != nil {
		c.Log.Warnf("Reset flag ignored: %v", err)
		return
	}
	for _, s := range slots {
		if s != c.Tracker.Slot() {
			continue
		}
		if err := c.Tracker.Reload(); err != nil {
			c.Log.Warnf("Reload after reset failed: %v", err)
			return
		}
		c.Log.Info("Completed expansions were reset")
		return
	}
}

// RunOneCycle handles whatever screen is shown and advances to the end of one
// battle when possible. It returns true when a battle finished or the
// catalogs were exhausted and reset, and false when a step failed or ctx was
// canceled. A popup is dismissed first and the screen under it is handled
// in the same cycle.
func (c *Controller) RunOneCycle(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	st, ok := c.classifyNow(ctx)
	if !ok {
		return false
	}
	c.Log.Debugf("Screen: %s", st)

	if st == screen.OptionalPopup {
		if !c.dismissPopup(ctx, true) {
			return false
		}
		if st, ok = c.classifyNow(ctx); !ok {
			return false
		}
		c.Log.Debugf("Screen after popup: %s", st)
		if st == screen.OptionalPopup {
			c.Log.Warn("Popup did not close")
			return false
		}
	}

	switch st {
	case screen.DefeatPopup, screen.DefeatScreen:
		return c.handleDefeat(ctx)
	case screen.Summary:
		return c.handleSummary(ctx)
	case screen.ResultScreen:
		return c.handleResult(ctx)
	case screen.RewardsSequence:
		return c.handleRewards(ctx)
	case screen.BattleInProgress:
		return c.finishBattle(ctx)
	case screen.BattleSetup:
		return c.runBattle(ctx)
	case screen.ExpansionSelection:
		return c.searchAndBattle(ctx)
	default:
		return c.startFromSelection(ctx)
	}
}

// startFromSelection looks for an offered battle, falling back to the
// catalog search.
func (c *Controller) startFromSelection(ctx context.Context) bool {
	res, ok := c.findHourglass(ctx)
	if ctx.Err() != nil {
		return false
	}
	if !ok {
		c.Log.Info("No battle offered, searching the expansion catalogs")
		return c.searchAndBattle(ctx)
	}
	c.Log.Info("Battle available")
	if !c.tapResult(ctx, res) {
		return false
	}
	return c.runBattle(ctx)
}

func (c *Controller) searchAndBattle(ctx context.Context) bool {
	switch c.searchCatalogs(ctx) {
	case searchFound:
		return c.runBattle(ctx)
	case searchExhausted:
		return ctx.Err() == nil
	default:
		return false
	}
}

// runBattle sets up a battle, waits for it to end, and walks the post-battle
// screens.
func (c *Controller) runBattle(ctx context.Context) bool {
	c.awaitScreen(ctx, screen.BattleSetup, c.Limits.ScreenTimeout)
	if !c.setupBattle(ctx) {
		return false
	}
	return c.finishBattle(ctx)
}

func (c *Controller) finishBattle(ctx context.Context) bool {
	st, ok := c.waitForCompletion(ctx)
	if !ok {
		return false
	}
	return c.afterBattle(ctx, st)
}

func (c *Controller) afterBattle(ctx context.Context, st screen.State) bool {
	switch st {
	case screen.DefeatScreen, screen.DefeatPopup:
		return c.handleDefeat(ctx)
	case screen.ResultScreen:
		return c.handleResult(ctx)
	case screen.RewardsSequence:
		return c.handleRewards(ctx)
	case screen.Summary:
		return c.handleSummary(ctx)
	case screen.BattleSelection:
		return ctx.Err() == nil
	default:
		return false
	}
}

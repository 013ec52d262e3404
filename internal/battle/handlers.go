package battle

import (
	"context"
	"time"

	"github.com/CodexForgeBR/autobattle/internal/logging"
	"github.com/CodexForgeBR/autobattle/internal/screen"
)

// setupBattle enables auto play and starts the battle.
func (c *Controller) setupBattle(ctx context.Context) bool {
	if res, ok := c.look(ctx, screen.AutoOff, 0); ok {
		c.Log.Info("Enabling auto play")
		if !c.enableAuto(ctx, res.X, res.Y) {
			return false
		}
	}
	if ctx.Err() != nil {
		return false
	}
	if !c.waitAndTap(ctx, screen.BattleStart, c.Limits.SetupBattleTimeout) {
		if ctx.Err() == nil {
			c.Log.Warn("Battle button not found")
		}
		return false
	}
	c.Log.Info("Battle started")
	return c.sleep(ctx, c.Timing.BattleTapSettle)
}

// enableAuto taps the auto toggle and verifies it switched, retrying once.
func (c *Controller) enableAuto(ctx context.Context, x, y int) bool {
	for attempt := 1; attempt <= 2; attempt++ {
		if !c.tap(ctx, x, y) || !c.sleep(ctx, c.Timing.AutoVerifyDelay) {
			return false
		}
		if !c.stillVisible(ctx, screen.AutoOff) {
			c.Log.Success("Auto play enabled")
			return true
		}
		if attempt == 1 {
			c.Log.Warn("Auto play still off, tapping again")
		}
	}
	if ctx.Err() == nil {
		c.Log.Error("Could not enable auto play")
	}
	return false
}

// waitForCompletion polls until the battle is over and returns the screen it
// ended on.
func (c *Controller) waitForCompletion(ctx context.Context) (screen.State, bool) {
	start := time.Now()
	lastLog := start
	started := false

	for ctx.Err() == nil {
		if c.Timing.BattleMaxWait > 0 && time.Since(start) > c.Timing.BattleMaxWait {
			c.Log.Warnf("Battle did not finish within %s", logging.FormatDuration(int(c.Timing.BattleMaxWait.Seconds())))
			return screen.Unknown, false
		}

		interval := c.Timing.BattleStartInterval
		if started {
			interval = c.Timing.BattleProgressInterval
		}

		frame, err := c.capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.Log.Debugf("Screenshot failed during battle: %v", err)
			c.sleep(ctx, interval)
			continue
		}

		if _, ok := c.find(frame, screen.ResultProceed, 0); ok {
			c.Log.Success("Battle won")
			return screen.ResultScreen, true
		}

		switch st := c.Classifier.Classify(frame); st {
		case screen.DefeatScreen, screen.DefeatPopup:
			c.Log.Warn("Battle lost")
			return st, true
		case screen.ResultScreen, screen.RewardsSequence, screen.Summary:
			return st, true
		case screen.BattleSelection:
			c.Log.Info("Back on battle selection")
			return st, true
		case screen.BattleInProgress:
			if !started {
				started = true
				c.Log.Info("Battle in progress")
			}
			if res, ok := c.find(frame, screen.AutoOffInBattle, 0); ok {
				c.Log.Warn("Auto play switched off, re-enabling")
				c.tap(ctx, res.X, res.Y)
			}
		case screen.BattleSetup:
			if res, ok := c.find(frame, screen.BattleStart, 0); ok {
				c.Log.Info("Still on setup, tapping battle again")
				c.tap(ctx, res.X, res.Y)
			}
		case screen.OptionalPopup:
			c.dismissPopup(ctx, false)
		}

		if c.Timing.ProgressLogEvery > 0 && time.Since(lastLog) >= c.Timing.ProgressLogEvery {
			lastLog = time.Now()
			c.Log.Infof("Waiting for battle to finish (%s)", logging.FormatDuration(int(time.Since(start).Seconds())))
		}
		c.sleep(ctx, interval)
	}
	return screen.Unknown, false
}

// handleDefeat taps through the defeat screens until the summary shows up,
// then finishes it. The number of taps is bounded by DefeatMaxTaps.
func (c *Controller) handleDefeat(ctx context.Context) bool {
	c.dismissPopup(ctx, false)

	for taps := 0; taps < c.Limits.DefeatMaxTaps; taps++ {
		frame, err := c.capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			c.sleep(ctx, c.Timing.RetryDelay)
			continue
		}

		switch c.Classifier.Classify(frame) {
		case screen.Summary:
			return c.handleSummary(ctx)
		case screen.BattleSelection:
			return ctx.Err() == nil
		case screen.DefeatPopup:
			if res, ok := c.find(frame, screen.DefeatBack, 0); ok {
				c.Log.Debug("Closing defeat popup")
				if !c.tapResult(ctx, res) {
					return false
				}
				continue
			}
		case screen.OptionalPopup:
			if res, ok := c.find(frame, screen.PopupOK, 0); ok {
				if !c.tapResult(ctx, res) {
					return false
				}
				continue
			}
		}

		// Defeat and result screens advance on a tap anywhere.
		x, y := c.size().X/2, c.size().Y/2
		if res, ok := c.find(frame, screen.ResultProceed, 0); ok {
			x, y = res.X, res.Y
		} else if res, ok := c.find(frame, screen.Defeat, 0); ok {
			x, y = res.X, res.Y
		}
		if !c.tap(ctx, x, y) || !c.sleep(ctx, c.Timing.TapDelay) {
			return false
		}
	}

	// The last tap may have landed on the summary.
	if st, ok := c.classifyNow(ctx); ok {
		switch st {
		case screen.Summary:
			return c.handleSummary(ctx)
		case screen.BattleSelection:
			return true
		}
	}
	if ctx.Err() == nil {
		c.Log.Warnf("Defeat screens did not lead to the summary after %d taps", c.Limits.DefeatMaxTaps)
	}
	return false
}

// handleResult leaves the victory screen and walks the rewards.
func (c *Controller) handleResult(ctx context.Context) bool {
	c.dismissPopup(ctx, false)
	if !c.waitAndTap(ctx, screen.ResultProceed, c.Limits.ResultTimeout) {
		if ctx.Err() != nil {
			return false
		}
		c.Log.Debug("Result proceed marker not found")
	}
	if _, ok := c.waitFor(ctx, screen.RewardsProceed, c.Limits.ScreenTimeout, 0); !ok {
		if ctx.Err() != nil {
			return false
		}
		c.Log.Debug("Rewards did not show up, continuing")
	}
	return c.handleRewards(ctx)
}

// handleRewards taps through the reward reveals.
func (c *Controller) handleRewards(ctx context.Context) bool {
	for i, timeout := range c.Limits.RewardsTimeouts {
		if c.waitAndTap(ctx, screen.RewardsProceed, timeout) {
			continue
		}
		if ctx.Err() != nil {
			return false
		}
		// Fewer reveals than usual; the summary may already be up.
		if c.stillVisible(ctx, screen.SummaryNext) {
			break
		}
		c.Log.Warnf("Rewards step %d not found", i+1)
		return false
	}
	return c.handleSummary(ctx)
}

// handleSummary closes the summary and any popup behind it.
func (c *Controller) handleSummary(ctx context.Context) bool {
	c.dismissPopup(ctx, false)
	if !c.waitAndTap(ctx, screen.SummaryNext, c.Limits.SummaryTimeout) {
		if ctx.Err() == nil {
			c.Log.Warn("Summary next button not found")
		}
		return false
	}
	if !c.sleep(ctx, c.Timing.RetryDelay) {
		return false
	}
	return c.dismissPopup(ctx, true)
}

// dismissPopup closes the optional popup. A careful check waits for it to
// appear and keeps tapping until it is gone; a quick check looks once. It
// returns false only when ctx was canceled.
func (c *Controller) dismissPopup(ctx context.Context, careful bool) bool {
	if !careful {
		if res, ok := c.look(ctx, screen.PopupOK, 0); ok {
			c.Log.Debug("Dismissing popup")
			c.tapResult(ctx, res)
		}
		return ctx.Err() == nil
	}

	if !c.sleep(ctx, c.Timing.RetryDelay) {
		return false
	}
	tapped := false
	for i := 0; i < c.Limits.PopupChecks; i++ {
		if res, ok := c.look(ctx, screen.PopupOK, 0); ok {
			c.Log.Debug("Dismissing popup")
			if !c.tapResult(ctx, res) {
				return false
			}
			tapped = true
			continue
		}
		if ctx.Err() != nil {
			return false
		}
		if tapped {
			break
		}
		if !c.sleep(ctx, c.Timing.RetryDelay) {
			return false
		}
	}
	return ctx.Err() == nil
}

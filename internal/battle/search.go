package battle

import (
	"context"

	"github.com/CodexForgeBR/autobattle/internal/expansion"
	"github.com/CodexForgeBR/autobattle/internal/screen"
	"github.com/CodexForgeBR/autobattle/internal/vision"
)

type searchOutcome int

const (
	// searchFailed means an entry could not be checked or ctx was canceled.
	searchFailed searchOutcome = iota
	// searchFound means a battle was tapped and setup is next.
	searchFound
	// searchExhausted means every entry was complete and the set was reset.
	searchExhausted
)

// findHourglass looks for an offered battle on the current view, scrolling a
// few times before giving up.
func (c *Controller) findHourglass(ctx context.Context) (vision.Result, bool) {
	if res, ok := c.look(ctx, screen.Hourglass, 0); ok {
		return res, true
	}
	for i := 0; i < c.Limits.HourglassScrolls; i++ {
		if !c.scroll(ctx, false) {
			return vision.Result{}, false
		}
		if res, ok := c.look(ctx, screen.Hourglass, 0); ok {
			return res, true
		}
	}
	return vision.Result{}, false
}

// searchCatalogs walks the series in order. A later series is only opened
// once every entry of the earlier ones is complete.
func (c *Controller) searchCatalogs(ctx context.Context) searchOutcome {
	for _, cat := range c.Tracker.Catalogs() {
		if c.Tracker.SeriesComplete(cat.Series) {
			continue
		}
		c.Log.Infof("Searching series %s (%d entries left)", cat.Series, len(c.Tracker.Remaining(cat.Series)))
		if c.scanSeries(ctx, cat.Series) {
			return searchFound
		}
		if ctx.Err() != nil {
			return searchFailed
		}
		if !c.Tracker.SeriesComplete(cat.Series) {
			c.Log.Warnf("Series %s still has unchecked entries", cat.Series)
			return searchFailed
		}
		c.Log.Successf("Series %s complete", cat.Series)
	}
	if ctx.Err() != nil {
		return searchFailed
	}

	c.Log.Info("All expansions completed, starting over")
	if err := c.Tracker.Reset(); err != nil {
		c.Log.Warnf("Could not persist reset: %v", err)
	}
	if cats := c.Tracker.Catalogs(); len(cats) > 0 && c.ensureExpansionSelection(ctx) {
		c.switchSeries(ctx, cats[0].Series)
	}
	if c.OnCatalogReset != nil {
		c.OnCatalogReset()
	}
	return searchExhausted
}

// scanSeries checks every remaining entry of a series and reports whether a
// battle was found.
func (c *Controller) scanSeries(ctx context.Context, series expansion.Series) bool {
	for _, key := range c.Tracker.Remaining(series) {
		for attempt := 1; attempt <= c.Limits.MaxAttemptsPerExpansion; attempt++ {
			if ctx.Err() != nil {
				return false
			}
			entered, battle := c.checkExpansion(ctx, key)
			if battle {
				return true
			}
			if entered {
				break
			}
			if ctx.Err() == nil {
				c.Log.Warnf("Attempt %d/%d on %s failed", attempt, c.Limits.MaxAttemptsPerExpansion, key)
			}
		}
	}
	return false
}

// checkExpansion opens one catalog entry. entered reports whether the entry
// was opened and inspected; battle reports whether a battle was tapped.
func (c *Controller) checkExpansion(ctx context.Context, key expansion.Key) (entered, battle bool) {
	if !c.ensureExpansionSelection(ctx) {
		return false, false
	}
	c.switchSeries(ctx, key.Series)

	res, ok := c.locateEntry(ctx, key)
	if !ok {
		if ctx.Err() == nil {
			c.Log.Warnf("Could not locate %s", key)
		}
		return false, false
	}
	c.Log.Debugf("Opening %s", key)
	if !c.tap(ctx, res.X, res.Y) || !c.sleep(ctx, c.Timing.EntrySettle) {
		return false, false
	}
	if st, ok := c.classifyNow(ctx); !ok || st == screen.ExpansionSelection {
		if ctx.Err() == nil {
			c.Log.Warnf("Tap on %s did not open it", key)
		}
		return false, false
	}

	if hr, ok := c.findHourglass(ctx); ok {
		c.Log.Successf("Battle found in %s", key)
		return true, c.tapResult(ctx, hr)
	}
	if ctx.Err() != nil {
		return false, false
	}

	if err := c.Tracker.MarkComplete(key); err != nil {
		c.Log.Warnf("Could not persist %s: %v", key, err)
	}
	c.Log.Infof("No battle left in %s", key)
	c.navigateBack(ctx)
	return true, false
}

// locateEntry scans the catalog for an entry, scrolling and reopening the
// catalog to get back to the top of the list.
func (c *Controller) locateEntry(ctx context.Context, key expansion.Key) (vision.Result, bool) {
	ref := screen.EntryRef(key)
	for reset := 0; reset <= c.Limits.MaxResetAttempts; reset++ {
		if reset > 0 {
			c.Log.Debugf("Reopening catalog to look for %s (%d/%d)", key, reset, c.Limits.MaxResetAttempts)
			if !c.reopenCatalog(ctx) {
				if ctx.Err() != nil {
					return vision.Result{}, false
				}
				continue
			}
			c.switchSeries(ctx, key.Series)
		}
		if res, ok := c.look(ctx, ref, 0); ok {
			return res, true
		}
		for s := 0; s < c.Limits.MaxScrolls; s++ {
			if !c.scroll(ctx, true) {
				return vision.Result{}, false
			}
			if res, ok := c.look(ctx, ref, 0); ok {
				return res, true
			}
		}
	}
	return vision.Result{}, false
}

// reopenCatalog closes the catalog and opens it again, which scrolls the
// list back to the top.
func (c *Controller) reopenCatalog(ctx context.Context) bool {
	if res, ok := c.look(ctx, screen.CatalogClose, 0); ok {
		if !c.tapResult(ctx, res) {
			return false
		}
	}
	if !c.waitAndTap(ctx, screen.ExpansionsButton, c.Limits.SummaryTimeout) {
		return false
	}
	return c.awaitScreen(ctx, screen.ExpansionSelection, c.Limits.SummaryTimeout)
}

// ensureExpansionSelection opens the catalog when it is not shown already.
func (c *Controller) ensureExpansionSelection(ctx context.Context) bool {
	for attempt := 1; attempt <= c.Limits.NavigateAttempts; attempt++ {
		st, ok := c.classifyNow(ctx)
		if !ok {
			if ctx.Err() != nil {
				return false
			}
			c.sleep(ctx, c.Timing.RetryDelay)
			continue
		}
		switch st {
		case screen.ExpansionSelection:
			return true
		case screen.OptionalPopup:
			c.dismissPopup(ctx, false)
			continue
		}
		if c.navigateBack(ctx) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
	}
	c.Log.Warn("Could not open the expansion catalog")
	return false
}

// navigateBack taps the expansions button, relaxing the threshold on each try.
func (c *Controller) navigateBack(ctx context.Context) bool {
	for _, th := range c.Limits.NavigateThresholds {
		res, ok := c.look(ctx, screen.ExpansionsButton, th)
		if !ok {
			if ctx.Err() != nil {
				return false
			}
			continue
		}
		if !c.tapResult(ctx, res) {
			return false
		}
		return c.awaitScreen(ctx, screen.ExpansionSelection, c.Limits.SummaryTimeout)
	}
	c.Log.Debug("Expansions button not found")
	return false
}

// switchSeries selects a series tab. A missing tab button means the series
// is already active.
func (c *Controller) switchSeries(ctx context.Context, series expansion.Series) bool {
	res, ok := c.look(ctx, screen.SeriesButton(series), 0)
	if !ok {
		c.Log.Debugf("Series %s tab not visible, assuming it is active", series)
		return ctx.Err() == nil
	}
	return c.tapResult(ctx, res)
}

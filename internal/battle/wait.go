package battle

import (
	"context"
	"image"
	"time"

	"github.com/CodexForgeBR/autobattle/internal/screen"
	"github.com/CodexForgeBR/autobattle/internal/vision"
)

// Fallback screen size used until a frame was captured.
const (
	defaultWidth  = 540
	defaultHeight = 960
)

// sleep waits for d in slices of at most SleepSlice and reports whether ctx
// is still live afterwards.
func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	slice := c.Timing.SleepSlice
	if slice <= 0 || slice > d {
		slice = d
	}
	deadline := time.Now().Add(d)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return ctx.Err() == nil
		}
		step := slice
		if step > left {
			step = left
		}
		t := time.NewTimer(step)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
}

// capture grabs a frame and prepares it for repeated matching.
func (c *Controller) capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := c.Device.Capture(ctx)
	if err != nil {
		return nil, err
	}
	if c.ScreenSize == (image.Point{}) {
		c.ScreenSize = img.Bounds().Size()
	}
	if p, ok := c.Finder.(Preparer); ok {
		img = p.Prepare(img)
	}
	return img, nil
}

// classifyNow captures and classifies. ok is false when no frame could be
// taken.
func (c *Controller) classifyNow(ctx context.Context) (screen.State, bool) {
	frame, err := c.capture(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.Log.Warnf("Screenshot failed: %v", err)
		}
		return screen.Unknown, false
	}
	return c.Classifier.Classify(frame), true
}

// find matches ref in frame. A threshold <= 0 uses the controller threshold.
func (c *Controller) find(frame image.Image, ref vision.Ref, threshold float64) (vision.Result, bool) {
	if threshold <= 0 {
		threshold = c.Threshold
	}
	res, ok, err := c.Finder.Find(frame, ref, threshold)
	if err != nil {
		c.reportOnce(ref, err)
		return vision.Result{}, false
	}
	return res, ok
}

func (c *Controller) reportOnce(ref vision.Ref, err error) {
	c.mu.Lock()
	if c.reported == nil {
		c.reported = make(map[vision.Ref]bool)
	}
	seen := c.reported[ref]
	c.reported[ref] = true
	c.mu.Unlock()
	if !seen {
		c.Log.Warnf("Template %s unusable: %v", ref, err)
	}
}

// look captures a fresh frame and matches ref in it.
func (c *Controller) look(ctx context.Context, ref vision.Ref, threshold float64) (vision.Result, bool) {
	frame, err := c.capture(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.Log.Debugf("Screenshot failed while looking for %s: %v", ref, err)
		}
		return vision.Result{}, false
	}
	return c.find(frame, ref, threshold)
}

// tap sends a tap unless ctx is already done.
func (c *Controller) tap(ctx context.Context, x, y int) bool {
	if ctx.Err() != nil {
		return false
	}
	if err := c.Device.Tap(ctx, x, y); err != nil {
		if ctx.Err() == nil {
			c.Log.Warnf("Tap at (%d, %d) failed: %v", x, y, err)
		}
		return false
	}
	return true
}

// tapResult taps a match and lets the UI settle.
func (c *Controller) tapResult(ctx context.Context, res vision.Result) bool {
	if !c.tap(ctx, res.X, res.Y) {
		return false
	}
	return c.sleep(ctx, c.Timing.TapDelay)
}

func (c *Controller) size() image.Point {
	if c.ScreenSize.X > 0 && c.ScreenSize.Y > 0 {
		return c.ScreenSize
	}
	return image.Pt(defaultWidth, defaultHeight)
}

// scroll drags the list upwards from 70% to 30% of the screen height.
func (c *Controller) scroll(ctx context.Context, slow bool) bool {
	if ctx.Err() != nil {
		return false
	}
	sz := c.size()
	x := sz.X / 2
	duration, wait := 500, c.Timing.FastScrollWait
	if slow {
		duration, wait = 1000, c.Timing.SlowScrollWait
	}
	if err := c.Device.Swipe(ctx, x, sz.Y*7/10, x, sz.Y*3/10, duration); err != nil && ctx.Err() == nil {
		c.Log.Warnf("Scroll failed: %v", err)
	}
	return c.sleep(ctx, wait)
}

// waitFor polls for ref until it shows up or timeout passes. At least one
// check is made.
func (c *Controller) waitFor(ctx context.Context, ref vision.Ref, timeout time.Duration, threshold float64) (vision.Result, bool) {
	deadline := time.Now().Add(timeout)
	for {
		if res, ok := c.look(ctx, ref, threshold); ok {
			return res, true
		}
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			return vision.Result{}, false
		}
		if !c.sleep(ctx, c.Timing.CheckInterval) {
			return vision.Result{}, false
		}
	}
}

// waitAndTap waits for ref and taps it.
func (c *Controller) waitAndTap(ctx context.Context, ref vision.Ref, timeout time.Duration) bool {
	res, ok := c.waitFor(ctx, ref, timeout, 0)
	if !ok {
		return false
	}
	c.Log.Debugf("Tapping %s at (%d, %d)", ref, res.X, res.Y)
	return c.tapResult(ctx, res)
}

// awaitScreen polls the classifier until want is shown or timeout passes.
func (c *Controller) awaitScreen(ctx context.Context, want screen.State, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if st, ok := c.classifyNow(ctx); ok && st == want {
			return true
		}
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			return false
		}
		if !c.sleep(ctx, c.Timing.CheckInterval) {
			return false
		}
	}
}

// stillVisible takes a fresh frame and reports whether ref is in it. A frame
// that cannot be taken counts as visible so the caller does not assume
// success.
func (c *Controller) stillVisible(ctx context.Context, ref vision.Ref) bool {
	frame, err := c.capture(ctx)
	if err != nil {
		return true
	}
	_, ok := c.find(frame, ref, 0)
	return ok
}

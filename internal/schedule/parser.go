// Package schedule bounds a run to a time window: bots start at --start-at
// and are stopped at --stop-at.
package schedule

import (
	"fmt"
	"time"
)

// ParseTime parses a schedule string relative to now.
// Supports 4 formats:
// - YYYY-MM-DD → midnight of that date
// - HH:MM → today if still ahead of now, tomorrow otherwise
// - "YYYY-MM-DD HH:MM" → exact datetime
// - YYYY-MM-DDTHH:MM → ISO 8601 format
func ParseTime(input string, now time.Time) (time.Time, error) {
	local := now.Location()

	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, input, local); err == nil {
			return t, nil
		}
	}

	if t, err := time.ParseInLocation("15:04", input, local); err == nil {
		return nextClock(now, t.Hour(), t.Minute()), nil
	}

	return time.Time{}, fmt.Errorf("invalid schedule format: %q (supported: YYYY-MM-DD, HH:MM, \"YYYY-MM-DD HH:MM\", YYYY-MM-DDTHH:MM)", input)
}

// nextClock returns the first hh:mm at or after from.
func nextClock(from time.Time, hh, mm int) time.Time {
	t := time.Date(from.Year(), from.Month(), from.Day(), hh, mm, 0, 0, from.Location())
	if t.Before(from) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// Window is the span during which bots run. A zero Start means now and a
// zero Stop means until interrupted.
type Window struct {
	Start time.Time
	Stop  time.Time
}

// ParseWindow parses --start-at and --stop-at. Either may be empty. A bare
// HH:MM stop time is taken relative to the start, so "22:00" to "06:00"
// spans the night.
func ParseWindow(startAt, stopAt string, now time.Time) (Window, error) {
	var w Window
	if startAt != "" {
		t, err := ParseTime(startAt, now)
		if err != nil {
			return Window{}, fmt.Errorf("--start-at: %w", err)
		}
		w.Start = t
	}
	if stopAt != "" {
		from := now
		if !w.Start.IsZero() {
			from = w.Start
		}
		t, err := ParseTime(stopAt, from)
		if err != nil {
			return Window{}, fmt.Errorf("--stop-at: %w", err)
		}
		if !t.After(from) {
			return Window{}, fmt.Errorf("--stop-at %s is not after the start (%s)", t.Format("2006-01-02 15:04"), from.Format("2006-01-02 15:04"))
		}
		w.Stop = t
	}
	return w, nil
}

// String describes the window for the startup log.
func (w Window) String() string {
	start, stop := "now", "interrupted"
	if !w.Start.IsZero() {
		start = w.Start.Format("2006-01-02 15:04")
	}
	if !w.Stop.IsZero() {
		stop = w.Stop.Format("2006-01-02 15:04")
	}
	return start + " until " + stop
}

package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ref is a fixed "now" so clock-only inputs are deterministic.
var ref = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.Local)

func TestParseTime_Formats(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{"date", "2026-03-20", time.Date(2026, time.March, 20, 0, 0, 0, 0, time.Local)},
		{"date time", "2026-03-20 14:30", time.Date(2026, time.March, 20, 14, 30, 0, 0, time.Local)},
		{"iso 8601", "2026-03-20T14:30", time.Date(2026, time.March, 20, 14, 30, 0, 0, time.Local)},
		{"clock later today", "18:45", time.Date(2026, time.March, 15, 18, 45, 0, 0, time.Local)},
		{"clock already passed", "06:00", time.Date(2026, time.March, 16, 6, 0, 0, 0, time.Local)},
		{"clock exactly now", "12:00", ref},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.input, ref)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestParseTime_InvalidFormat(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid date", "2026-13-45"},
		{"invalid time", "25:99"},
		{"random text", "not a date"},
		{"partial date", "2026-03"},
		{"partial time", "14"},
		{"wrong separator", "2026/03/15"},
		{"empty string", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTime(tt.input, ref)
			assert.Error(t, err, "should error for input: %q", tt.input)
			assert.Contains(t, err.Error(), "invalid schedule format")
		})
	}
}

func TestParseWindow_Empty(t *testing.T) {
	w, err := ParseWindow("", "", ref)
	require.NoError(t, err)
	assert.True(t, w.Start.IsZero())
	assert.True(t, w.Stop.IsZero())
	assert.Equal(t, "now until interrupted", w.String())
}

func TestParseWindow_OvernightClock(t *testing.T) {
	w, err := ParseWindow("22:00", "06:00", ref)
	require.NoError(t, err)

	assert.True(t, time.Date(2026, time.March, 15, 22, 0, 0, 0, time.Local).Equal(w.Start))
	assert.True(t, time.Date(2026, time.March, 16, 6, 0, 0, 0, time.Local).Equal(w.Stop))
	assert.Equal(t, "2026-03-15 22:00 until 2026-03-16 06:00", w.String())
}

func TestParseWindow_StopOnly(t *testing.T) {
	w, err := ParseWindow("", "13:30", ref)
	require.NoError(t, err)
	assert.True(t, w.Start.IsZero())
	assert.True(t, time.Date(2026, time.March, 15, 13, 30, 0, 0, time.Local).Equal(w.Stop))
}

func TestParseWindow_Errors(t *testing.T) {
	tests := []struct {
		name    string
		startAt string
		stopAt  string
		want    string
	}{
		{"bad start", "soon", "", "--start-at"},
		{"bad stop", "", "later", "--stop-at"},
		{"stop before start", "2026-03-20 10:00", "2026-03-19 10:00", "not after the start"},
		{"stop equals start", "2026-03-20 10:00", "2026-03-20 10:00", "not after the start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWindow(tt.startAt, tt.stopAt, ref)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

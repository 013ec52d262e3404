package battle

import "time"

// Timing holds every delay the controller uses.
type Timing struct {
	// CheckInterval separates polls while waiting for a marker.
	CheckInterval time.Duration
	// TapDelay lets the UI settle after a tap.
	TapDelay time.Duration
	// RetryDelay separates repeated checks of an optional element.
	RetryDelay time.Duration
	// SleepSlice bounds how long any wait goes without checking for stop.
	SleepSlice time.Duration
	// CycleDelay separates two cycles of Run.
	CycleDelay time.Duration

	BattleStartInterval    time.Duration
	BattleProgressInterval time.Duration
	// BattleMaxWait aborts the completion wait; zero waits forever.
	BattleMaxWait time.Duration
	// ProgressLogEvery throttles "still waiting" messages during a battle.
	ProgressLogEvery time.Duration

	// Fixed settles of specific steps.
	AutoVerifyDelay time.Duration
	BattleTapSettle time.Duration
	EntrySettle     time.Duration
	SlowScrollWait  time.Duration
	FastScrollWait  time.Duration
}

// DefaultTiming returns the normal-speed timing.
func DefaultTiming() Timing {
	return Timing{
		CheckInterval:          500 * time.Millisecond,
		TapDelay:               time.Second,
		RetryDelay:             500 * time.Millisecond,
		SleepSlice:             200 * time.Millisecond,
		CycleDelay:             time.Second,
		BattleStartInterval:    2500 * time.Millisecond,
		BattleProgressInterval: 800 * time.Millisecond,
		ProgressLogEvery:       time.Minute,
		AutoVerifyDelay:        500 * time.Millisecond,
		BattleTapSettle:        time.Second,
		EntrySettle:            time.Second,
		SlowScrollWait:         800 * time.Millisecond,
		FastScrollWait:         600 * time.Millisecond,
	}
}

// FastTiming returns DefaultTiming with the shorter poll and tap delays of
// fast mode.
func FastTiming() Timing {
	t := DefaultTiming()
	t.CheckInterval = 200 * time.Millisecond
	t.TapDelay = 200 * time.Millisecond
	t.RetryDelay = 150 * time.Millisecond
	return t
}

// Limits bounds every search and retry loop.
type Limits struct {
	MaxScrolls              int
	MaxResetAttempts        int
	MaxAttemptsPerExpansion int
	HourglassScrolls        int
	DefeatMaxTaps           int
	PopupChecks             int
	NavigateAttempts        int
	// NavigateThresholds are tried in order when looking for the way back to
	// the catalog, since that button renders slightly differently per entry.
	NavigateThresholds []float64

	SetupBattleTimeout time.Duration
	ResultTimeout      time.Duration
	RewardsTimeouts    []time.Duration
	SummaryTimeout     time.Duration
	ScreenTimeout      time.Duration
}

// DefaultLimits returns the standard bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxScrolls:              8,
		MaxResetAttempts:        2,
		MaxAttemptsPerExpansion: 3,
		HourglassScrolls:        3,
		DefeatMaxTaps:           4,
		PopupChecks:             5,
		NavigateAttempts:        3,
		NavigateThresholds:      []float64{0.75, 0.70, 0.65},
		SetupBattleTimeout:      10 * time.Second,
		ResultTimeout:           2 * time.Second,
		RewardsTimeouts:         []time.Duration{8 * time.Second, 5 * time.Second, 5 * time.Second},
		SummaryTimeout:          3 * time.Second,
		ScreenTimeout:           5 * time.Second,
	}
}

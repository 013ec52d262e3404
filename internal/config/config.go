// Package config defines the autobattle configuration model and default values.
//
// Configuration is assembled from multiple sources with a strict precedence
// chain: built-in defaults < global config file < project config file <
// explicit config file < CLI flag overrides.
package config

import (
	"fmt"
	"time"

	"github.com/CodexForgeBR/autobattle/internal/battle"
	"github.com/CodexForgeBR/autobattle/internal/expansion"
)

// WhitelistedVars lists every configuration variable name that may appear in
// config files. Variables not in this list are silently ignored during loading.
var WhitelistedVars = []string{
	"ADB_PATH",
	"ADB_SERIAL",
	"DEVICES",
	"COMMAND_TIMEOUT",
	"FAST_MODE",
	"CYCLE_DELAY",
	"MATCH_THRESHOLD",
	"MATCH_SCALE",
	"CHECK_INTERVAL",
	"FAST_CHECK_INTERVAL",
	"TAP_DELAY",
	"FAST_TAP_DELAY",
	"RETRY_DELAY",
	"FAST_RETRY_DELAY",
	"SLEEP_SLICE",
	"BATTLE_START_INTERVAL",
	"BATTLE_PROGRESS_INTERVAL",
	"BATTLE_MAX_WAIT",
	"DEFEAT_MAX_TAPS",
	"MAX_SCROLLS",
	"MAX_RESET_ATTEMPTS",
	"MAX_ATTEMPTS_PER_EXPANSION",
	"HOURGLASS_SCROLLS",
	"SERIES_A",
	"SERIES_B",
	"TEMPLATE_DIR",
	"STATE_FILE",
	"RESET_FLAG",
	"LOG_DIR",
	"LOG_TO_FILE",
	"VERBOSE",
	"NOTIFY_WEBHOOK",
	"NOTIFY_CHANNEL",
	"NOTIFY_CHAT_ID",
}

// Config holds every configuration field for the autobattle CLI.
type Config struct {
	// Device access.
	ADBPath        string
	Serial         string
	Devices        []string
	CommandTimeout time.Duration

	// Automation.
	FastMode   bool
	CycleDelay time.Duration

	// Template matching.
	Threshold  float64
	MatchScale float64

	// Screen polling.
	CheckInterval     time.Duration
	FastCheckInterval time.Duration
	TapDelay          time.Duration
	FastTapDelay      time.Duration
	RetryDelay        time.Duration
	FastRetryDelay    time.Duration
	SleepSlice        time.Duration

	// Battle.
	BattleStartInterval    time.Duration
	BattleProgressInterval time.Duration
	BattleMaxWait          time.Duration
	DefeatMaxTaps          int

	// Catalog search.
	MaxScrolls              int
	MaxResetAttempts        int
	MaxAttemptsPerExpansion int
	HourglassScrolls        int
	SeriesA                 []string
	SeriesB                 []string

	// File paths.
	TemplateDir string
	StateFile   string
	ResetFlag   string
	LogDir      string
	LogToFile   bool

	// Runtime flags.
	Verbose bool

	// Notification settings.
	NotifyWebhook string
	NotifyChannel string
	NotifyChatID  string

	// CLI-only flags (not loaded from config files).
	ConfigFile string
	Slot       int
	UseFlag    bool
	OutFile    string
	StartAt    string
	StopAt     string
}

// NewDefaultConfig returns a Config populated with all built-in default values.
func NewDefaultConfig() *Config {
	return &Config{
		ADBPath:                 "adb",
		Serial:                  "127.0.0.1:5585",
		CommandTimeout:          10 * time.Second,
		CycleDelay:              time.Second,
		Threshold:               0.75,
		MatchScale:              0.5,
		CheckInterval:           500 * time.Millisecond,
		FastCheckInterval:       200 * time.Millisecond,
		TapDelay:                time.Second,
		FastTapDelay:            200 * time.Millisecond,
		RetryDelay:              500 * time.Millisecond,
		FastRetryDelay:          150 * time.Millisecond,
		SleepSlice:              200 * time.Millisecond,
		BattleStartInterval:     2500 * time.Millisecond,
		BattleProgressInterval:  800 * time.Millisecond,
		DefeatMaxTaps:           4,
		MaxScrolls:              8,
		MaxResetAttempts:        2,
		MaxAttemptsPerExpansion: 3,
		HourglassScrolls:        3,
		SeriesA:                 append([]string(nil), expansion.DefaultSeriesA...),
		SeriesB:                 append([]string(nil), expansion.DefaultSeriesB...),
		TemplateDir:             "templates",
		StateFile:               "completed_expansions.json",
		ResetFlag:               "reset_expansions.flag",
		LogDir:                  "logs",
		NotifyWebhook:           "http://127.0.0.1:18789/webhook",
		NotifyChannel:           "telegram",
		Slot:                    -1,
	}
}

// DeviceList returns the serials to run, one per slot. Without an explicit
// list the single configured serial is used.
func (c *Config) DeviceList() []string {
	if len(c.Devices) > 0 {
		return c.Devices
	}
	if c.Serial == "" {
		return nil
	}
	return []string{c.Serial}
}

// Timing returns the controller timing, using the fast delays in fast mode.
func (c *Config) Timing() battle.Timing {
	t := battle.DefaultTiming()
	t.CheckInterval = c.CheckInterval
	t.TapDelay = c.TapDelay
	t.RetryDelay = c.RetryDelay
	if c.FastMode {
		t.CheckInterval = c.FastCheckInterval
		t.TapDelay = c.FastTapDelay
		t.RetryDelay = c.FastRetryDelay
	}
	t.SleepSlice = c.SleepSlice
	t.CycleDelay = c.CycleDelay
	t.BattleStartInterval = c.BattleStartInterval
	t.BattleProgressInterval = c.BattleProgressInterval
	t.BattleMaxWait = c.BattleMaxWait
	return t
}

// Limits returns the controller search and retry bounds.
func (c *Config) Limits() battle.Limits {
	l := battle.DefaultLimits()
	l.MaxScrolls = c.MaxScrolls
	l.MaxResetAttempts = c.MaxResetAttempts
	l.MaxAttemptsPerExpansion = c.MaxAttemptsPerExpansion
	l.HourglassScrolls = c.HourglassScrolls
	l.DefeatMaxTaps = c.DefeatMaxTaps
	return l
}

// Catalogs returns the configured catalogs in scan order.
func (c *Config) Catalogs() []expansion.Catalog {
	return []expansion.Catalog{
		{Series: expansion.SeriesA, Entries: append([]string(nil), c.SeriesA...)},
		{Series: expansion.SeriesB, Entries: append([]string(nil), c.SeriesB...)},
	}
}

// Validate checks value ranges that would make the bot misbehave.
func (c *Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("match threshold must be in (0, 1], got %g", c.Threshold)
	}
	if c.MatchScale < 0 || c.MatchScale > 1 {
		return fmt.Errorf("match scale must be in [0, 1], got %g", c.MatchScale)
	}
	if c.SleepSlice < 10*time.Millisecond || c.SleepSlice > time.Second {
		return fmt.Errorf("sleep slice must be between 10ms and 1s, got %s", c.SleepSlice)
	}
	if len(c.SeriesA) == 0 || len(c.SeriesB) == 0 {
		return fmt.Errorf("both expansion series need at least one entry")
	}
	if n := len(c.DeviceList()); n > expansion.MaxSlots {
		return fmt.Errorf("at most %d devices can run at once, got %d", expansion.MaxSlots, n)
	}
	if c.Slot != -1 && !expansion.ValidSlot(c.Slot) {
		return fmt.Errorf("slot must be between 1 and %d", expansion.MaxSlots)
	}
	for name, v := range map[string]int{
		"max scrolls":                c.MaxScrolls,
		"max reset attempts":         c.MaxResetAttempts,
		"max attempts per expansion": c.MaxAttemptsPerExpansion,
		"hourglass scrolls":          c.HourglassScrolls,
		"defeat max taps":            c.DefeatMaxTaps,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, v)
		}
	}
	if c.MaxAttemptsPerExpansion == 0 || c.DefeatMaxTaps == 0 {
		return fmt.Errorf("max attempts per expansion and defeat max taps must be at least 1")
	}
	return nil
}

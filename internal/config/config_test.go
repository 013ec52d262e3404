package config_test

import (
	"testing"
	"time"

	"github.com/CodexForgeBR/autobattle/internal/config"
	"github.com/CodexForgeBR/autobattle/internal/expansion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfigValues(t *testing.T) {
	cfg := config.NewDefaultConfig()
	require.NotNil(t, cfg)

	// Device access.
	assert.Equal(t, "adb", cfg.ADBPath)
	assert.Equal(t, "127.0.0.1:5585", cfg.Serial)
	assert.Empty(t, cfg.Devices)
	assert.Equal(t, 10*time.Second, cfg.CommandTimeout)

	// Matching and polling.
	assert.Equal(t, 0.75, cfg.Threshold)
	assert.Equal(t, 500*time.Millisecond, cfg.CheckInterval)
	assert.Equal(t, time.Second, cfg.TapDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, 200*time.Millisecond, cfg.SleepSlice)
	assert.Equal(t, time.Second, cfg.CycleDelay)

	// Battle.
	assert.Equal(t, 2500*time.Millisecond, cfg.BattleStartInterval)
	assert.Equal(t, 800*time.Millisecond, cfg.BattleProgressInterval)
	assert.Zero(t, cfg.BattleMaxWait)
	assert.Equal(t, 4, cfg.DefeatMaxTaps)

	// Catalog search.
	assert.Equal(t, 8, cfg.MaxScrolls)
	assert.Equal(t, 2, cfg.MaxResetAttempts)
	assert.Equal(t, 3, cfg.MaxAttemptsPerExpansion)
	assert.Equal(t, 3, cfg.HourglassScrolls)
	assert.Equal(t, expansion.DefaultSeriesA, cfg.SeriesA)
	assert.Equal(t, expansion.DefaultSeriesB, cfg.SeriesB)

	// File paths.
	assert.Equal(t, "templates", cfg.TemplateDir)
	assert.Equal(t, "completed_expansions.json", cfg.StateFile)
	assert.Equal(t, "reset_expansions.flag", cfg.ResetFlag)
	assert.Equal(t, "logs", cfg.LogDir)

	// Notification settings.
	assert.Equal(t, "http://127.0.0.1:18789/webhook", cfg.NotifyWebhook)
	assert.Equal(t, "telegram", cfg.NotifyChannel)
	assert.Empty(t, cfg.NotifyChatID)

	// CLI-only flags.
	assert.Empty(t, cfg.ConfigFile)
	assert.Equal(t, -1, cfg.Slot)
	assert.False(t, cfg.UseFlag)
}

func TestDefaultSeriesAreCopies(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.SeriesA[0] = "changed"
	assert.NotEqual(t, "changed", expansion.DefaultSeriesA[0])
}

func TestWhitelistedVarsHasNoDuplicates(t *testing.T) {
	seen := make(map[string]bool)
	for _, v := range config.WhitelistedVars {
		assert.False(t, seen[v], "duplicate whitelisted var: %s", v)
		seen[v] = true
	}
}

func TestEveryWhitelistedVarIsApplied(t *testing.T) {
	for _, key := range config.WhitelistedVars {
		t.Run(key, func(t *testing.T) {
			value := "7"
			switch key {
			case "FAST_MODE", "VERBOSE", "LOG_TO_FILE":
				value = "true"
			}
			cfg := config.NewDefaultConfig()
			before := *cfg
			config.ApplyMapToConfig(cfg, map[string]string{key: value})
			assert.NotEqual(t, before, *cfg, "%s did not change the config", key)
		})
	}
}

func TestDeviceList(t *testing.T) {
	cfg := config.NewDefaultConfig()
	assert.Equal(t, []string{"127.0.0.1:5585"}, cfg.DeviceList())

	cfg.Devices = []string{"emulator-5554", "127.0.0.1:5595"}
	assert.Equal(t, []string{"emulator-5554", "127.0.0.1:5595"}, cfg.DeviceList())

	cfg.Devices = nil
	cfg.Serial = ""
	assert.Empty(t, cfg.DeviceList())
}

func TestTimingNormalMode(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.BattleMaxWait = 10 * time.Minute

	tm := cfg.Timing()
	assert.Equal(t, 500*time.Millisecond, tm.CheckInterval)
	assert.Equal(t, time.Second, tm.TapDelay)
	assert.Equal(t, 500*time.Millisecond, tm.RetryDelay)
	assert.Equal(t, 200*time.Millisecond, tm.SleepSlice)
	assert.Equal(t, 2500*time.Millisecond, tm.BattleStartInterval)
	assert.Equal(t, 800*time.Millisecond, tm.BattleProgressInterval)
	assert.Equal(t, 10*time.Minute, tm.BattleMaxWait)
	assert.Equal(t, time.Minute, tm.ProgressLogEvery)
}

func TestTimingFastMode(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.FastMode = true

	tm := cfg.Timing()
	assert.Equal(t, 200*time.Millisecond, tm.CheckInterval)
	assert.Equal(t, 200*time.Millisecond, tm.TapDelay)
	assert.Equal(t, 150*time.Millisecond, tm.RetryDelay)
	// Battle polling is not affected by fast mode.
	assert.Equal(t, 800*time.Millisecond, tm.BattleProgressInterval)
}

func TestLimits(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.MaxScrolls = 5
	cfg.DefeatMaxTaps = 6

	l := cfg.Limits()
	assert.Equal(t, 5, l.MaxScrolls)
	assert.Equal(t, 6, l.DefeatMaxTaps)
	assert.Equal(t, 2, l.MaxResetAttempts)
	assert.Equal(t, []float64{0.75, 0.70, 0.65}, l.NavigateThresholds)
}

func TestCatalogs(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.SeriesB = []string{"CB"}

	cats := cfg.Catalogs()
	require.Len(t, cats, 2)
	assert.Equal(t, expansion.SeriesA, cats[0].Series)
	assert.Equal(t, expansion.SeriesB, cats[1].Series)
	assert.Equal(t, []string{"CB"}, cats[1].Entries)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"defaults", func(*config.Config) {}, ""},
		{"zero threshold", func(c *config.Config) { c.Threshold = 0 }, "threshold"},
		{"threshold above one", func(c *config.Config) { c.Threshold = 1.5 }, "threshold"},
		{"threshold of one", func(c *config.Config) { c.Threshold = 1 }, ""},
		{"scale above one", func(c *config.Config) { c.MatchScale = 2 }, "scale"},
		{"sleep slice too short", func(c *config.Config) { c.SleepSlice = time.Millisecond }, "sleep slice"},
		{"sleep slice too long", func(c *config.Config) { c.SleepSlice = 2 * time.Second }, "sleep slice"},
		{"empty series", func(c *config.Config) { c.SeriesB = nil }, "series"},
		{"too many devices", func(c *config.Config) { c.Devices = []string{"a", "b", "c", "d", "e"} }, "at most 4"},
		{"four devices", func(c *config.Config) { c.Devices = []string{"a", "b", "c", "d"} }, ""},
		{"bad slot", func(c *config.Config) { c.Slot = 4 }, "slot"},
		{"negative scrolls", func(c *config.Config) { c.MaxScrolls = -1 }, "max scrolls"},
		{"no attempts", func(c *config.Config) { c.MaxAttemptsPerExpansion = 0 }, "at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

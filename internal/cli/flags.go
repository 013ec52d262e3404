// Package cli provides flag binding and validation for the autobattle CLI.
package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CodexForgeBR/autobattle/internal/config"
	"github.com/CodexForgeBR/autobattle/internal/expansion"
)

// BindFlags registers the flags shared by every subcommand as persistent
// flags on cmd. The flags directly modify fields in the provided config
// pointer. Call ValidateFlags after parsing to check flag combinations.
func BindFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.PersistentFlags()

	// Config & Paths
	flags.StringVar(&cfg.ConfigFile, "config", "", "Path to additional config file (KEY=VALUE or YAML)")
	flags.StringVar(&cfg.TemplateDir, "template-dir", cfg.TemplateDir, "Directory holding the template images")
	flags.StringVar(&cfg.StateFile, "state-file", cfg.StateFile, "Completion document shared by all bots")
	flags.StringVar(&cfg.ResetFlag, "reset-flag", cfg.ResetFlag, "Sentinel file that resets completions of a running process")

	// Device
	flags.StringVar(&cfg.ADBPath, "adb", cfg.ADBPath, "Path to the adb binary")
	flags.StringVarP(&cfg.Serial, "serial", "s", cfg.Serial, "Device serial used when no --device is given")

	// Output
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Show debug output")
}

// BindRunFlags registers the flags of the run command.
func BindRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	flags.StringSliceVarP(&cfg.Devices, "device", "d", nil, "Device serial per bot slot (repeatable, up to 4)")
	flags.IntVar(&cfg.Slot, "slot", 0, "Run only this bot slot (1-4)")
	flags.BoolVar(&cfg.FastMode, "fast", false, "Use the shorter fast-mode delays")
	flags.Float64Var(&cfg.Threshold, "threshold", cfg.Threshold, "Default template match threshold")
	flags.DurationVar(&cfg.CycleDelay, "cycle-delay", cfg.CycleDelay, "Pause between automation cycles")

	// Scheduling
	flags.StringVar(&cfg.StartAt, "start-at", "", "Start the bots at this time (HH:MM, YYYY-MM-DD HH:MM, ISO 8601)")
	flags.StringVar(&cfg.StopAt, "stop-at", "", "Stop the bots at this time (same formats as --start-at)")

	flags.BoolVar(&cfg.LogToFile, "log-to-file", false, "Mirror log output to a file")
	flags.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for log files")

	// Notifications
	flags.StringVar(&cfg.NotifyWebhook, "notify-webhook", cfg.NotifyWebhook, "OpenClaw webhook URL")
	flags.StringVar(&cfg.NotifyChannel, "notify-channel", cfg.NotifyChannel, "Notification channel")
	flags.StringVar(&cfg.NotifyChatID, "notify-chat-id", "", "Recipient chat ID")
}

// BindResetFlags registers the flags of the reset command.
func BindResetFlags(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().IntVar(&cfg.Slot, "slot", 0, "Reset only this bot slot (1-4)")
	cmd.Flags().BoolVar(&cfg.UseFlag, "flag", false, "Drop the reset flag for a running process instead of editing the document")
}

// BindCaptureFlags registers the flags of the capture command.
func BindCaptureFlags(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVarP(&cfg.OutFile, "out", "o", "screenshot.png", "Output PNG file")
}

// ValidateFlags checks flag values after parsing and normalizes --slot to a
// 0-indexed slot, or -1 when it was not given.
// Must be called after cmd.Execute() or cmd.ParseFlags().
func ValidateFlags(cmd *cobra.Command, cfg *config.Config) error {
	// --config must exist if provided
	if cfg.ConfigFile != "" {
		if _, err := os.Stat(cfg.ConfigFile); err != nil {
			return fmt.Errorf("--config: %w", err)
		}
	}

	if f := cmd.Flags().Lookup("slot"); f != nil && f.Changed {
		if cfg.Slot < 1 || cfg.Slot > expansion.MaxSlots {
			return fmt.Errorf("--slot must be between 1 and %d, got: %d", expansion.MaxSlots, cfg.Slot)
		}
		cfg.Slot--
	} else {
		cfg.Slot = -1
	}

	if len(cfg.Devices) > expansion.MaxSlots {
		return fmt.Errorf("--device may be given at most %d times, got: %d", expansion.MaxSlots, len(cfg.Devices))
	}

	if cfg.OutFile != "" && !strings.HasSuffix(strings.ToLower(cfg.OutFile), ".png") {
		return fmt.Errorf("--out must name a .png file, got: %s", cfg.OutFile)
	}

	return nil
}

// BuildOverrides creates a map of CLI flag overrides from the config.
// Uses cmd.Flags().Changed() to only include flags explicitly set by the user,
// ensuring config file values are not accidentally overridden by default values.
func BuildOverrides(cmd *cobra.Command, cfg *config.Config) map[string]string {
	overrides := make(map[string]string)
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	// String flags: only include if explicitly set via CLI
	stringFlags := map[string]struct {
		key string
		val string
	}{
		"adb":            {"ADB_PATH", cfg.ADBPath},
		"serial":         {"ADB_SERIAL", cfg.Serial},
		"template-dir":   {"TEMPLATE_DIR", cfg.TemplateDir},
		"state-file":     {"STATE_FILE", cfg.StateFile},
		"reset-flag":     {"RESET_FLAG", cfg.ResetFlag},
		"log-dir":        {"LOG_DIR", cfg.LogDir},
		"notify-webhook": {"NOTIFY_WEBHOOK", cfg.NotifyWebhook},
		"notify-channel": {"NOTIFY_CHANNEL", cfg.NotifyChannel},
		"notify-chat-id": {"NOTIFY_CHAT_ID", cfg.NotifyChatID},
		"device":         {"DEVICES", strings.Join(cfg.Devices, ",")},
		"cycle-delay":    {"CYCLE_DELAY", cfg.CycleDelay.String()},
		"threshold":      {"MATCH_THRESHOLD", strconv.FormatFloat(cfg.Threshold, 'g', -1, 64)},
	}
	for flag, mapping := range stringFlags {
		if changed(flag) {
			overrides[mapping.key] = mapping.val
		}
	}

	// Bool flags
	boolFlags := map[string]struct {
		key string
		val bool
	}{
		"verbose":     {"VERBOSE", cfg.Verbose},
		"fast":        {"FAST_MODE", cfg.FastMode},
		"log-to-file": {"LOG_TO_FILE", cfg.LogToFile},
	}
	for flag, mapping := range boolFlags {
		if changed(flag) {
			overrides[mapping.key] = strconv.FormatBool(mapping.val)
		}
	}

	return overrides
}

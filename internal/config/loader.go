package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// whitelistSet is a precomputed lookup table for fast whitelist membership checks.
var whitelistSet map[string]bool

func init() {
	whitelistSet = make(map[string]bool, len(WhitelistedVars))
	for _, v := range WhitelistedVars {
		whitelistSet[v] = true
	}
}

// yamlKeys maps "section.key" in a YAML config to its variable name.
var yamlKeys = map[string]string{
	"adb.path":            "ADB_PATH",
	"adb.serial":          "ADB_SERIAL",
	"adb.devices":         "DEVICES",
	"adb.command_timeout": "COMMAND_TIMEOUT",

	"automation.cycle_delay": "CYCLE_DELAY",
	"automation.fast_mode":   "FAST_MODE",

	"matching.default_threshold": "MATCH_THRESHOLD",
	"matching.scale":             "MATCH_SCALE",
	"matching.verbose":           "VERBOSE",

	"screens.check_interval":      "CHECK_INTERVAL",
	"screens.fast_check_interval": "FAST_CHECK_INTERVAL",
	"screens.tap_delay":           "TAP_DELAY",
	"screens.fast_tap_delay":      "FAST_TAP_DELAY",
	"screens.retry_delay":         "RETRY_DELAY",
	"screens.fast_retry_delay":    "FAST_RETRY_DELAY",
	"screens.sleep_slice":         "SLEEP_SLICE",

	"battle.max_wait_time":                  "BATTLE_MAX_WAIT",
	"battle.battle_start_check_interval":    "BATTLE_START_INTERVAL",
	"battle.battle_progress_check_interval": "BATTLE_PROGRESS_INTERVAL",
	"battle.defeat_max_taps":                "DEFEAT_MAX_TAPS",

	"expansions.series_a":                   "SERIES_A",
	"expansions.series_b":                   "SERIES_B",
	"expansions.max_scrolls":                "MAX_SCROLLS",
	"expansions.max_reset_attempts":         "MAX_RESET_ATTEMPTS",
	"expansions.max_attempts_per_expansion": "MAX_ATTEMPTS_PER_EXPANSION",
	"expansions.hourglass_scrolls":          "HOURGLASS_SCROLLS",

	"paths.templates":  "TEMPLATE_DIR",
	"paths.state":      "STATE_FILE",
	"paths.reset_flag": "RESET_FLAG",
	"paths.logs":       "LOG_DIR",

	"logging.to_file": "LOG_TO_FILE",

	"notify.webhook": "NOTIFY_WEBHOOK",
	"notify.channel": "NOTIFY_CHANNEL",
	"notify.chat_id": "NOTIFY_CHAT_ID",
}

// LoadFile parses a config file at the given path. Files ending in .yaml or
// .yml are read as sectioned YAML; anything else as KEY=VALUE lines.
//
// KEY=VALUE lines are processed according to these rules:
//   - Empty lines and lines starting with # are skipped.
//   - Lines without an = sign are skipped.
//   - Leading and trailing whitespace is trimmed from both key and value.
//   - Keys not present in WhitelistedVars are silently ignored.
//
// Returns a map of whitelisted key-value pairs, or an error if the file
// cannot be opened or parsed.
func LoadFile(path string) (map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	result := make(map[string]string)
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Split on first '=' only.
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}

		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])

		// Enforce whitelist.
		if !whitelistSet[key] {
			continue
		}

		result[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return result, nil
}

// loadYAML flattens a sectioned YAML config into variable names. Lists become
// comma-separated values and null values are skipped.
func loadYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}

	var doc map[string]map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	result := make(map[string]string)
	for section, values := range doc {
		for key, v := range values {
			name, ok := yamlKeys[section+"."+key]
			if !ok || v == nil {
				continue
			}
			result[name] = yamlScalar(v)
		}
	}
	if level, ok := doc["logging"]["level"].(string); ok && strings.EqualFold(level, "debug") {
		result["VERBOSE"] = "true"
	}
	return result, nil
}

func yamlScalar(v any) string {
	if list, ok := v.([]any); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}

// LoadWithPrecedence assembles a Config by merging sources in order of
// increasing priority:
//
//  1. Built-in defaults
//  2. Global config file (globalPath)
//  3. Project config file (projectPath)
//  4. Explicit config file (explicitPath)
//  5. CLI overrides (cliOverrides map)
//
// Any path that is empty is silently skipped. If a non-empty path cannot be
// loaded, an error is returned.
func LoadWithPrecedence(globalPath, projectPath, explicitPath string, cliOverrides map[string]string) (*Config, error) {
	cfg := NewDefaultConfig()

	// Layer 2: global config file.
	if globalPath != "" {
		m, err := LoadFile(globalPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("global config: %w", err)
			}
			// Missing global config is not an error.
		} else {
			ApplyMapToConfig(cfg, m)
		}
	}

	// Layer 3: project config file.
	if projectPath != "" {
		m, err := LoadFile(projectPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("project config: %w", err)
			}
		} else {
			ApplyMapToConfig(cfg, m)
		}
	}

	// Layer 4: explicit config file (must exist if specified).
	if explicitPath != "" {
		m, err := LoadFile(explicitPath)
		if err != nil {
			return nil, fmt.Errorf("explicit config: %w", err)
		}
		ApplyMapToConfig(cfg, m)
	}

	// Layer 5: CLI overrides (highest priority).
	if len(cliOverrides) > 0 {
		ApplyMapToConfig(cfg, cliOverrides)
	}

	return cfg, nil
}

// ApplyMapToConfig sets fields on cfg from the key-value pairs in m.
// Keys must use the WhitelistedVars naming convention (e.g., "ADB_SERIAL").
// Unknown keys are silently ignored. Numeric and duration fields that fail to
// parse are silently ignored (the previous value is preserved). Empty values
// never override.
func ApplyMapToConfig(cfg *Config, m map[string]string) {
	for key, value := range m {
		if value == "" {
			continue
		}
		switch key {
		case "ADB_PATH":
			cfg.ADBPath = value
		case "ADB_SERIAL":
			cfg.Serial = value
		case "DEVICES":
			cfg.Devices = parseList(value)
		case "COMMAND_TIMEOUT":
			setDuration(&cfg.CommandTimeout, value)
		case "FAST_MODE":
			cfg.FastMode = parseBool(value)
		case "CYCLE_DELAY":
			setDuration(&cfg.CycleDelay, value)
		case "MATCH_THRESHOLD":
			setFloat(&cfg.Threshold, value)
		case "MATCH_SCALE":
			setFloat(&cfg.MatchScale, value)
		case "CHECK_INTERVAL":
			setDuration(&cfg.CheckInterval, value)
		case "FAST_CHECK_INTERVAL":
			setDuration(&cfg.FastCheckInterval, value)
		case "TAP_DELAY":
			setDuration(&cfg.TapDelay, value)
		case "FAST_TAP_DELAY":
			setDuration(&cfg.FastTapDelay, value)
		case "RETRY_DELAY":
			setDuration(&cfg.RetryDelay, value)
		case "FAST_RETRY_DELAY":
			setDuration(&cfg.FastRetryDelay, value)
		case "SLEEP_SLICE":
			setDuration(&cfg.SleepSlice, value)
		case "BATTLE_START_INTERVAL":
			setDuration(&cfg.BattleStartInterval, value)
		case "BATTLE_PROGRESS_INTERVAL":
			setDuration(&cfg.BattleProgressInterval, value)
		case "BATTLE_MAX_WAIT":
			setDuration(&cfg.BattleMaxWait, value)
		case "DEFEAT_MAX_TAPS":
			setInt(&cfg.DefeatMaxTaps, value)
		case "MAX_SCROLLS":
			setInt(&cfg.MaxScrolls, value)
		case "MAX_RESET_ATTEMPTS":
			setInt(&cfg.MaxResetAttempts, value)
		case "MAX_ATTEMPTS_PER_EXPANSION":
			setInt(&cfg.MaxAttemptsPerExpansion, value)
		case "HOURGLASS_SCROLLS":
			setInt(&cfg.HourglassScrolls, value)
		case "SERIES_A":
			cfg.SeriesA = parseList(value)
		case "SERIES_B":
			cfg.SeriesB = parseList(value)
		case "TEMPLATE_DIR":
			cfg.TemplateDir = value
		case "STATE_FILE":
			cfg.StateFile = value
		case "RESET_FLAG":
			cfg.ResetFlag = value
		case "LOG_DIR":
			cfg.LogDir = value
		case "LOG_TO_FILE":
			cfg.LogToFile = parseBool(value)
		case "VERBOSE":
			cfg.Verbose = parseBool(value)
		case "NOTIFY_WEBHOOK":
			cfg.NotifyWebhook = value
		case "NOTIFY_CHANNEL":
			cfg.NotifyChannel = value
		case "NOTIFY_CHAT_ID":
			cfg.NotifyChatID = value
		}
	}
}

// parseBool interprets common boolean representations.
// "true", "1", "yes" (case-insensitive) return true; everything else returns false.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// parseDuration accepts Go duration syntax ("500ms", "2m") or a bare number
// of seconds ("0.5").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setDuration(dst *time.Duration, value string) {
	if d, err := parseDuration(value); err == nil && d >= 0 {
		*dst = d
	}
}

func setInt(dst *int, value string) {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		*dst = v
	}
}

func setFloat(dst *float64, value string) {
	if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		*dst = v
	}
}

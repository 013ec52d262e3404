package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/CodexForgeBR/autobattle/internal/banner"
	"github.com/CodexForgeBR/autobattle/internal/cli"
	"github.com/CodexForgeBR/autobattle/internal/config"
	"github.com/CodexForgeBR/autobattle/internal/device"
	"github.com/CodexForgeBR/autobattle/internal/exitcode"
	"github.com/CodexForgeBR/autobattle/internal/expansion"
	"github.com/CodexForgeBR/autobattle/internal/logging"
)

// version vars injected via ldflags at build time
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return exitcode.Name(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	cfg := config.NewDefaultConfig()

	rootCmd := &cobra.Command{
		Use:           "autobattle",
		Short:         "Automated battle runner for Android emulators",
		Long:          "autobattle drives one bot per emulator through the battle loop, using template matching over adb screenshots.",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Bind shared CLI flags to the config
	cli.BindFlags(rootCmd, cfg)

	// Set custom help template
	cli.SetCustomHelp(rootCmd)

	rootCmd.AddCommand(
		newRunCmd(cfg),
		newResetCmd(cfg),
		newStatusCmd(cfg),
		newDevicesCmd(cfg),
		newCaptureCmd(cfg),
	)

	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				logging.Error(ee.err.Error())
			}
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitcode.Error)
	}
}

// loadConfig validates the parsed flags and merges them over the config
// files. Only flags the user set override file values.
func loadConfig(cmd *cobra.Command, cfg *config.Config) (*config.Config, error) {
	if err := cli.ValidateFlags(cmd, cfg); err != nil {
		return nil, err
	}

	finalCfg, err := config.LoadWithPrecedence(globalConfigPath(), projectConfigPath(), cfg.ConfigFile, cli.BuildOverrides(cmd, cfg))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Merge CLI-only flags (not in config files)
	finalCfg.ConfigFile = cfg.ConfigFile
	finalCfg.Slot = cfg.Slot
	finalCfg.UseFlag = cfg.UseFlag
	finalCfg.OutFile = cfg.OutFile
	finalCfg.StartAt = cfg.StartAt
	finalCfg.StopAt = cfg.StopAt

	if err := finalCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logging.SetVerbose(finalCfg.Verbose)
	return finalCfg, nil
}

func globalConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "autobattle", "config")
}

// projectConfigPath prefers ./config.yaml and falls back to ./.autobattle.
func projectConfigPath() string {
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ".autobattle"
}

func newResetCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear completed expansions of one slot or all slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, cfg)
			if err != nil {
				return err
			}
			fs := afero.NewOsFs()

			var slot *int
			if cfg.Slot >= 0 {
				slot = &cfg.Slot
			}
			target := "all bots"
			if slot != nil {
				target = fmt.Sprintf("bot %d", *slot+1)
			}

			if cfg.UseFlag {
				if err := expansion.WriteResetFlag(fs, cfg.ResetFlag, slot); err != nil {
					return err
				}
				logging.Success(fmt.Sprintf("Reset flag written for %s: %s", target, cfg.ResetFlag))
				return nil
			}

			store := expansion.NewStore(fs, cfg.StateFile)
			if slot != nil {
				err = store.Reset(*slot)
			} else {
				err = store.ResetAll()
			}
			if err != nil {
				return err
			}
			logging.Success(fmt.Sprintf("Completed expansions cleared for %s", target))
			return nil
		},
	}
	cli.BindResetFlags(cmd, cfg)
	return cmd
}

func newStatusCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show completed and remaining expansions per slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, cfg)
			if err != nil {
				return err
			}
			all, err := expansion.NewStore(afero.NewOsFs(), cfg.StateFile).LoadAll()
			if err != nil {
				return err
			}
			banner.PrintCompletionTable(all, cfg.Catalogs())
			return nil
		},
	}
}

func newDevicesCmd(cfg *config.Config) *cobra.Command {
	var connect, disconnect string
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List adb devices, connect or disconnect network devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, cfg)
			if err != nil {
				return err
			}
			mgr := device.NewManager(cfg.ADBPath)
			if cfg.CommandTimeout > 0 {
				mgr.Timeout = cfg.CommandTimeout
			}
			ctx := cmd.Context()

			if connect != "" {
				if err := mgr.Connect(ctx, connect); err != nil {
					return &exitError{code: exitcode.DeviceUnavailable, err: err}
				}
				logging.Success(fmt.Sprintf("Connected to %s", connect))
			}
			if disconnect != "" {
				if err := mgr.Disconnect(ctx, disconnect); err != nil {
					return &exitError{code: exitcode.DeviceUnavailable, err: err}
				}
				logging.Success(fmt.Sprintf("Disconnected from %s", disconnect))
			}

			devices, err := mgr.ListDevices(ctx)
			if err != nil {
				return &exitError{code: exitcode.DeviceUnavailable, err: err}
			}
			if len(devices) == 0 {
				logging.Warn("No devices attached")
				return nil
			}
			for _, d := range devices {
				if d.Online() {
					logging.Info(fmt.Sprintf("%-24s %s", d.Serial, d.State))
				} else {
					logging.Warn(fmt.Sprintf("%-24s %s", d.Serial, d.State))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&connect, "connect", "", "Connect to a network device (host:port)")
	cmd.Flags().StringVar(&disconnect, "disconnect", "", "Disconnect a network device (host:port)")
	return cmd
}

func newCaptureCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Save one screenshot from the device as PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, cfg)
			if err != nil {
				return err
			}
			client := device.NewClient(cfg.ADBPath, cfg.Serial, cfg.CommandTimeout)
			raw, err := client.CaptureRaw(cmd.Context())
			if err != nil {
				return &exitError{code: exitcode.DeviceUnavailable, err: fmt.Errorf("capture from %s: %w", cfg.Serial, err)}
			}
			if err := os.WriteFile(cfg.OutFile, raw, 0644); err != nil {
				return fmt.Errorf("write %s: %w", cfg.OutFile, err)
			}
			logging.Success(fmt.Sprintf("Saved screenshot of %s to %s", cfg.Serial, cfg.OutFile))
			return nil
		},
	}
	cli.BindCaptureFlags(cmd, cfg)
	return cmd
}

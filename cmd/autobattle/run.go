package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/CodexForgeBR/autobattle/internal/banner"
	"github.com/CodexForgeBR/autobattle/internal/battle"
	"github.com/CodexForgeBR/autobattle/internal/cli"
	"github.com/CodexForgeBR/autobattle/internal/config"
	"github.com/CodexForgeBR/autobattle/internal/device"
	"github.com/CodexForgeBR/autobattle/internal/exitcode"
	"github.com/CodexForgeBR/autobattle/internal/expansion"
	"github.com/CodexForgeBR/autobattle/internal/logging"
	"github.com/CodexForgeBR/autobattle/internal/notification"
	"github.com/CodexForgeBR/autobattle/internal/schedule"
	"github.com/CodexForgeBR/autobattle/internal/screen"
	sighandler "github.com/CodexForgeBR/autobattle/internal/signal"
	"github.com/CodexForgeBR/autobattle/internal/supervisor"
	"github.com/CodexForgeBR/autobattle/internal/vision"
)

const (
	// shutdownTimeout bounds the join of all slots after StopAll.
	shutdownTimeout = 10 * time.Second
	// livenessInterval is how often the run loop checks that a slot is
	// still running.
	livenessInterval = time.Second
)

func newRunCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start one bot per device and run until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, cfg)
			if err != nil {
				return err
			}
			return runBots(cfg)
		},
	}
	cli.BindRunFlags(cmd, cfg)
	return cmd
}

// slotDevices maps slots to serials. With --slot and a single device, that
// device runs in the chosen slot.
func slotDevices(cfg *config.Config) (map[int]string, error) {
	list := cfg.DeviceList()
	if len(list) == 0 {
		return nil, errors.New("no device configured")
	}
	if cfg.Slot < 0 {
		devices := make(map[int]string, len(list))
		for slot, serial := range list {
			devices[slot] = serial
		}
		return devices, nil
	}
	switch {
	case len(list) == 1:
		return map[int]string{cfg.Slot: list[0]}, nil
	case cfg.Slot < len(list):
		return map[int]string{cfg.Slot: list[cfg.Slot]}, nil
	default:
		return nil, fmt.Errorf("no device configured for bot %d (%d devices)", cfg.Slot+1, len(list))
	}
}

// startFailureCode picks the exit code when no slot could start. A shared
// cause gets its own code; mixed causes are a generic error.
func startFailureCode(errs map[int]error) int {
	code := -1
	for _, err := range errs {
		c := exitcode.Error
		switch {
		case errors.Is(err, supervisor.ErrDeviceUnreachable):
			c = exitcode.DeviceUnavailable
		case errors.Is(err, supervisor.ErrTemplateDir):
			c = exitcode.TemplateError
		}
		if code != -1 && code != c {
			return exitcode.Error
		}
		code = c
	}
	if code == -1 {
		return exitcode.Error
	}
	return code
}

func runBots(cfg *config.Config) error {
	if cfg.LogToFile {
		f, err := logging.OpenLogFile(cfg.LogDir)
		if err != nil {
			return err
		}
		defer func() {
			logging.SetOutput(nil)
			f.Close()
		}()
	}

	devices, err := slotDevices(cfg)
	if err != nil {
		return err
	}
	window, err := schedule.ParseWindow(cfg.StartAt, cfg.StopAt, time.Now())
	if err != nil {
		return err
	}
	banner.PrintStartupBanner(version, devices, cfg.TemplateDir, cfg.StateFile, cfg.FastMode)
	if cfg.StartAt != "" || cfg.StopAt != "" {
		logging.Info("Scheduled: " + window.String())
	}
	started := time.Now()

	osFs := afero.NewOsFs()
	store := expansion.NewStore(osFs, cfg.StateFile)
	catalogs := cfg.Catalogs()
	matcher := vision.NewMatcher(vision.NewTemplateCache(osFs), cfg.TemplateDir, cfg.Threshold, cfg.MatchScale)

	notifier := notification.NewNotifier(cfg.NotifyWebhook, cfg.NotifyChannel, cfg.NotifyChatID)
	var sends conc.WaitGroup
	notify := func(msg string) {
		if notifier.Enabled() {
			sends.Go(func() { notifier.Send(msg) })
		}
	}

	mgr := device.NewManager(cfg.ADBPath)
	sup := supervisor.New(nil, mgr.TestConnection, cfg.TemplateDir)
	sup.Notify = func(ev supervisor.Event) {
		notify(notification.FormatEvent(ev.Kind, ev.Slot, ev.Device, ev.RunID, ev.Detail))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var background conc.WaitGroup

	// The watcher reloads running slots as soon as the flag appears. Without
	// it every bot polls the flag before each cycle.
	watcher, werr := expansion.NewResetWatcher(store, cfg.ResetFlag, sup.NotifyReset)
	if werr != nil {
		logging.Warn(fmt.Sprintf("Reset flag watcher unavailable, polling instead: %v", werr))
	} else {
		background.Go(func() { watcher.Run(ctx) })
	}

	sup.Factory = func(slot int, serial string) (supervisor.Runner, error) {
		tracker, err := expansion.NewTracker(store, slot, catalogs)
		if err != nil {
			return nil, err
		}
		log := logging.ForSlot(slot)
		client := device.NewClient(cfg.ADBPath, serial, cfg.CommandTimeout)
		classifier := screen.NewClassifier(matcher, catalogs, cfg.Threshold, log)

		ctrl := battle.New(client, classifier, matcher, tracker, cfg.Timing(), log)
		ctrl.Limits = cfg.Limits()
		ctrl.Threshold = cfg.Threshold
		ctrl.OnCatalogReset = func() {
			notify(notification.FormatEvent(notification.EventCatalogReset, slot, serial, sup.Status(slot).RunID, ""))
		}
		if werr != nil {
			ctrl.ResetFlag = func() ([]int, error) {
				slots, err := store.ConsumeResetFlag(cfg.ResetFlag)
				if err != nil {
					return nil, err
				}
				others := make([]int, 0, len(slots))
				for _, s := range slots {
					if s != slot {
						others = append(others, s)
					}
				}
				sup.NotifyReset(others)
				return slots, nil
			}
		}
		return ctrl, nil
	}

	var interrupted atomic.Bool
	release := sighandler.SetupSignalHandler(ctx, cancel, func() {
		interrupted.Store(true)
		logging.Warn("Interrupted, stopping all bots...")
		sup.StopAll()
	}, func() {
		logging.Error("Second interrupt, exiting without waiting for bots")
		os.Exit(exitcode.Interrupted)
	})
	defer release()

	if err := schedule.WaitUntil(ctx, window.Start); err != nil {
		cancel()
		background.Wait()
		return &exitError{code: exitcode.Interrupted}
	}
	started = time.Now()

	runCtx, stopCancel := window.StopContext(ctx)
	defer stopCancel()

	errs := sup.StartAll(devices)
	banner.PrintStartFailures(errs)

	if len(errs) < len(devices) {
		logging.Phase(fmt.Sprintf("%d of %d bots running", len(devices)-len(errs), len(devices)))
		ticker := time.NewTicker(livenessInterval)
	wait:
		for {
			select {
			case <-runCtx.Done():
				break wait
			case <-ticker.C:
				if sup.RunningCount() == 0 {
					break wait
				}
			}
		}
		ticker.Stop()
	}

	sup.StopAll()
	if !sup.Wait(shutdownTimeout) {
		logging.Warn(fmt.Sprintf("Some bots did not stop within %s", shutdownTimeout))
	}
	cancel()
	background.Wait()

	statuses := sup.Statuses()
	banner.PrintSlotTable(statuses)

	var result error
	reason := "all bots stopped"
	switch {
	case interrupted.Load():
		reason = "interrupted"
		result = &exitError{code: exitcode.Interrupted}
	case len(errs) == len(devices):
		reason = "no bot could start"
		result = &exitError{code: startFailureCode(errs), err: errors.New(reason)}
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		reason = "scheduled stop"
	default:
		result = &exitError{code: exitcode.Error, err: errors.New(reason)}
	}
	banner.PrintShutdownBanner(reason, statuses, time.Since(started))
	notify(notification.FormatEvent(notification.EventShutdown, 0, "", "", reason))
	sends.Wait()

	return result
}

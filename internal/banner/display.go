// Package banner provides colored banner display functions for the autobattle CLI.
//
// All banner functions write formatted output to stdout with color-coded headers
// and separators. They frame the run, show the per-slot status table and the
// persisted completion record.
package banner

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/CodexForgeBR/autobattle/internal/expansion"
	"github.com/CodexForgeBR/autobattle/internal/logging"
	"github.com/CodexForgeBR/autobattle/internal/supervisor"
	"github.com/fatih/color"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold).SprintFunc()
	successColor = color.New(color.FgGreen, color.Bold).SprintFunc()
	errorColor   = color.New(color.FgRed, color.Bold).SprintFunc()
	warnColor    = color.New(color.FgYellow, color.Bold).SprintFunc()
)

const rule = "═══════════════════════════════════════════════════"

// PrintStartupBanner displays the startup banner with the run configuration.
//
// Example output:
//
//	═══════════════════════════════════════════════════
//	  autobattle - Automated battle runner
//	═══════════════════════════════════════════════════
//	  Version:    1.2.0
//	  Templates:  templates
//	  State:      completed_expansions.json
//	  Mode:       fast
//	  Bot 1:      127.0.0.1:5585
//	═══════════════════════════════════════════════════
func PrintStartupBanner(version string, devices map[int]string, templateDir, stateFile string, fast bool) {
	sep := headerColor(rule)
	fmt.Println(sep)
	fmt.Println(headerColor("  autobattle - Automated battle runner"))
	fmt.Println(sep)
	fmt.Printf("  Version:    %s\n", version)
	fmt.Printf("  Templates:  %s\n", templateDir)
	fmt.Printf("  State:      %s\n", stateFile)
	mode := "normal"
	if fast {
		mode = "fast"
	}
	fmt.Printf("  Mode:       %s\n", mode)
	for _, slot := range sortedSlots(devices) {
		fmt.Printf("  Bot %d:      %s\n", slot+1, devices[slot])
	}
	fmt.Println(sep)
}

// PrintSlotTable displays one line per slot with its status and counters.
//
// Example output:
//
//	──────────────────────────────────────────────────
//	  Bot  Device            Status        Cycles  Done
//	  1    127.0.0.1:5585    Running       12      11
//	  2    -                 Idle          0       0
//	──────────────────────────────────────────────────
func PrintSlotTable(statuses []supervisor.StatusInfo) {
	sep := strings.Repeat("─", 50)
	fmt.Println(sep)
	fmt.Printf("  %-4s %-17s %-13s %-7s %s\n", "Bot", "Device", "Status", "Cycles", "Done")
	for _, st := range statuses {
		device := st.Device
		if device == "" {
			device = "-"
		}
		status := st.Status
		switch st.Status {
		case supervisor.StatusRunning:
			status = successColor(fmt.Sprintf("%-13s", status))
		case supervisor.StatusError, supervisor.StatusConnectionFailed, supervisor.StatusTemplateError, supervisor.StatusInitFailed:
			status = errorColor(fmt.Sprintf("%-13s", status))
		default:
			status = fmt.Sprintf("%-13s", status)
		}
		fmt.Printf("  %-4d %-17s %s %-7d %d\n", st.Slot+1, device, status, st.Stats.Cycles, st.Stats.Successes)
		if st.Err != "" {
			fmt.Printf("       %s\n", errorColor(st.Err))
		}
	}
	fmt.Println(sep)
}

// PrintStartFailures lists slots that could not be started.
//
// Example output:
//
//	═══════════════════════════════════════════════════
//	  ✗ Some bots failed to start
//	═══════════════════════════════════════════════════
//	  Bot 2: device unreachable: 127.0.0.1:5595
//	═══════════════════════════════════════════════════
func PrintStartFailures(errs map[int]error) {
	if len(errs) == 0 {
		return
	}
	sep := errorColor(rule)
	fmt.Println(sep)
	fmt.Println(errorColor("  ✗ Some bots failed to start"))
	fmt.Println(sep)
	slots := make([]int, 0, len(errs))
	for slot := range errs {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	for _, slot := range slots {
		fmt.Printf("  Bot %d: %v\n", slot+1, errs[slot])
	}
	fmt.Println(sep)
}

// PrintShutdownBanner displays the end of a run with totals over all slots.
//
// Example output:
//
//	═══════════════════════════════════════════════════
//	  ⚠ Stopped: interrupted
//	  Cycles:     25 (23 completed)
//	  Duration:   1h 2m 3s (3723s)
//	═══════════════════════════════════════════════════
func PrintShutdownBanner(reason string, statuses []supervisor.StatusInfo, elapsed time.Duration) {
	cycles, done := 0, 0
	for _, st := range statuses {
		cycles += st.Stats.Cycles
		done += st.Stats.Successes
	}
	secs := int(elapsed.Seconds())
	sep := warnColor(rule)
	fmt.Println(sep)
	fmt.Println(warnColor("  ⚠ Stopped: " + reason))
	fmt.Printf("  Cycles:     %d (%d completed)\n", cycles, done)
	fmt.Printf("  Duration:   %s (%ds)\n", logging.FormatDuration(secs), secs)
	fmt.Println(sep)
}

// PrintCompletionTable displays the persisted completion record per slot.
//
// Example output:
//
//	──────────────────────────────────────────────────
//	  Bot 1
//	    Series A: 3/11 done, next GA
//	    Series B: 0/2 done, next CB
//	──────────────────────────────────────────────────
func PrintCompletionTable(all map[int]expansion.CompletionSet, catalogs []expansion.Catalog) {
	sep := strings.Repeat("─", 50)
	fmt.Println(sep)
	if len(all) == 0 {
		fmt.Println("  No completed expansions recorded")
		fmt.Println(sep)
		return
	}
	slots := make([]int, 0, len(all))
	for slot := range all {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	for _, slot := range slots {
		set := all[slot]
		fmt.Printf("  %s\n", headerColor(fmt.Sprintf("Bot %d", slot+1)))
		for _, cat := range catalogs {
			keys := cat.Keys()
			done := 0
			next := ""
			for _, k := range keys {
				if set.Contains(k) {
					done++
				} else if next == "" {
					next = k.Name
				}
			}
			line := fmt.Sprintf("    Series %s: %d/%d done", cat.Series, done, len(keys))
			if next != "" {
				line += ", next " + next
			} else {
				line += ", " + successColor("complete")
			}
			fmt.Println(line)
		}
	}
	fmt.Println(sep)
}

func sortedSlots(devices map[int]string) []int {
	slots := make([]int, 0, len(devices))
	for slot := range devices {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	return slots
}

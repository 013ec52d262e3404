// Package cli provides help text and usage formatting for the autobattle CLI.
package cli

import (
	"github.com/spf13/cobra"
)

const helpTemplate = `autobattle - Automated battle runner for Android emulators

USAGE
  autobattle <command> [flags]

COMMANDS
  run                                    Start one bot per device and run until interrupted
  reset                                  Clear completed expansions (one slot or all)
  status                                 Show completed and remaining expansions per slot
  devices                                List adb devices, connect or disconnect network devices
  capture                                Save one screenshot from the device as PNG

FLAGS
  Config & Paths:
    --config <path>                      Path to additional config file (KEY=VALUE or YAML)
    --template-dir <dir>                 Template image directory (default: templates)
    --state-file <path>                  Completion document (default: completed_expansions.json)
    --reset-flag <path>                  Reset sentinel file (default: reset_expansions.flag)

  Device:
    --adb <path>                         adb binary (default: adb)
    -s, --serial <serial>                Device used when no --device is given (default: 127.0.0.1:5585)

  Run:
    -d, --device <serial>                Device per bot slot, repeatable up to 4 times
    --slot <1-4>                         Run only this slot
    --fast                               Use the shorter fast-mode delays
    --threshold <float>                  Default match threshold (default: 0.75)
    --cycle-delay <duration>             Pause between cycles (default: 1s)
    --log-to-file                        Mirror log output to a file
    --log-dir <dir>                      Log directory (default: logs)
    --start-at <time>                    Start the bots at this time (HH:MM, YYYY-MM-DD HH:MM, ISO 8601)
    --stop-at <time>                     Stop the bots at this time and exit 0

  Reset:
    --slot <1-4>                         Reset only this slot (default: all)
    --flag                               Drop the reset flag for a running process

  Capture:
    -o, --out <file>                     Output PNG file (default: screenshot.png)

  Notifications:
    --notify-webhook <url>               OpenClaw webhook URL (default: http://127.0.0.1:18789/webhook)
    --notify-channel <channel>           Notification channel (default: telegram)
    --notify-chat-id <id>                Recipient chat ID (required to enable notifications)

  Help & Version:
    -v, --verbose                        Show debug output
    -h, --help                           Show this help text
    --version                            Show version, commit, build date

EXIT CODES
  0   Success              Clean shutdown or command completed
  1   Error                Invalid arguments, bad config, no bot could start
  2   DeviceUnavailable    Device unreachable over adb
  3   TemplateError        Template directory missing or unreadable
  130 Interrupted          SIGINT or SIGTERM received

EXAMPLES
  # Run one bot on the default device
  autobattle run

  # Run two bots in fast mode
  autobattle run -d 127.0.0.1:5585 -d 127.0.0.1:5595 --fast

  # Run overnight only
  autobattle run --start-at 22:00 --stop-at 06:00

  # Let a running process forget slot 2's completions
  autobattle reset --slot 2 --flag

  # Capture a screenshot to cut a template from
  autobattle capture -s emulator-5554 -o frame.png
`

// SetCustomHelp configures the cobra command to use our custom help template.
func SetCustomHelp(cmd *cobra.Command) {
	cmd.SetHelpTemplate(helpTemplate)
}

// Package exitcode defines named exit codes for the autobattle CLI.
//
// Each code maps a specific termination condition to a numeric value
// recognized by shell scripts and service managers.
package exitcode

// Exit code constants.
const (
	Success           = 0   // Clean shutdown or command completed
	Error             = 1   // Invalid args, bad config, no slot could start
	DeviceUnavailable = 2   // Device unreachable over adb
	TemplateError     = 3   // Template directory missing or unreadable
	Interrupted       = 130 // SIGINT/SIGTERM received
)

// Name returns the human-readable name for the given exit code.
// Unknown codes return "unknown".
func Name(code int) string {
	switch code {
	case Success:
		return "Success"
	case Error:
		return "Error"
	case DeviceUnavailable:
		return "DeviceUnavailable"
	case TemplateError:
		return "TemplateError"
	case Interrupted:
		return "Interrupted"
	default:
		return "unknown"
	}
}

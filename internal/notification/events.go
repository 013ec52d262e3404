package notification

import "fmt"

// Event types sent for bot slots.
const (
	EventStarted          = "started"
	EventStopped          = "stopped"
	EventCrashed          = "crashed"
	EventConnectionFailed = "connection_failed"
	EventCatalogReset     = "catalog_reset"
	EventShutdown         = "shutdown"
)

// FormatEvent creates a notification message for an event of the 0-indexed
// slot. detail carries the error text or summary where the event has one.
func FormatEvent(event string, slot int, device string, runID string, detail string) string {
	bot := fmt.Sprintf("Bot %d (%s)", slot+1, device)
	switch event {
	case EventStarted:
		return fmt.Sprintf("▶️ %s [%s] started", bot, runID)
	case EventStopped:
		return fmt.Sprintf("⏹️ %s [%s] stopped: %s", bot, runID, detail)
	case EventCrashed:
		return fmt.Sprintf("🚨 %s [%s] crashed: %s", bot, runID, detail)
	case EventConnectionFailed:
		return fmt.Sprintf("🔌 %s could not connect: %s", bot, detail)
	case EventCatalogReset:
		return fmt.Sprintf("🔁 %s [%s] completed every expansion, starting over", bot, runID)
	case EventShutdown:
		return fmt.Sprintf("⏸️ autobattle shut down: %s", detail)
	default:
		return fmt.Sprintf("ℹ️ %s [%s] event: %s %s", bot, runID, event, detail)
	}
}

package notification

import (
	"context"
	"os/exec"
	"time"
)

// Timeout bounds one openclaw invocation.
const Timeout = 10 * time.Second

// CommandRunner runs an external command. Tests replace it.
type CommandRunner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Notifier sends messages through the openclaw CLI. The zero ChatID
// disables it.
type Notifier struct {
	Webhook string
	Channel string
	ChatID  string
	Run     CommandRunner
}

// NewNotifier returns a Notifier using the real openclaw binary.
func NewNotifier(webhook, channel, chatID string) *Notifier {
	return &Notifier{Webhook: webhook, Channel: channel, ChatID: chatID, Run: execRunner}
}

// Enabled reports whether messages will be sent.
func (n *Notifier) Enabled() bool {
	return n != nil && n.ChatID != ""
}

// Send delivers message. Fire-and-forget: errors are ignored and the call
// returns within Timeout.
func (n *Notifier) Send(message string) {
	if !n.Enabled() {
		return
	}
	run := n.Run
	if run == nil {
		run = execRunner
	}

	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()

	_ = run(ctx, "openclaw", "message", "send",
		"--webhook", n.Webhook,
		"--channel", n.Channel,
		"--chat-id", n.ChatID,
		"--message", message,
	)
}

// SendNotification sends a notification via openclaw CLI.
// Fire-and-forget: never blocks the bots for long, silent on failure.
// No-op when chatID is empty.
func SendNotification(webhook, channel, chatID, message string) {
	NewNotifier(webhook, channel, chatID).Send(message)
}

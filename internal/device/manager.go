package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CodexForgeBR/autobattle/internal/logging"
)

// Info describes one line of "adb devices" output.
type Info struct {
	Serial string
	State  string
}

// Online reports whether adb considers the device usable.
func (i Info) Online() bool {
	return i.State == "device"
}

// Manager performs device-level adb operations that are not bound to a
// single serial.
type Manager struct {
	ADB     string
	Timeout time.Duration
	Run     Runner
	// RetryDelay separates connection test attempts for network devices.
	RetryDelay time.Duration
}

// NewManager returns a Manager that shells out to adbPath.
func NewManager(adbPath string) *Manager {
	if adbPath == "" {
		adbPath = "adb"
	}
	return &Manager{ADB: adbPath, Timeout: DefaultTimeout, Run: ExecRunner, RetryDelay: 500 * time.Millisecond}
}

func (m *Manager) exec(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	run := m.Run
	if run == nil {
		run = ExecRunner
	}
	if timeout <= 0 {
		timeout = m.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	adb := m.ADB
	if adb == "" {
		adb = "adb"
	}
	return execADB(ctx, run, adb, timeout, args...)
}

// ListDevices returns the devices reported by "adb devices".
func (m *Manager) ListDevices(ctx context.Context) ([]Info, error) {
	out, err := m.exec(ctx, 0, "devices")
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return ParseDevices(string(out)), nil
}

// ParseDevices parses "adb devices" output, skipping the header line.
func ParseDevices(out string) []Info {
	var devices []Info
	lines := strings.Split(strings.ReplaceAll(out, "\r\n", "\n"), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		devices = append(devices, Info{Serial: fields[0], State: fields[1]})
	}
	return devices
}

// Connect runs "adb connect serial". adb exits 0 even for some failures, so
// the output is checked for a connected confirmation.
func (m *Manager) Connect(ctx context.Context, serial string) error {
	out, err := m.exec(ctx, 0, "connect", serial)
	if err != nil {
		return fmt.Errorf("connect %s: %w", serial, err)
	}
	text := strings.ToLower(string(out))
	if !strings.Contains(text, "connected") || strings.Contains(text, "cannot") || strings.Contains(text, "failed") {
		return fmt.Errorf("connect %s: %s", serial, strings.TrimSpace(string(out)))
	}
	return nil
}

// Disconnect runs "adb disconnect serial".
func (m *Manager) Disconnect(ctx context.Context, serial string) error {
	if _, err := m.exec(ctx, 0, "disconnect", serial); err != nil {
		return fmt.Errorf("disconnect %s: %w", serial, err)
	}
	return nil
}

// IsNetworkSerial reports whether serial addresses a TCP device such as
// "127.0.0.1:5585" rather than a local emulator or USB device.
func IsNetworkSerial(serial string) bool {
	return strings.Contains(serial, ":") && !strings.HasPrefix(serial, "emulator-")
}

// TestConnection checks that serial answers a shell command. Network devices
// get a longer timeout and a second attempt.
func (m *Manager) TestConnection(ctx context.Context, serial string) error {
	timeout, attempts := 2*time.Second, 1
	if IsNetworkSerial(serial) {
		timeout, attempts = 5*time.Second, 2
	}
	cfg := RetryConfig{
		Attempts:  attempts,
		BaseDelay: m.RetryDelay,
		OnRetry: func(attempt int, _ time.Duration, err error) {
			logging.Debug(fmt.Sprintf("Connection test failed for %s, retrying (%d/%d): %v", serial, attempt, attempts, err))
		},
	}
	return RetryWithBackoff(ctx, cfg, func() error {
		_, err := m.exec(ctx, timeout, "-s", serial, "shell", "echo", "test")
		return err
	})
}

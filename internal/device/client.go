// Package device drives an Android device through the adb command line.
//
// Every command carries its own timeout. A timed out command surfaces as
// ErrTimeout and a failed one as *CommandError, so callers can tell a broken
// transport apart from a screen that simply does not show what they expect.
package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"time"
)

// DefaultTimeout bounds a single adb command when Client.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Runner executes name with args and returns stdout and stderr.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Client issues commands to one device identified by Serial.
type Client struct {
	ADB     string
	Serial  string
	Timeout time.Duration
	Run     Runner
}

// NewClient returns a Client for serial using the adb binary at adbPath.
func NewClient(adbPath, serial string, timeout time.Duration) *Client {
	if adbPath == "" {
		adbPath = "adb"
	}
	return &Client{ADB: adbPath, Serial: serial, Timeout: timeout, Run: ExecRunner}
}

// Exec runs "adb -s <serial> args..." and returns stdout.
func (c *Client) Exec(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{"-s", c.Serial}, args...)
	return execADB(ctx, c.runner(), c.adb(), c.timeout(), full...)
}

// Tap taps the screen at (x, y).
func (c *Client) Tap(ctx context.Context, x, y int) error {
	_, err := c.Exec(ctx, "shell", "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

// Swipe drags from (x1, y1) to (x2, y2) over durationMs milliseconds.
func (c *Client) Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error {
	_, err := c.Exec(ctx, "shell", "input", "swipe",
		strconv.Itoa(x1), strconv.Itoa(y1),
		strconv.Itoa(x2), strconv.Itoa(y2),
		strconv.Itoa(durationMs))
	return err
}

// CaptureRaw returns the PNG bytes of the current screen.
func (c *Client) CaptureRaw(ctx context.Context) ([]byte, error) {
	out, err := c.Exec(ctx, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrScreenshot)
	}
	return out, nil
}

// Capture returns the current screen as a decoded image.
func (c *Client) Capture(ctx context.Context) (image.Image, error) {
	raw, err := c.CaptureRaw(ctx)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScreenshot, err)
	}
	return img, nil
}

// Ping checks that the device answers a trivial shell command.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Exec(ctx, "shell", "echo", "test")
	return err
}

func (c *Client) runner() Runner {
	if c.Run == nil {
		return ExecRunner
	}
	return c.Run
}

func (c *Client) adb() string {
	if c.ADB == "" {
		return "adb"
	}
	return c.ADB
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// execADB runs one adb command under its own deadline. A canceled parent
// context is reported as ctx.Err(), an expired deadline as ErrTimeout.
func execADB(ctx context.Context, run Runner, adb string, timeout time.Duration, args ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, err := run(cmdCtx, adb, args...)
	if err == nil {
		return stdout, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s: adb %v", ErrTimeout, timeout, args)
	}
	return nil, &CommandError{Args: args, Stderr: string(stderr), Err: err}
}

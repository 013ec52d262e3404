package device

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTimeout is returned when an adb command exceeds its deadline.
	ErrTimeout = errors.New("adb command timed out")
	// ErrScreenshot is returned when screencap output cannot be decoded.
	ErrScreenshot = errors.New("invalid screenshot data")
)

// CommandError reports an adb invocation that exited unsuccessfully.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("adb %s failed", strings.Join(e.Args, " "))
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

package logging

import "fmt"

// Logger tags every line with a fixed prefix such as "[Bot 2]". The zero value
// logs without a prefix.
type Logger struct {
	prefix string
}

// ForSlot returns a Logger for the given 0-indexed bot slot. Slots are shown
// 1-indexed to match the persisted document and the CLI.
func ForSlot(slot int) Logger {
	return Logger{prefix: fmt.Sprintf("[Bot %d]", slot+1)}
}

// WithPrefix returns a Logger using an arbitrary prefix.
func WithPrefix(prefix string) Logger {
	return Logger{prefix: prefix}
}

// Prefix returns the raw prefix text.
func (l Logger) Prefix() string {
	return l.prefix
}

func (l Logger) tag(msg string) string {
	if l.prefix == "" {
		return msg
	}
	return slotPrefix(l.prefix) + " " + msg
}

func (l Logger) Info(msg string)    { Info(l.tag(msg)) }
func (l Logger) Success(msg string) { Success(l.tag(msg)) }
func (l Logger) Warn(msg string)    { Warn(l.tag(msg)) }
func (l Logger) Error(msg string)   { Error(l.tag(msg)) }
func (l Logger) Debug(msg string)   { Debug(l.tag(msg)) }

func (l Logger) Infof(format string, args ...any)    { l.Info(fmt.Sprintf(format, args...)) }
func (l Logger) Successf(format string, args ...any) { l.Success(fmt.Sprintf(format, args...)) }
func (l Logger) Warnf(format string, args ...any)    { l.Warn(fmt.Sprintf(format, args...)) }
func (l Logger) Errorf(format string, args ...any)   { l.Error(fmt.Sprintf(format, args...)) }
func (l Logger) Debugf(format string, args ...any)   { l.Debug(fmt.Sprintf(format, args...)) }

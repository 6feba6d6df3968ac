package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// LibraryLogger is a minimal interface for library packages that need to
// output progress/diagnostics without depending on specific log file formats
// or terminal output.
//
// This interface allows libraries to be reusable in different contexts:
// CLI tools, tests (memory/silent logging) and the progress bar, which
// installs itself as the console sink while it is drawn.
type LibraryLogger interface {
	// Info logs informational messages (e.g., "Saving 'index.html'")
	Info(format string, args ...any)

	// Debug logs debug/diagnostic messages (may be no-op in production)
	Debug(format string, args ...any)

	// Warn logs warning messages (non-fatal issues)
	Warn(format string, args ...any)

	// Error logs error messages (failures, but execution continues)
	Error(format string, args ...any)
}

// Level is a console severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Levels lists every severity in ascending order.
var Levels = []Level{LevelDebug, LevelInfo, LevelWarn, LevelError}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// NoOpLogger discards all log messages.
// Useful for tests, silent mode, or when logging is not needed.
type NoOpLogger struct{}

func (NoOpLogger) Info(format string, args ...any)  {}
func (NoOpLogger) Debug(format string, args ...any) {}
func (NoOpLogger) Warn(format string, args ...any)  {}
func (NoOpLogger) Error(format string, args ...any) {}

// ConsoleLogger writes "LEVEL: message" lines to one sink per severity.
// Sinks can be swapped at runtime, which is how log output is routed through
// the progress bar while it is on screen.
type ConsoleLogger struct {
	mu    sync.Mutex
	sinks [4]io.Writer
	debug bool
}

var _ LibraryLogger = (*ConsoleLogger)(nil)

// NewConsoleLogger returns a logger writing info to stdout and everything
// else to stderr. Debug messages are dropped unless debug is set.
func NewConsoleLogger(debug bool) *ConsoleLogger {
	c := &ConsoleLogger{debug: debug}
	c.ResetSinks()
	return c
}

// SetSink routes level to w and returns the previous sink. A nil w drops
// messages of that level.
func (c *ConsoleLogger) SetSink(level Level, w io.Writer) io.Writer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if level < LevelDebug || level > LevelError {
		return nil
	}
	prev := c.sinks[level]
	c.sinks[level] = w
	return prev
}

// Redirect routes every level to w and returns a func restoring the previous
// sinks.
func (c *ConsoleLogger) Redirect(w io.Writer) (restore func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.sinks
	for i := range c.sinks {
		c.sinks[i] = w
	}
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.sinks = prev
	}
}

// ResetSinks restores the default stdout/stderr sinks.
func (c *ConsoleLogger) ResetSinks() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sinks[LevelDebug] = os.Stderr
	c.sinks[LevelInfo] = os.Stdout
	c.sinks[LevelWarn] = os.Stderr
	c.sinks[LevelError] = os.Stderr
}

// SetDebug enables or disables debug output.
func (c *ConsoleLogger) SetDebug(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug = on
}

func (c *ConsoleLogger) Info(format string, args ...any)  { c.log(LevelInfo, format, args...) }
func (c *ConsoleLogger) Debug(format string, args ...any) { c.log(LevelDebug, format, args...) }
func (c *ConsoleLogger) Warn(format string, args ...any)  { c.log(LevelWarn, format, args...) }
func (c *ConsoleLogger) Error(format string, args ...any) { c.log(LevelError, format, args...) }

// log formats the whole line first so a sink sees exactly one Write per
// message.
func (c *ConsoleLogger) log(level Level, format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	line := level.String() + ": " + msg + "\n"

	c.mu.Lock()
	defer c.mu.Unlock()

	if level == LevelDebug && !c.debug {
		return
	}
	if w := c.sinks[level]; w != nil {
		io.WriteString(w, line)
	}
}

// Tee fans every message out to all loggers.
func Tee(loggers ...LibraryLogger) LibraryLogger {
	return tee(loggers)
}

type tee []LibraryLogger

func (t tee) Info(format string, args ...any) {
	for _, l := range t {
		l.Info(format, args...)
	}
}

func (t tee) Debug(format string, args ...any) {
	for _, l := range t {
		l.Debug(format, args...)
	}
}

func (t tee) Warn(format string, args ...any) {
	for _, l := range t {
		l.Warn(format, args...)
	}
}

func (t tee) Error(format string, args ...any) {
	for _, l := range t {
		l.Error(format, args...)
	}
}

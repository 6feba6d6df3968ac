package log

import (
	"fmt"
	"strings"
	"sync"
)

// MemoryLogger captures all log messages in memory for testing.
// Thread-safe for concurrent use.
type MemoryLogger struct {
	mu       sync.Mutex
	messages []LogMessage
}

// LogMessage represents a captured log entry
type LogMessage struct {
	Level   Level
	Message string
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (m *MemoryLogger) add(level Level, format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, LogMessage{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (m *MemoryLogger) Info(format string, args ...any)  { m.add(LevelInfo, format, args...) }
func (m *MemoryLogger) Debug(format string, args ...any) { m.add(LevelDebug, format, args...) }
func (m *MemoryLogger) Warn(format string, args ...any)  { m.add(LevelWarn, format, args...) }
func (m *MemoryLogger) Error(format string, args ...any) { m.add(LevelError, format, args...) }

// Messages returns a copy of all captured messages
func (m *MemoryLogger) Messages() []LogMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogMessage(nil), m.messages...)
}

// HasMessage checks if any message contains the given substring
func (m *MemoryLogger) HasMessage(substring string) bool {
	for _, msg := range m.Messages() {
		if strings.Contains(msg.Message, substring) {
			return true
		}
	}
	return false
}

// HasMessageWithLevel checks if any message at the given level contains the substring
func (m *MemoryLogger) HasMessageWithLevel(level Level, substring string) bool {
	for _, msg := range m.Messages() {
		if msg.Level == level && strings.Contains(msg.Message, substring) {
			return true
		}
	}
	return false
}

// Count returns the number of messages at level.
func (m *MemoryLogger) Count(level Level) int {
	n := 0
	for _, msg := range m.Messages() {
		if msg.Level == level {
			n++
		}
	}
	return n
}

func (m *MemoryLogger) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

// String returns a formatted string of all messages (useful for debugging tests)
func (m *MemoryLogger) String() string {
	var sb strings.Builder
	for i, msg := range m.Messages() {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, msg.Level, msg.Message)
	}
	return sb.String()
}

// Package testutil provides shared test helpers for DataMention-Intelligence.
package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
)

// LogMessage is a single entry captured by MockLogger.
type LogMessage struct {
	Level   string
	Message string
	Fields  []logging.Field
}

type logSink struct {
	mu       sync.Mutex
	messages []LogMessage
}

// MockLogger records log entries. Children created with With or Named write
// into the same sink and prepend their bound fields.
type MockLogger struct {
	sink   *logSink
	fields []logging.Field
}

// NewMockLogger creates an empty MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{sink: &logSink{}}
}

func (m *MockLogger) log(level, msg string, fields []logging.Field) {
	all := make([]logging.Field, 0, len(m.fields)+len(fields))
	all = append(all, m.fields...)
	all = append(all, fields...)
	m.sink.mu.Lock()
	m.sink.messages = append(m.sink.messages, LogMessage{Level: level, Message: msg, Fields: all})
	m.sink.mu.Unlock()
}

func (m *MockLogger) Debug(msg string, fields ...logging.Field) { m.log("debug", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...logging.Field)  { m.log("info", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...logging.Field)  { m.log("warn", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...logging.Field) { m.log("error", msg, fields) }
func (m *MockLogger) Fatal(msg string, fields ...logging.Field) { m.log("fatal", msg, fields) }
func (m *MockLogger) Sync() error                               { return nil }

func (m *MockLogger) With(fields ...logging.Field) logging.Logger {
	bound := append(append([]logging.Field{}, m.fields...), fields...)
	return &MockLogger{sink: m.sink, fields: bound}
}

func (m *MockLogger) Named(_ string) logging.Logger { return m }

// GetMessages returns a copy of all captured entries.
func (m *MockLogger) GetMessages() []LogMessage {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	out := make([]LogMessage, len(m.sink.messages))
	copy(out, m.sink.messages)
	return out
}

// Clear drops all captured entries.
func (m *MockLogger) Clear() {
	m.sink.mu.Lock()
	m.sink.messages = m.sink.messages[:0]
	m.sink.mu.Unlock()
}

// HasMessage reports whether an entry with the given level and message exists.
func (m *MockLogger) HasMessage(level, msg string) bool {
	for _, logged := range m.GetMessages() {
		if logged.Level == level && logged.Message == msg {
			return true
		}
	}
	return false
}

// WriteFile writes content under t.TempDir() and returns the path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/systmms/tokenbroker/internal/logging"
)

// TestLogger captures log output for validation in tests.
//
// Example usage:
//
//	tl := testutil.NewTestLogger(t)
//	tl.Logger.Info("Processing secret: %s", logging.Secret("password123"))
//
//	tl.AssertRedacted(t, "password123")
type TestLogger struct {
	*logging.Logger
	logs *observer.ObservedLogs
}

// NewTestLogger creates a TestLogger that captures every level, debug included.
func NewTestLogger(t *testing.T) *TestLogger {
	t.Helper()
	return NewTestLoggerWithDebug(t, true)
}

// NewTestLoggerWithDebug creates a TestLogger. Debug messages are only
// captured when debug is true.
func NewTestLoggerWithDebug(t *testing.T, debug bool) *TestLogger {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	return &TestLogger{
		Logger: logging.NewWithCore(core, debug),
		logs:   logs,
	}
}

// GetOutput returns every captured message, one per line.
func (l *TestLogger) GetOutput() string {
	var b strings.Builder
	for _, e := range l.logs.All() {
		b.WriteString(e.Message)
		b.WriteByte('\n')
	}
	return b.String()
}

// Messages returns captured messages at level.
func (l *TestLogger) Messages(level zapcore.Level) []string {
	var out []string
	for _, e := range l.logs.All() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// Clear discards captured output.
func (l *TestLogger) Clear() {
	l.logs.TakeAll()
}

// AssertContains asserts that the log output contains the specified substring.
func (l *TestLogger) AssertContains(t *testing.T, substr string) {
	t.Helper()
	assert.Contains(t, l.GetOutput(), substr, "Expected log output to contain %q", substr)
}

// AssertNotContains asserts that the log output does NOT contain the specified substring.
func (l *TestLogger) AssertNotContains(t *testing.T, substr string) {
	t.Helper()
	assert.NotContains(t, l.GetOutput(), substr, "Expected log output to NOT contain %q", substr)
}

// AssertRedacted asserts that secretValue never reached the log and that
// the [REDACTED] marker did.
func (l *TestLogger) AssertRedacted(t *testing.T, secretValue string) {
	t.Helper()

	output := l.GetOutput()
	assert.NotContains(t, output, secretValue,
		"Secret value %q should be redacted, but appears in logs", secretValue)
	assert.Contains(t, output, "[REDACTED]",
		"Expected [REDACTED] marker in logs when secret is used")
}

// AssertLogCount asserts that level was logged count times.
func (l *TestLogger) AssertLogCount(t *testing.T, level zapcore.Level, count int) {
	t.Helper()
	assert.Len(t, l.Messages(level), count, "Expected %d %s messages", count, level)
}

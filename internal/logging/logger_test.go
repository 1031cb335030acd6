package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "json format", config: &Config{Level: LevelInfo, Format: "json", Output: &bytes.Buffer{}}},
		{name: "text format", config: &Config{Level: LevelDebug, Format: "text", Output: &bytes.Buffer{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			assert.NotNil(t, logger)
		})
	}
}

func TestLoggerWithSocketAndOp(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Format: "text", Output: &buf, Sync: true, NoColor: true})

	socketLogger := logger.WithSocket(42)
	socketLogger.Info("test message")
	assert.Contains(t, buf.String(), "socket=42")

	buf.Reset()
	opLogger := socketLogger.WithOp("get_queued_data")
	opLogger.Info("queue message")
	output := buf.String()
	assert.Contains(t, output, "socket=42")
	assert.Contains(t, output, "op=get_queued_data")
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Format: "text", Output: &buf, Sync: true, NoColor: true})

	testErr := errors.New("boom")
	logger.WithError(testErr).Error("operation failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestFatalLevelDoesNotPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Format: "text", Output: &buf})
	assert.NotPanics(t, func() { logger.Fatal("contract violation", "socket", 7) })
	assert.True(t, strings.Contains(buf.String(), "FATAL"))
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Format: "text", Output: &buf}))

	Debug("debug message")
	assert.Contains(t, buf.String(), "debug message")

	buf.Reset()
	Info("info message")
	assert.Contains(t, buf.String(), "info message")

	buf.Reset()
	Warn("warning message")
	assert.Contains(t, buf.String(), "warning message")

	buf.Reset()
	Error("error message")
	assert.Contains(t, buf.String(), "error message")
}

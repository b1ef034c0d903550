package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerDefaultConfig(t *testing.T) {
	logger := NewLogger(nil)
	require.NotNil(t, logger)
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Development: true, Output: &buf})

	logger.Info("operation allocated", "key", 7, "bytes", 64)
	require.NoError(t, logger.Sync())

	output := buf.String()
	require.Contains(t, output, "operation allocated")
	require.Contains(t, output, "key")
	require.Contains(t, output, "64")
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Development: true, Output: &buf})

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	logger.Warn("this should appear")
	require.NoError(t, logger.Sync())

	output := buf.String()
	require.NotContains(t, output, "should not appear")
	require.Contains(t, output, "this should appear")
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Development: true, Output: &buf}))
	t.Cleanup(func() { SetDefault(NewLogger(nil)) })

	Error("fatal condition", "code", -5)
	require.NoError(t, Default().Sync())
	require.Contains(t, buf.String(), "fatal condition")
}

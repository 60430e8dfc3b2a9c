package logging_test

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkt.systems/mdreveal/internal/logging"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		level    string
		expected log.Level
	}{
		{"debug level", "debug", log.DebugLevel},
		{"info level", "info", log.InfoLevel},
		{"warn level", "warn", log.WarnLevel},
		{"warning level", "warning", log.WarnLevel},
		{"error level", "error", log.ErrorLevel},
		{"invalid defaults to info", "loud", log.InfoLevel},
		{"empty defaults to info", "", log.InfoLevel},
		{"case insensitive", " DEBUG ", log.DebugLevel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, logging.ParseLevel(tc.level))
			assert.Equal(t, tc.expected, logging.New(tc.level).GetLevel())
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", logging.FieldCursor, 3)
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "cursor=3")
}

func TestSetDefaultAndLevel(t *testing.T) {
	// Not parallel: mutates the package default.
	original := logging.Default()
	defer logging.SetDefault(original)

	fresh := logging.New("info")
	logging.SetDefault(fresh)
	require.Same(t, fresh, logging.Default())

	logging.SetLevel("error")
	assert.Equal(t, log.ErrorLevel, logging.Default().GetLevel())
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	require.NotNil(t, logging.Discard())
}

func TestValidLevel(t *testing.T) {
	t.Parallel()

	for _, level := range []string{"", "debug", "INFO", " warn ", "warning", "error"} {
		assert.True(t, logging.ValidLevel(level), level)
	}
	for _, level := range []string{"trace", "fatal", "verbose"} {
		assert.False(t, logging.ValidLevel(level), level)
	}
}

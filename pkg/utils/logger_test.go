package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "payables.log")

	logger, err := NewLogger(LoggerConfig{Level: "warn", OutputPath: path, Format: "json"})
	require.NoError(t, err)

	logger.Info("dropped")
	WithComponent(logger, "scheduler").Warn("kept")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "scheduler", entry["component"])
	assert.Contains(t, entry, "ts")
}

func TestNewLogger_BadLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "loud", OutputPath: "stderr", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(0))
	assert.False(t, logger.Core().Enabled(-1))
}

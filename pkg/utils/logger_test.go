package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggerOptions{Level: "debug"})
	require.NoError(t, err)
	logger.Debug("hello")
	logger.Sync()
}

func TestNewLoggerBadLevelFallsBack(t *testing.T) {
	logger, err := NewLogger(LoggerOptions{Level: "nonsense"})
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNewLoggerFileOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, err := NewLogger(LoggerOptions{Level: "info", LogDir: dir, EnableFile: true})
	require.NoError(t, err)
	logger.Info("to file")
	logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "snipsaved.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

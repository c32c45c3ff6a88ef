package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(Config{
		Level:    "debug",
		Dir:      tmpDir,
		Filename: "test.log",
	})

	assert.NoError(t, err)
	assert.NotNil(t, logger)

	err = logger.Close()
	assert.NoError(t, err)
}

func TestNew_ConsoleOnly(t *testing.T) {
	logger, err := New(Config{Level: "info"})

	assert.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NoError(t, logger.Close())
}

func TestLogger_FileSink(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(Config{
		Level:    "info",
		Dir:      tmpDir,
		Filename: "morph.log",
	})
	require.NoError(t, err)
	defer logger.Close()

	logger.Info("composite complete in %dms", 42)
	logger.InfoTag("Morph", "session %s finished", "abc123")
	logger.Debug("should be filtered at info level")

	data, err := os.ReadFile(filepath.Join(tmpDir, "morph.log"))
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "composite complete in 42ms")
	assert.Contains(t, content, "[Morph] session abc123 finished")
	assert.NotContains(t, content, "should be filtered")
}

func TestFormatLog(t *testing.T) {
	assert.Equal(t, "[Vision] detection complete", FormatLog("Vision", "detection complete"))
	assert.Equal(t, "plain", FormatLog("", "plain"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

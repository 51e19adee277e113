package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, 10, cfg.MaxSizeMB)
	assert.Equal(t, 5, cfg.MaxFiles)
	assert.True(t, cfg.WriteToStderr)
	assert.True(t, strings.HasSuffix(cfg.FilePath, filepath.Join(".claridoc", "logs", "claridoc.log")))
	assert.Equal(t, "debug", DebugConfig().Level)
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: a config pointing at a temp file
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	cfg := Config{Level: "debug", FilePath: path, MaxSizeMB: 1, MaxFiles: 2}

	// When: logging a record
	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	Component(logger, "consolidate").Debug("segment extracted", slog.Int("segment", 3))
	cleanup()

	// Then: the file holds one JSON object with the attributes
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "segment extracted", rec["msg"])
	assert.Equal(t, "consolidate", rec["component"])
	assert.Equal(t, float64(3), rec["segment"])
}

func TestSetup_RespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path, MaxSizeMB: 1, MaxFiles: 1})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestRotatingWriter_RotatesPastLimit(t *testing.T) {
	// Given: a writer with a 1MB limit and two backups
	path := filepath.Join(t.TempDir(), "app.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	chunk := bytes.Repeat([]byte("x"), 600*1024)

	// When: writing four chunks of 600KB
	for i := 0; i < 4; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	// Then: the live file plus two backups exist and no third
	assert.FileExists(t, path)
	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(chunk)), info.Size())
}

func TestRotatingWriter_AppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	w, err := NewRotatingWriter(path, 1, 1)
	require.NoError(t, err)
	_, err = w.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\nnew\n", string(data))
}

package obslog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "xml")
	t.Setenv("LOG_TO_FILE", "false")

	o := OptionsFromEnv()
	require.Equal(t, zapcore.DebugLevel, o.Level)
	require.Equal(t, "legacy", o.Format)
	require.Empty(t, o.File)
	require.True(t, o.Console)
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "front.log")
	logger, err := New(Options{Level: zapcore.InfoLevel, Format: "json", File: path})
	require.NoError(t, err)

	logger.Info("engine_commit")
	require.NoError(t, logger.Sync())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), `"msg":"engine_commit"`)
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	require.Equal(t, zapcore.InfoLevel, parseLevel("loud"))
	require.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
}

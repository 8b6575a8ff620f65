package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/colormatch-mcp/internal/scheduler"
	"github.com/ironsheep/colormatch-mcp/internal/search"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Positive(t, cfg.Workers)
	assert.Equal(t, scheduler.DefaultIdleWait, cfg.IdleWait)
	assert.Equal(t, DefaultMaxPending, cfg.MaxPending)
	assert.Empty(t, cfg.OutputDir)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{
		EnvWorkers:      "3",
		EnvIdleWait:     "50ms",
		EnvMaxPending:   "0",
		EnvOutputDir:    "/tmp/out",
		EnvEmitPartial:  "false",
		EnvHistoryLimit: "10",
		EnvLogLevel:     "debug",
		EnvGrid:         "/tmp/grid.yaml",
	}))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 50*time.Millisecond, cfg.IdleWait)
	assert.Equal(t, 0, cfg.MaxPending)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
	assert.False(t, cfg.EmitPartial)
	assert.Equal(t, 10, cfg.HistoryLimit)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/grid.yaml", cfg.GridFile)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colormatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workers: 6
idle_wait: 250ms
output_dir: /data/matches
log_level: warn
`), 0o644))

	cfg, err := Load(envMap(map[string]string{
		EnvConfig:  path,
		EnvWorkers: "2",
	}))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Workers, "environment wins over the file")
	assert.Equal(t, 250*time.Millisecond, cfg.IdleWait)
	assert.Equal(t, "/data/matches", cfg.OutputDir)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.EmitPartial, "fields missing from the file keep their defaults")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad workers", map[string]string{EnvWorkers: "many"}},
		{"zero workers", map[string]string{EnvWorkers: "0"}},
		{"bad idle wait", map[string]string{EnvIdleWait: "soon"}},
		{"negative idle wait", map[string]string{EnvIdleWait: "-1s"}},
		{"negative max pending", map[string]string{EnvMaxPending: "-1"}},
		{"bad bool", map[string]string{EnvEmitPartial: "perhaps"}},
		{"bad history", map[string]string{EnvHistoryLimit: "lots"}},
		{"bad level", map[string]string{EnvLogLevel: "loud"}},
		{"missing file", map[string]string{EnvConfig: "/nonexistent/colormatch.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(envMap(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestMergeFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: [1, 2"), 0o644))

	_, err := Default().MergeFile(path)
	assert.Error(t, err)
}

func TestGrid(t *testing.T) {
	g, err := Default().Grid()
	require.NoError(t, err)
	assert.Equal(t, search.DefaultGrid(), g)

	cfg := Default()
	cfg.GridFile = "/nonexistent/grid.yaml"
	_, err = cfg.Grid()
	assert.Error(t, err)
}

func TestEngineOptions(t *testing.T) {
	cfg := Default()
	opts, err := cfg.EngineOptions(nil)
	require.NoError(t, err)
	assert.Nil(t, opts.Emitter, "no output dir, no emitter")

	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.EmitPartial = false
	opts, err = cfg.EngineOptions(nil)
	require.NoError(t, err)
	require.NotNil(t, opts.Emitter)
	assert.False(t, opts.EmitPartial)

	info, err := os.Stat(cfg.OutputDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSchedulerOptions(t *testing.T) {
	cfg := Default()
	cfg.Workers = 5
	cfg.MaxPending = 9
	opts := cfg.SchedulerOptions(nil)
	assert.Equal(t, 5, opts.Workers)
	assert.Equal(t, 9, opts.MaxPending)
	assert.Equal(t, cfg.IdleWait, opts.IdleWait)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogLevel = "warn"
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "key=value")
}

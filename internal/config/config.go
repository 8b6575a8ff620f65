// Package config assembles runtime settings from defaults, an optional YAML file and
// COLORMATCH_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/colormatch-mcp/internal/scheduler"
	"github.com/ironsheep/colormatch-mcp/internal/search"
)

// Environment variable names.
const (
	EnvConfig       = "COLORMATCH_CONFIG"
	EnvWorkers      = "COLORMATCH_WORKERS"
	EnvIdleWait     = "COLORMATCH_IDLE_WAIT"
	EnvMaxPending   = "COLORMATCH_MAX_PENDING"
	EnvOutputDir    = "COLORMATCH_OUTPUT_DIR"
	EnvEmitPartial  = "COLORMATCH_EMIT_PARTIAL"
	EnvHistoryLimit = "COLORMATCH_HISTORY_LIMIT"
	EnvLogLevel     = "COLORMATCH_LOG_LEVEL"
	EnvGrid         = "COLORMATCH_GRID"
)

// DefaultMaxPending bounds the candidate queue. The default grid has hundreds of
// millions of points, far more than fit in memory as queued jobs.
const DefaultMaxPending = 1 << 16

// Config holds every tunable of the search service.
type Config struct {
	// Workers is the worker pool size.
	Workers int `yaml:"workers"`

	// IdleWait bounds how long an idle worker sleeps between queue polls.
	IdleWait time.Duration `yaml:"idle_wait"`

	// MaxPending caps queued candidates; 0 means unbounded.
	MaxPending int `yaml:"max_pending"`

	// OutputDir receives result PNGs. Empty disables file output.
	OutputDir string `yaml:"output_dir"`

	// EmitPartial also writes partial matches to OutputDir.
	EmitPartial bool `yaml:"emit_partial"`

	// HistoryLimit caps the in-memory match history.
	HistoryLimit int `yaml:"history_limit"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// GridFile points to a YAML grid spec. Empty selects search.DefaultGrid.
	GridFile string `yaml:"grid_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Workers:      runtime.NumCPU(),
		IdleWait:     scheduler.DefaultIdleWait,
		MaxPending:   DefaultMaxPending,
		EmitPartial:  true,
		HistoryLimit: search.DefaultHistoryLimit,
		LogLevel:     "info",
	}
}

// Load returns Default overlaid with the file named by COLORMATCH_CONFIG (if set) and
// then with the environment. getenv is usually os.Getenv.
func Load(getenv func(string) string) (Config, error) {
	cfg := Default()
	if path := getenv(EnvConfig); path != "" {
		var err error
		if cfg, err = cfg.MergeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg, err := cfg.MergeEnv(getenv)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// MergeFile overlays the fields present in a YAML file.
func (c Config) MergeFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return c, nil
}

// MergeEnv overlays every COLORMATCH_* variable that is set.
func (c Config) MergeEnv(getenv func(string) string) (Config, error) {
	var err error
	if v := getenv(EnvWorkers); v != "" {
		if c.Workers, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvWorkers, err)
		}
	}
	if v := getenv(EnvIdleWait); v != "" {
		if c.IdleWait, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvIdleWait, err)
		}
	}
	if v := getenv(EnvMaxPending); v != "" {
		if c.MaxPending, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvMaxPending, err)
		}
	}
	if v := getenv(EnvOutputDir); v != "" {
		c.OutputDir = v
	}
	if v := getenv(EnvEmitPartial); v != "" {
		if c.EmitPartial, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvEmitPartial, err)
		}
	}
	if v := getenv(EnvHistoryLimit); v != "" {
		if c.HistoryLimit, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvHistoryLimit, err)
		}
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvGrid); v != "" {
		c.GridFile = v
	}
	return c, nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.IdleWait <= 0 {
		return fmt.Errorf("idle wait must be positive, got %s", c.IdleWait)
	}
	if c.MaxPending < 0 {
		return fmt.Errorf("max pending must not be negative, got %d", c.MaxPending)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Grid returns the configured grid spec.
func (c Config) Grid() (search.GridSpec, error) {
	if c.GridFile == "" {
		return search.DefaultGrid(), nil
	}
	return search.LoadGrid(c.GridFile)
}

// SchedulerOptions maps the config onto scheduler options.
func (c Config) SchedulerOptions(logger *slog.Logger) scheduler.Options {
	return scheduler.Options{
		Workers:    c.Workers,
		IdleWait:   c.IdleWait,
		MaxPending: c.MaxPending,
		Logger:     logger,
	}
}

// EngineOptions maps the config onto engine options, creating the output directory
// when file output is enabled.
func (c Config) EngineOptions(logger *slog.Logger) (search.Options, error) {
	opts := search.Options{
		Logger:       logger,
		EmitPartial:  c.EmitPartial,
		HistoryLimit: c.HistoryLimit,
	}
	if c.OutputDir != "" {
		em, err := search.NewFileEmitter(c.OutputDir)
		if err != nil {
			return search.Options{}, err
		}
		opts.Emitter = em
	}
	return opts, nil
}

// ParseLevel maps a level name onto slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// NewLogger builds a text logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

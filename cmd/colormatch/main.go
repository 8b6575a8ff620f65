package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/colormatch-mcp/internal/config"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "colormatch",
	Short: "Brute-force search for 3x3 color matrices that map sampled regions onto target colors",
	Long: `colormatch searches a grid of 3x3 color matrices for one that turns the average
color of every sampled region of an image into the color you expect there.

Run "colormatch serve" to expose the search as an MCP server on stdin/stdout, or
"colormatch search" for a one-shot run from the command line.

Environment variables:
  COLORMATCH_CONFIG        YAML config file
  COLORMATCH_WORKERS       Worker pool size
  COLORMATCH_OUTPUT_DIR    Directory for result PNGs
  COLORMATCH_GRID          YAML grid file
  COLORMATCH_LOG_LEVEL     debug, info, warn or error`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file (overrides "+config.EnvConfig+")")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves defaults, the config file, the environment and the persistent
// flags, in that order, and builds the stderr logger. stdout is reserved for MCP.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	getenv := func(key string) string {
		if key == config.EnvConfig && configPath != "" {
			return configPath
		}
		return os.Getenv(key)
	}

	cfg, err := config.Load(getenv)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		if _, err := config.ParseLevel(level); err != nil {
			return config.Config{}, nil, err
		}
		cfg.LogLevel = level
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

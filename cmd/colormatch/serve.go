package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/colormatch-mcp/internal/scheduler"
	"github.com/ironsheep/colormatch-mcp/internal/search"
	"github.com/ironsheep/colormatch-mcp/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdin/stdout",
	Long: `Run the MCP server on stdin/stdout.

This server communicates via MCP protocol over stdin/stdout.
Configure it in your MCP client (e.g., Claude Desktop). Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("workers", 0, "Worker pool size (default: config or number of CPUs)")
	serveCmd.Flags().String("output", "", "Directory for result PNGs (default: config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputDir, _ = cmd.Flags().GetString("output")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	grid, err := cfg.Grid()
	if err != nil {
		return err
	}
	engineOpts, err := cfg.EngineOptions(logger)
	if err != nil {
		return err
	}

	server.Version = Version
	sched := scheduler.New(cfg.SchedulerOptions(logger))
	defer sched.Close()

	logger.Info("Color match MCP server starting",
		"version", Version,
		"commit", GitCommit,
		"workers", sched.Workers(),
		"grid_size", grid.Size(),
		"output_dir", cfg.OutputDir)

	srv := server.New(server.Options{
		Scheduler: sched,
		Engine:    search.NewEngine(sched, engineOpts),
		Grid:      grid,
		Logger:    logger,
	})
	if err := srv.Run(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

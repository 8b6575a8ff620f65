package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironsheep/colormatch-mcp/internal/imaging"
	"github.com/ironsheep/colormatch-mcp/internal/match"
	"github.com/ironsheep/colormatch-mcp/internal/scheduler"
	"github.com/ironsheep/colormatch-mcp/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one search from the command line and wait for it to finish",
	Example: `  colormatch search --image shot.png \
    --sample "10,10,20,20,#6E5A64" --sample "100,40,8,8,#FFFFFF" \
    --output ./matches`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringP("image", "i", "", "Source image file, or - to read it from stdin")
	searchCmd.Flags().StringArrayP("sample", "s", nil, `Region sample "x,y,width,height,#RRGGBB" (repeatable, order matters)`)
	searchCmd.Flags().String("grid", "", "YAML grid file (default: config or built-in grid)")
	searchCmd.Flags().StringP("output", "o", "", "Directory for result PNGs (default: config)")
	searchCmd.Flags().Int("workers", 0, "Worker pool size (default: config or number of CPUs)")
	searchCmd.Flags().Bool("full-only", false, "Only write full matches to the output directory")
	searchCmd.Flags().Duration("timeout", 0, "Abort the search after this long (0 = no limit)")
	searchCmd.MarkFlagRequired("image")
	searchCmd.MarkFlagRequired("sample")
	rootCmd.AddCommand(searchCmd)
}

// parseSampleFlag parses "x,y,width,height,#RRGGBB".
func parseSampleFlag(s string) (match.Rect, imaging.RGBColor, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 5 {
		return match.Rect{}, imaging.RGBColor{}, fmt.Errorf("sample %q: want x,y,width,height,#RRGGBB", s)
	}
	var nums [4]int
	for i := range nums {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return match.Rect{}, imaging.RGBColor{}, fmt.Errorf("sample %q: %w", s, err)
		}
		nums[i] = n
	}
	expected, err := imaging.ParseHexColor(strings.TrimSpace(parts[4]))
	if err != nil {
		return match.Rect{}, imaging.RGBColor{}, fmt.Errorf("sample %q: %w", s, err)
	}
	return match.Rect{X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3]}, expected, nil
}

// loadSourceImage decodes the source from path, or from the command's stdin when path is "-".
func loadSourceImage(cmd *cobra.Command, path string) (*imaging.Buffer, error) {
	if path == "-" {
		return imaging.DecodeSource(cmd.InOrStdin())
	}
	return imaging.LoadSource(path)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	imagePath, _ := cmd.Flags().GetString("image")
	sampleFlags, _ := cmd.Flags().GetStringArray("sample")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if cmd.Flags().Changed("grid") {
		cfg.GridFile, _ = cmd.Flags().GetString("grid")
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputDir, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if fullOnly, _ := cmd.Flags().GetBool("full-only"); fullOnly {
		cfg.EmitPartial = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	buf, err := loadSourceImage(cmd, imagePath)
	if err != nil {
		return err
	}
	samples := make([]match.Sample, 0, len(sampleFlags))
	for _, f := range sampleFlags {
		rect, expected, err := parseSampleFlag(f)
		if err != nil {
			return err
		}
		sm, err := match.NewSample(buf, rect, expected)
		if err != nil {
			return fmt.Errorf("sample %q: %w", f, err)
		}
		samples = append(samples, sm)
	}

	grid, err := cfg.Grid()
	if err != nil {
		return err
	}
	engineOpts, err := cfg.EngineOptions(logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sched := scheduler.New(cfg.SchedulerOptions(logger))
	defer sched.Close()
	engine := search.NewEngine(sched, engineOpts)

	run, err := engine.RunSearch(ctx, buf, samples, grid)
	if err != nil {
		return err
	}
	<-run.Done()

	out := cmd.OutOrStdout()
	stats := run.Stats()
	fmt.Fprintf(out, "Searched %d of %d candidates in %s\n", stats.Evaluated, stats.GridSize, stats.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "Full matches: %d  Partial matches: %d\n", stats.Full, stats.Partial)
	if latest := engine.PollResult(); latest != nil {
		fmt.Fprintf(out, "Latest result: %s %s (%d/%d samples)\n", latest.Kind, latest.Transform, latest.Matched, latest.Total)
	}
	if cfg.OutputDir != "" {
		fmt.Fprintf(out, "Output: %s\n", cfg.OutputDir)
	}

	if stats.Cancelled {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("search timed out after %s", timeout)
		}
		return errors.New("search cancelled")
	}
	if err := run.Err(); err != nil {
		return err
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d candidates failed, see log", stats.Failed)
	}
	return nil
}

// Command ls-galaxy renders a procedurally generated galaxy in the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/litescript/ls-galaxy/internal/config"
	"github.com/litescript/ls-galaxy/internal/dispatch"
	"github.com/litescript/ls-galaxy/internal/logging"
	"github.com/litescript/ls-galaxy/internal/settings"
	"github.com/litescript/ls-galaxy/internal/snapshot"
	"github.com/litescript/ls-galaxy/internal/starfield"
	"github.com/litescript/ls-galaxy/internal/state"
	"github.com/litescript/ls-galaxy/internal/ui"
	"github.com/litescript/ls-galaxy/internal/version"
)

// CLI flags for headless mode
var (
	summaryMode  bool
	benchMode    bool
	jsonMode     bool
	snapshotPath string
)

const (
	benchWidth  = 120
	benchHeight = 40
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// Parse flags
	quality := flag.String("quality", cfg.Generation.Tier.String(), "Quality tier (low, medium, high, ultra)")
	seed := flag.Uint64("seed", cfg.Generation.Seed, "Generation seed")
	fraction := flag.Float64("impostor-fraction", cfg.Generation.ImpostorFraction, "Share of stars kept in the impostor set")
	fps := flag.Int("fps", cfg.Render.TargetFPS, "Target frame rate")
	logLevel := flag.String("log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	logFile := flag.String("log-file", cfg.Logging.File, "Append logs to file (TUI mode discards logs otherwise)")
	settingsPath := flag.String("settings", cfg.SettingsPath, "Persisted quality settings file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.BoolVar(&summaryMode, "summary", false, "Generate once and print population statistics")
	flag.BoolVar(&benchMode, "bench", false, "Run the adaptive frame loop headless and report tier changes")
	flag.BoolVar(&jsonMode, "json", false, "Print the summary as JSON")
	flag.StringVar(&snapshotPath, "snapshot-path", cfg.Snapshot.Path, "Render one frame to a WebP file")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ls-galaxy %s\n", version.Version)
		return
	}

	qualitySet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "quality" {
			qualitySet = true
		}
	})

	tier, err := starfield.ParseTier(*quality)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: --quality: %v\n", err)
		os.Exit(2)
	}
	cfg.Generation.Tier = tier
	cfg.Generation.Seed = *seed
	cfg.Generation.ImpostorFraction = *fraction
	cfg.Render.TargetFPS = *fps
	cfg.Logging.Level = *logLevel
	cfg.Logging.File = *logFile
	cfg.SettingsPath = *settingsPath
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if err := starfield.ValidateTable(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	headless := summaryMode || benchMode || snapshotPath != ""

	// Set up logging
	var logOut io.Writer = os.Stderr
	if cfg.Logging.File != "" || !headless {
		f, err := logging.OpenFile(cfg.Logging.File)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := logging.New(logging.Options{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: logging.ParseFormat(cfg.Logging.Format),
		Output: logOut,
	})

	// A tier saved from the TUI wins over the configured default, not over
	// an explicit --quality.
	if !qualitySet && cfg.SettingsPath != "" {
		saved, found, err := settings.Load(cfg.SettingsPath)
		switch {
		case err != nil:
			logger.Warn("ignoring saved settings", "operation", "settings", "path", cfg.SettingsPath, "error", err)
		case found:
			cfg.Generation.Tier = saved
		}
	}

	// Create context with cancellation
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize components
	dispatcher := dispatch.New(
		dispatch.WithLogger(logger),
		dispatch.WithSyncThreshold(cfg.Generation.SyncThreshold),
		dispatch.WithImpostorFraction(cfg.Generation.ImpostorFraction),
		dispatch.WithOptions(cfg.GenerationOptions()),
	)

	stateCfg := state.DefaultConfig()
	stateCfg.InitialTier = cfg.Generation.Tier
	stateCfg.Adaptive = cfg.Quality.Adaptive
	stateCfg.Quality = cfg.QualitySettings()
	stateCfg.Logger = logger
	stateMgr, err := state.NewManager(stateCfg, dispatcher)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer stateMgr.Close()

	// Headless mode: no TUI
	if headless {
		if err := runHeadless(ctx, cfg, stateMgr, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			stateMgr.Close()
			os.Exit(1)
		}
		return
	}

	model := ui.New(stateMgr, ui.Options{
		FrameInterval: cfg.FrameInterval(),
		Rotate:        cfg.Render.Rotate,
		SettingsPath:  cfg.SettingsPath,
		Snapshot: snapshot.Options{
			Width:  cfg.Snapshot.Width,
			Height: cfg.Snapshot.Height,
			Scale:  cfg.Snapshot.Scale,
		},
		SnapshotPath: cfg.Snapshot.Path,
		Logger:       logger,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	// Run TUI (blocks until quit)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		stateMgr.Close()
		os.Exit(1)
	}
}

// runHeadless handles all headless modes without starting TUI.
func runHeadless(ctx context.Context, cfg *config.Config, stateMgr *state.Manager, logger *slog.Logger) error {
	if err := stateMgr.Await(ctx); err != nil {
		return fmt.Errorf("initial generation: %w", err)
	}
	snap := stateMgr.Snapshot()
	if snap.LastError != nil {
		return snap.LastError
	}
	if snap.Published == nil {
		return errors.New("no dataset was published")
	}

	if benchMode {
		if err := runBench(ctx, cfg, stateMgr, logger); err != nil {
			return err
		}
		snap = stateMgr.Snapshot()
	}

	if snapshotPath != "" {
		pub := snap.Published
		opts := snapshot.Options{
			Width:  cfg.Snapshot.Width,
			Height: cfg.Snapshot.Height,
			Scale:  cfg.Snapshot.Scale,
		}
		ranges := starfield.PopulationRanges(pub.Dataset, snap.Tier)
		if err := snapshot.WriteFile(snapshotPath, pub.Dataset, ranges, opts); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		logger.Info("snapshot written", "operation", "snapshot", "path", snapshotPath)
		if !summaryMode {
			fmt.Printf("Snapshot written to %s\n", snapshotPath)
		}
	}

	if summaryMode {
		pub := snap.Published
		stats := snapshot.ExportStats(pub.Dataset, pub.Impostor, cfg.Generation.Seed, snap.LastDuration)
		if jsonMode || !term.IsTerminal(int(os.Stdout.Fd())) {
			if err := stats.WriteJSON(os.Stdout); err != nil {
				return fmt.Errorf("write JSON to stdout: %w", err)
			}
		} else {
			stats.WriteSummaryTable(os.Stdout)
		}
	}
	return nil
}

// runBench drives the frame loop at the target rate, rasterizing into an
// off-screen galaxy view, and reports every tier change.
func runBench(ctx context.Context, cfg *config.Config, stateMgr *state.Manager, logger *slog.Logger) error {
	limiter := rate.NewLimiter(rate.Every(cfg.FrameInterval()), 1)
	view := ui.NewGalaxyViewModel(cfg.Render.Rotate).SetSize(benchWidth, benchHeight)

	var (
		renderCost time.Duration
		changes    int
		last       = time.Now()
	)
	for i := 0; i < cfg.Render.BenchFrames; i++ {
		if err := limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			return err
		}
		now := time.Now()
		view = view.Advance(now.Sub(last).Seconds(), 0)
		last = now

		var capacity float64
		if renderCost > 0 {
			capacity = 1 / renderCost.Seconds()
		}
		info := stateMgr.Frame(capacity, view.ViewerDistance())
		start := time.Now()
		view = view.Render(info)
		renderCost = time.Since(start)

		if info.Evaluated && info.Decision.Changed() {
			changes++
			fmt.Printf("frame %4d: %s -> %s (%s, mean %.0f fps)\n", i,
				info.Decision.From, info.Decision.To, info.Decision.Reason, info.Decision.MeanFPS)
		}
	}

	// Let a pending upgrade land before reporting.
	if err := stateMgr.Await(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	snap := stateMgr.Snapshot()
	logger.Info("bench complete", "operation", "bench", "frames", snap.Frames, "changes", changes)
	fmt.Printf("Frames: %d  Tier: %s  Stars: %d  Mean FPS: %.0f  Stale passes: %d\n",
		snap.Frames, snap.Tier, snap.Published.Dataset.Len(), snap.MeanFPS, snap.StaleCount)
	if snap.LastError != nil {
		fmt.Printf("Last error: %v\n", snap.LastError)
	}
	return nil
}

// Package config loads ls-galaxy settings from defaults, .env files and the
// environment. Command-line flags are applied on top by main.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/litescript/ls-galaxy/internal/dispatch"
	"github.com/litescript/ls-galaxy/internal/quality"
	"github.com/litescript/ls-galaxy/internal/starfield"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GALAXY_"

// Config is the complete runtime configuration.
type Config struct {
	Generation GenerationConfig
	Quality    QualityConfig
	Render     RenderConfig
	Logging    LoggingConfig
	Snapshot   SnapshotConfig

	SettingsPath string
}

type GenerationConfig struct {
	Tier             starfield.Tier
	Seed             uint64
	ImpostorFraction float64
	SyncThreshold    int
	SkipArms         bool
	SkipHalo         bool
	SkipClusters     bool
}

type QualityConfig struct {
	Adaptive     bool
	Cadence      int
	HistorySize  int
	LowFPS       float64
	HighFPS      float64
	PromoteAfter int
}

type RenderConfig struct {
	TargetFPS   int
	BenchFrames int
	Rotate      bool
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

type SnapshotConfig struct {
	Path   string
	Width  int
	Height int
	Scale  int // supersampling factor
}

// Default returns the built-in configuration.
func Default() *Config {
	q := quality.DefaultSettings()
	return &Config{
		Generation: GenerationConfig{
			Tier:             starfield.TierMedium,
			Seed:             1,
			ImpostorFraction: starfield.DefaultImpostorFraction,
			SyncThreshold:    dispatch.DefaultSyncThreshold,
		},
		Quality: QualityConfig{
			Adaptive:     true,
			Cadence:      q.Cadence,
			HistorySize:  q.HistorySize,
			LowFPS:       q.LowFPS,
			HighFPS:      q.HighFPS,
			PromoteAfter: q.PromoteAfter,
		},
		Render: RenderConfig{
			TargetFPS:   30,
			BenchFrames: 600,
			Rotate:      true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Snapshot: SnapshotConfig{
			Width:  1280,
			Height: 720,
			Scale:  2,
		},
		SettingsPath: DefaultSettingsPath(),
	}
}

// Load reads the given .env files (or ./.env when none are named) and
// applies GALAXY_* environment variables over the defaults. A missing
// .env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := getEnv("QUALITY", ""); v != "" {
		tier, err := starfield.ParseTier(v)
		if err != nil {
			return fmt.Errorf("%sQUALITY: %w", EnvPrefix, err)
		}
		c.Generation.Tier = tier
	}

	var errs []error
	c.Generation.Seed = getEnvUint(&errs, "SEED", c.Generation.Seed)
	c.Generation.ImpostorFraction = getEnvFloat(&errs, "IMPOSTOR_FRACTION", c.Generation.ImpostorFraction)
	c.Generation.SyncThreshold = getEnvInt(&errs, "SYNC_THRESHOLD", c.Generation.SyncThreshold)
	c.Generation.SkipArms = getEnvBool(&errs, "SKIP_ARMS", c.Generation.SkipArms)
	c.Generation.SkipHalo = getEnvBool(&errs, "SKIP_HALO", c.Generation.SkipHalo)
	c.Generation.SkipClusters = getEnvBool(&errs, "SKIP_CLUSTERS", c.Generation.SkipClusters)

	c.Quality.Adaptive = getEnvBool(&errs, "ADAPTIVE", c.Quality.Adaptive)
	c.Quality.Cadence = getEnvInt(&errs, "EVAL_CADENCE", c.Quality.Cadence)
	c.Quality.HistorySize = getEnvInt(&errs, "FPS_HISTORY", c.Quality.HistorySize)
	c.Quality.LowFPS = getEnvFloat(&errs, "LOW_FPS", c.Quality.LowFPS)
	c.Quality.HighFPS = getEnvFloat(&errs, "HIGH_FPS", c.Quality.HighFPS)
	c.Quality.PromoteAfter = getEnvInt(&errs, "PROMOTE_AFTER", c.Quality.PromoteAfter)

	c.Render.TargetFPS = getEnvInt(&errs, "FPS", c.Render.TargetFPS)
	c.Render.BenchFrames = getEnvInt(&errs, "BENCH_FRAMES", c.Render.BenchFrames)
	c.Render.Rotate = getEnvBool(&errs, "ROTATE", c.Render.Rotate)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
	c.Logging.File = getEnv("LOG_FILE", c.Logging.File)

	c.Snapshot.Path = getEnv("SNAPSHOT_PATH", c.Snapshot.Path)
	c.Snapshot.Width = getEnvInt(&errs, "SNAPSHOT_WIDTH", c.Snapshot.Width)
	c.Snapshot.Height = getEnvInt(&errs, "SNAPSHOT_HEIGHT", c.Snapshot.Height)
	c.Snapshot.Scale = getEnvInt(&errs, "SNAPSHOT_SCALE", c.Snapshot.Scale)

	c.SettingsPath = getEnv("SETTINGS", c.SettingsPath)
	return errors.Join(errs...)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if !c.Generation.Tier.Valid() {
		return fmt.Errorf("quality: %w", starfield.ErrUnknownTier)
	}
	if !(c.Generation.ImpostorFraction > 0) || c.Generation.ImpostorFraction > 1 {
		return fmt.Errorf("impostor fraction must be in (0, 1], got %v", c.Generation.ImpostorFraction)
	}
	if c.Generation.SyncThreshold < 0 {
		return fmt.Errorf("sync threshold must be non-negative, got %d", c.Generation.SyncThreshold)
	}
	if err := c.QualitySettings().Validate(); err != nil {
		return fmt.Errorf("quality controller: %w", err)
	}
	if c.Render.TargetFPS <= 0 || c.Render.TargetFPS > 240 {
		return fmt.Errorf("target fps must be in 1..240, got %d", c.Render.TargetFPS)
	}
	if c.Render.BenchFrames <= 0 {
		return fmt.Errorf("bench frames must be positive, got %d", c.Render.BenchFrames)
	}
	if c.Snapshot.Width <= 0 || c.Snapshot.Height <= 0 || c.Snapshot.Scale <= 0 {
		return fmt.Errorf("snapshot size %dx%d@%d is invalid", c.Snapshot.Width, c.Snapshot.Height, c.Snapshot.Scale)
	}
	return nil
}

// QualitySettings converts the quality section for the controller.
func (c *Config) QualitySettings() quality.Settings {
	s := quality.DefaultSettings()
	s.Cadence = c.Quality.Cadence
	s.HistorySize = c.Quality.HistorySize
	s.LowFPS = c.Quality.LowFPS
	s.HighFPS = c.Quality.HighFPS
	s.PromoteAfter = c.Quality.PromoteAfter
	return s
}

// GenerationOptions converts the generation section for starfield.
func (c *Config) GenerationOptions() starfield.Options {
	return starfield.Options{
		Seed:         c.Generation.Seed,
		SkipArms:     c.Generation.SkipArms,
		SkipHalo:     c.Generation.SkipHalo,
		SkipClusters: c.Generation.SkipClusters,
	}
}

// FrameInterval is the time between frames at the target rate.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Render.TargetFPS)
}

// DefaultSettingsPath returns the per-user settings file location.
func DefaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".ls-galaxy.json"
	}
	return filepath.Join(dir, "ls-galaxy", "settings.json")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(errs *[]error, key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return fallback
	}
	return n
}

func getEnvUint(errs *[]error, key string, fallback uint64) uint64 {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return fallback
	}
	return n
}

func getEnvFloat(errs *[]error, key string, fallback float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return fallback
	}
	return f
}

func getEnvBool(errs *[]error, key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return fallback
	}
	return b
}

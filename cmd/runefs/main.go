package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/runetools/runefs/internal/cache"
	"github.com/runetools/runefs/internal/config"
)

var (
	cfg     *config.Config
	cfgFile string

	cachePath  string
	outputPath string
	whirlpool  bool
	workers    int
	logLevel   string
	logFormat  string
	noProgress bool
)

var rootCmd = &cobra.Command{
	Use:   "runefs",
	Short: "Legacy game cache inspection and extraction tool",
	Long: `runefs reads the legacy client's on-disk asset cache (main_file_cache.dat2
plus its idx files) and exposes its contents: per-index summaries, bulk
extraction of every (index, archive, file) asset, and the checksum manifest
clients use to validate their caches.

The cache directory is auto-discovered from the usual install locations when
--cache is not given.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if cmd.Flags().Changed("cache") {
			cfg.Cache = cachePath
		}
		if cmd.Flags().Changed("output") {
			cfg.Output = outputPath
		}
		if cmd.Flags().Changed("whirlpool") {
			cfg.Whirlpool = whirlpool
		}
		if cmd.Flags().Changed("workers") {
			cfg.Workers = workers
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}

		var level slog.Level
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		var handler slog.Handler
		if cfg.LogFormat == "json" {
			handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})
		} else {
			handler = tint.NewHandler(os.Stderr, &tint.Options{
				Level: level,
			})
		}

		logger := slog.New(handler)
		slog.SetDefault(logger)

		cfg.Cache = cache.Discover(cfg.Cache)
		if cfg.Cache == "" {
			return fmt.Errorf("no cache directory found; pass --cache")
		}

		slog.Info("Configuration",
			"cache", cfg.Cache,
			"output", cfg.Output,
			"whirlpool", cfg.Whirlpool,
			"workers", cfg.Workers,
			"log_level", cfg.LogLevel,
			"log_format", cfg.LogFormat)

		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is runefs.yaml in the home directory, then in pwd)")
	rootCmd.PersistentFlags().StringVarP(&cachePath, "cache", "c", "", "cache directory (auto-discovered when empty)")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "output directory for extract")
	rootCmd.PersistentFlags().BoolVar(&whirlpool, "whirlpool", false, "include whirlpool digests in the checksum manifest")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "concurrent archive readers during extraction")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable progress bar")
}

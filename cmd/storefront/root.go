package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"storefront/internal/config"
	"storefront/internal/telemetry"
)

const defaultShellLog = "storefront.log"

var (
	cfgFile  string
	logLevel string
	logFile  string

	// cfg is populated by PersistentPreRunE and shared with all subcommands.
	cfg *config.Config

	// app holds all wired dependencies; populated by PersistentPreRunE.
	app *AppContext
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront shell for a WooCommerce shop",
	Long: `Storefront boots the shop shell: it wires push notifications when they
are enabled, initialises the commerce client, preloads fonts and icons,
and hands over to the persisted storefront UI.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file (the run command logs only here)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := config.ValidateBootstrap(cfg.Bootstrap); err != nil {
			return err
		}

		// --log-level flag takes precedence over value in config file.
		if cmd.Flags().Changed("log-level") || cfg.Telemetry.LogLevel == "" {
			cfg.Telemetry.LogLevel = logLevel
		}

		closer, err := initLogger(cmd.Name(), cfg.Telemetry.LogLevel)
		if err != nil {
			return err
		}

		app, err = buildAppContext(cmd.Context(), cfg)
		if err != nil {
			closer.Close() //nolint:errcheck
			return fmt.Errorf("building app context: %w", err)
		}
		app.logCloser = closer
		return nil
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(settingsCmd)
}

// Execute is the entry point called by main. Teardown runs whether or not
// the command succeeded; cobra skips post-run hooks after an error.
func Execute() {
	err := rootCmd.ExecuteContext(context.Background())
	if app != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if closeErr := app.Close(ctx); closeErr != nil {
			slog.Warn("teardown incomplete", "err", closeErr)
		}
		cancel()
	}
	if err != nil {
		os.Exit(1)
	}
}

// initLogger installs the default logger. The interactive shell owns the
// terminal, so it logs to a file only.
func initLogger(command, level string) (io.Closer, error) {
	var writers []io.Writer
	if command != runCmd.Name() {
		writers = append(writers, os.Stdout)
	}

	path := logFile
	if path == "" && len(writers) == 0 {
		path = defaultShellLog
	}

	closer := io.Closer(nopCloser{})
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file %s: %w", path, err)
		}
		writers = append(writers, f)
		closer = f
	}

	slog.SetDefault(telemetry.NewLogger(telemetry.ParseLevel(level), writers...))
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Package main provides the semtext binary entry point.
// Semtext annotates text documents with a configurable pipeline and
// records the provenance of every annotation it produces.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	// Register pipeline operations via init()
	_ "github.com/c360studio/semtext/text/match"
	_ "github.com/c360studio/semtext/text/negation"
	_ "github.com/c360studio/semtext/text/segment"

	"github.com/c360studio/semtext/config"
	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semtext"
)

var (
	flagConfig   string
	flagLogLevel string
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "semtext",
		Short: "Text annotation with provenance tracking",
		Long: `Semtext annotates text documents with a configurable pipeline and
records the provenance of every annotation it produces.

It provides:
- Directory and web page ingestion into text documents
- Sentence segmentation, regexp entity matching and negation detection
- Provenance capture, snapshots and graph publishing over NATS`,
	}

	cmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		runCmd(),
		watchCmd(),
		fetchCmd(),
		exportCmd(),
		initCmd(),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

// setup configures logging and loads the layered configuration. An
// explicit --config file skips the user and project config discovery.
func setup() (*config.Config, *slog.Logger, error) {
	logger := newLogger(flagLogLevel)
	slog.SetDefault(logger)

	if flagConfig != "" {
		cfg, err := config.LoadFromFile(flagConfig)
		if err != nil {
			return nil, nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, logger, nil
	}

	cfg, err := config.NewLoader(logger).Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║             Semtext v" + Version + "                     ║")
	fmt.Println("║      Text Annotation with Provenance          ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
}

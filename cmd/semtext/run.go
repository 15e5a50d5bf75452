package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/c360studio/semtext/config"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var (
		root  string
		label string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Annotate the documents under the ingest root",
		Long: `Run loads every document under the ingest root, annotates it with
the configured pipeline, and records provenance for each annotation.

With a NATS connection the documents and a provenance snapshot are
stored and graph entities are published. Configured export formats
are written either way. When watching is enabled in the config, run
keeps watching the root for changes after the initial pass.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if root != "" {
				cfg.Ingest.Root = root
			}
			if cfg.Ingest.Root == "" {
				return fmt.Errorf("no ingest root configured (set ingest.root in %s or pass --root)", config.ProjectConfigFile)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			app := NewApp(cfg, logger)
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer app.Shutdown(context.Background())

			summary, err := app.runOnce(ctx, label)
			if err != nil {
				return err
			}
			printSummary(summary)

			if cfg.Watch.Enabled {
				return app.watchLoop(ctx)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Directory to annotate (overrides ingest.root)")
	cmd.Flags().StringVar(&label, "label", "run", "Label for the stored provenance snapshot")

	return cmd
}

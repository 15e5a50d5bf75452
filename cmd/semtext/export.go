package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/c360studio/semtext/storage"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export [snapshot-id]",
		Short: "Render a stored provenance snapshot as graphviz dot",
		Long: `Export renders a stored provenance snapshot in graphviz dot syntax.
Without a snapshot id it lists the stored snapshots instead.

Requires a NATS connection; snapshots are only stored when runs
happen online.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			app := NewApp(cfg, logger)
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer app.Shutdown(context.Background())

			if !app.Online() {
				return fmt.Errorf("export requires a NATS connection (set nats.url or NATS_URL)")
			}

			if len(args) == 0 {
				return app.listSnapshots(ctx)
			}
			return app.exportSnapshot(ctx, args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write dot output to this file instead of stdout")

	return cmd
}

func (a *App) listSnapshots(ctx context.Context) error {
	snaps, err := a.store.ListSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	if len(snaps) == 0 {
		fmt.Println("No snapshots stored. Run semtext with a NATS connection to create one.")
		return nil
	}

	slices.SortFunc(snaps, func(a, b *storage.Snapshot) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	fmt.Printf("%-45s  %-20s  %5s  %s\n", "ID", "CREATED", "NODES", "LABEL")
	for _, snap := range snaps {
		fmt.Printf("%-45s  %-20s  %5d  %s\n",
			snap.ID,
			snap.CreatedAt.UTC().Format(time.RFC3339),
			len(snap.Nodes),
			snap.Label,
		)
	}
	return nil
}

func (a *App) exportSnapshot(ctx context.Context, arg, output string) error {
	id, err := parseSnapshotArg(arg)
	if err != nil {
		return err
	}

	snap, err := a.store.GetSnapshot(ctx, id)
	if err != nil {
		return err
	}

	dot := snap.Dot()
	if output == "" {
		fmt.Print(dot)
		return nil
	}
	if err := os.WriteFile(output, []byte(dot), 0644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	fmt.Printf("✓ Wrote %s\n", output)
	return nil
}

// parseSnapshotArg accepts either a full typed id ("snapshot:<uid>")
// or a bare uid.
func parseSnapshotArg(arg string) (storage.EntityID, error) {
	if strings.Contains(arg, ":") {
		return storage.ParseEntityID(arg)
	}
	return storage.EntityID{Type: storage.EntityTypeSnapshot, ID: arg}, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/c360studio/semtext/config"
	"github.com/c360studio/semtext/document"
	"github.com/c360studio/semtext/ident"
	"github.com/c360studio/semtext/ingest"
	"github.com/c360studio/semtext/prov"
	"github.com/c360studio/semtext/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func watchCmd() *cobra.Command {
	var (
		root        string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Annotate documents and keep watching for changes",
		Long: `Watch runs an initial annotation pass over the ingest root, then
keeps running and re-annotates documents as files are created,
modified or deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner()

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
			cfg.Watch.Enabled = true

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			app := NewApp(cfg, logger)
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer app.Shutdown(context.Background())

			if metricsAddr != "" {
				stop := app.serveMetrics(metricsAddr)
				defer stop()
			}

			summary, err := app.runOnce(ctx, "watch start")
			if err != nil {
				return err
			}
			printSummary(summary)

			return app.watchLoop(ctx)
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Directory to watch (overrides ingest.root)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

// watchLoop blocks processing file events until the context is
// canceled. The loader must have completed an initial Load so the
// watcher can be seeded with known content hashes.
func (a *App) watchLoop(ctx context.Context) error {
	if err := a.ensureLoader(); err != nil {
		return err
	}
	if err := a.ensurePipeline(); err != nil {
		return err
	}

	watcher, err := ingest.NewWatcher(a.cfg.Watch, a.cfg.Ingest.Root, a.logger)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	for path, hash := range a.loader.Hashes() {
		watcher.SetHash(path, hash)
	}

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Stop()

	if !a.Online() {
		a.logger.Warn("Running offline, changes are annotated but not persisted")
	}
	a.logger.Info("Watching for changes", "root", a.cfg.Ingest.Root)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Received shutdown signal")
			return nil
		case event, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			if err := a.handleEvent(ctx, event); err != nil {
				a.logger.Error("Failed to process change",
					"path", event.Path, "op", string(event.Op), "error", err)
			}
		}
	}
}

func (a *App) handleEvent(ctx context.Context, event ingest.Event) error {
	if event.Op == ingest.OpDelete {
		return a.removeDocument(ctx, event.Path)
	}
	return a.processFile(ctx, event.AbsPath)
}

// processFile annotates a single created or modified file. Each file
// gets a fresh tracer so published provenance covers exactly this
// change.
func (a *App) processFile(ctx context.Context, absPath string) error {
	tracer := prov.NewTracer()
	a.loader.SetProvTracer(tracer)
	a.docPipe.SetProvTracer(tracer)

	doc, err := a.loader.LoadFile(absPath)
	if err != nil {
		return err
	}

	docs := []*document.TextDocument{doc}
	if err := a.docPipe.Run(docs); err != nil {
		return err
	}
	if err := a.persistDocs(ctx, tracer, docs); err != nil {
		return err
	}

	a.logger.Info("Document annotated",
		"uid", doc.UID(), "annotations", len(doc.Anns().All()))
	return nil
}

func (a *App) removeDocument(ctx context.Context, path string) error {
	a.logger.Info("Document removed", "path", path)
	if a.natsClient == nil {
		return nil
	}
	return a.store.DeleteDocument(ctx, storage.DocumentID(ident.Deterministic(path)))
}

// serveMetrics exposes the pipeline metrics registry over HTTP. The
// returned function shuts the server down.
func (a *App) serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Metrics server shutdown failed", "error", err)
		}
	}
}

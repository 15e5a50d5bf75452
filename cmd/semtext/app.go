package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360studio/semstreams/natsclient"
	"github.com/c360studio/semtext/config"
	"github.com/c360studio/semtext/document"
	"github.com/c360studio/semtext/export"
	"github.com/c360studio/semtext/ingest"
	"github.com/c360studio/semtext/pipeline"
	"github.com/c360studio/semtext/prov"
	"github.com/c360studio/semtext/publish"
	"github.com/c360studio/semtext/storage"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
)

// App wires the ingest, pipeline, storage and publishing components
// behind the CLI commands. NATS is optional: without a configured URL
// the app runs offline and skips persistence and graph publishing.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	natsClient *natsclient.Client
	store      *storage.Store

	registry *prometheus.Registry
	metrics  *pipeline.Metrics

	loader  *ingest.Loader
	docPipe *pipeline.DocPipeline
}

func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	registry := prometheus.NewRegistry()
	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  pipeline.NewMetrics(registry),
	}
}

// Start connects to NATS and initializes document and snapshot
// storage when a URL is configured.
func (a *App) Start(ctx context.Context) error {
	natsURL, ok := resolveNATSURL(a.cfg.NATS.URL)
	if !ok {
		a.logger.Info("No NATS URL configured, running offline")
		return nil
	}

	client, err := connectToNATS(ctx, natsURL, a.logger)
	if err != nil {
		return err
	}
	a.natsClient = client

	js, err := client.JetStream()
	if err != nil {
		return fmt.Errorf("get JetStream context: %w", err)
	}

	store, err := storage.NewStore(ctx, js)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	a.store = store

	return ensureGraphStream(ctx, js)
}

func (a *App) Shutdown(ctx context.Context) {
	if a.natsClient != nil {
		a.natsClient.Close(ctx)
	}
}

// Online reports whether the app has a NATS connection.
func (a *App) Online() bool {
	return a.natsClient != nil
}

func (a *App) ensureLoader() error {
	if a.loader != nil {
		return nil
	}
	loader, err := ingest.New(a.cfg.Ingest)
	if err != nil {
		return err
	}
	a.loader = loader
	return nil
}

// ensurePipeline compiles the configured pipeline definition, or the
// built-in default when none is configured.
func (a *App) ensurePipeline() error {
	if a.docPipe != nil {
		return nil
	}

	def := defaultDefinition()
	if a.cfg.Pipeline.Definition != "" {
		loaded, err := pipeline.LoadDefinition(a.cfg.Pipeline.Definition)
		if err != nil {
			return err
		}
		def = loaded
	}

	pipe, err := def.Compile()
	if err != nil {
		return fmt.Errorf("compile pipeline %q: %w", def.Name, err)
	}
	pipe.SetMetrics(a.metrics)

	docPipe, err := pipeline.NewDocPipeline(pipe, def.DocLabels())
	if err != nil {
		return err
	}

	a.docPipe = docPipe
	return nil
}

// defaultDefinition is the pipeline used when no definition file is
// configured: sentence segmentation followed by negation detection.
func defaultDefinition() *pipeline.Definition {
	return &pipeline.Definition{
		Name:       "default",
		InputKeys:  []string{"full_text"},
		OutputKeys: []string{"sentences"},
		Steps: []pipeline.StepDefinition{
			{Operation: "sentence-tokenizer", InputKeys: []string{"full_text"}, OutputKeys: []string{"sentences"}},
			{Operation: "negation-detector", InputKeys: []string{"sentences"}},
		},
	}
}

type runSummary struct {
	Documents   int
	Annotations int
	ProvNodes   int
	SnapshotID  string
	Artifacts   []string
}

// runOnce loads all documents under the ingest root, annotates them,
// and persists, publishes and exports the results.
func (a *App) runOnce(ctx context.Context, snapshotLabel string) (*runSummary, error) {
	if err := a.ensureLoader(); err != nil {
		return nil, err
	}
	if err := a.ensurePipeline(); err != nil {
		return nil, err
	}

	tracer := prov.NewTracer()
	a.loader.SetProvTracer(tracer)
	a.docPipe.SetProvTracer(tracer)

	docs, err := a.loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	if err := a.docPipe.Run(docs); err != nil {
		return nil, fmt.Errorf("annotate documents: %w", err)
	}

	if err := a.persistDocs(ctx, tracer, docs); err != nil {
		return nil, err
	}

	snapshotID, err := a.saveSnapshot(ctx, tracer, snapshotLabel)
	if err != nil {
		return nil, err
	}

	artifacts, err := a.writeArtifacts(tracer, docs)
	if err != nil {
		return nil, err
	}

	summary := &runSummary{
		Documents:  len(docs),
		ProvNodes:  len(tracer.Graph().Flatten().ListNodes()),
		SnapshotID: snapshotID,
		Artifacts:  artifacts,
	}
	for _, doc := range docs {
		summary.Annotations += len(doc.Anns().All())
	}
	return summary, nil
}

// persistDocs stores the documents and publishes provenance and
// annotation entities to the graph stream. Offline it is a no-op.
func (a *App) persistDocs(ctx context.Context, tracer *prov.Tracer, docs []*document.TextDocument) error {
	if a.natsClient == nil {
		return nil
	}

	for _, doc := range docs {
		if err := a.store.PutDocument(ctx, doc); err != nil {
			return fmt.Errorf("store document %s: %w", doc.UID(), err)
		}
	}

	if err := publish.PublishProvenance(ctx, a.natsClient, tracer); err != nil {
		return fmt.Errorf("publish provenance: %w", err)
	}
	for _, doc := range docs {
		if err := publish.PublishAnnotations(ctx, a.natsClient, doc); err != nil {
			return fmt.Errorf("publish annotations for %s: %w", doc.UID(), err)
		}
	}
	return nil
}

func (a *App) saveSnapshot(ctx context.Context, tracer *prov.Tracer, label string) (string, error) {
	if a.natsClient == nil {
		return "", nil
	}
	snap := storage.NewSnapshot(label, tracer)
	id, err := a.store.CreateSnapshot(ctx, snap)
	if err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	return id.String(), nil
}

// writeArtifacts writes the configured export formats into the export
// directory and returns the paths written.
func (a *App) writeArtifacts(tracer *prov.Tracer, docs []*document.TextDocument) ([]string, error) {
	if len(a.cfg.Export.Formats) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(a.cfg.Export.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	var paths []string

	if a.cfg.Export.WantsFormat("jsonl") {
		path := filepath.Join(a.cfg.Export.Dir, "documents.jsonl")
		if err := writeDocumentsFile(path, docs); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	if a.cfg.Export.WantsFormat("dot") {
		path := filepath.Join(a.cfg.Export.Dir, "provenance.dot")
		dotCfg := export.DefaultDotConfig()
		dotCfg.MaxDepth = a.cfg.Export.MaxDotDepth
		if err := os.WriteFile(path, []byte(export.ExportTracer(tracer, dotCfg)), 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}

func writeDocumentsFile(path string, docs []*document.TextDocument) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	writeErr := export.WriteDocuments(f, docs)
	closeErr := f.Close()
	if writeErr != nil {
		return fmt.Errorf("write %s: %w", path, writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", path, closeErr)
	}
	return nil
}

func printSummary(s *runSummary) {
	fmt.Printf("✓ %d documents annotated (%d annotations, %d provenance nodes)\n",
		s.Documents, s.Annotations, s.ProvNodes)
	if s.SnapshotID != "" {
		fmt.Printf("✓ Provenance snapshot %s stored\n", s.SnapshotID)
	}
	for _, path := range s.Artifacts {
		fmt.Printf("✓ Wrote %s\n", path)
	}
}

// resolveNATSURL picks the NATS URL from the environment or the
// configuration. Environment variables take precedence. Without
// either, semtext runs offline.
func resolveNATSURL(configured string) (string, bool) {
	if url := os.Getenv("NATS_URL"); url != "" {
		return url, true
	}
	if url := os.Getenv("SEMTEXT_NATS_URL"); url != "" {
		return url, true
	}
	if configured != "" {
		return configured, true
	}
	return "", false
}

func connectToNATS(ctx context.Context, natsURL string, logger *slog.Logger) (*natsclient.Client, error) {
	logger.Info("Connecting to NATS", "url", natsURL)

	client, err := natsclient.NewClient(natsURL,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	logger.Info("Connected to NATS", "url", natsURL)
	return client, nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	// Check for common connection errors
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

Start a JetStream-enabled server:
  nats-server -js

Or set NATS_URL to point to your NATS server. Without nats.url
configured, semtext runs offline and skips persistence.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}

// ensureGraphStream creates the stream that receives graph ingest
// entities if it does not exist yet.
func ensureGraphStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     "GRAPH",
		Subjects: []string{publish.GraphIngestSubject},
		MaxAge:   24 * time.Hour,
		Storage:  jetstream.MemoryStorage,
		Replicas: 1,
	})
	if err != nil {
		return fmt.Errorf("ensure graph stream: %w", err)
	}
	return nil
}

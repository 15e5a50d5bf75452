package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// eventBuffer is the size of the watch event channel.
const eventBuffer = 256

// WatchConfig configures document directory watching.
type WatchConfig struct {
	// Enabled controls whether file watching is active.
	Enabled bool `yaml:"enabled,omitempty"`

	// DebounceDelay is how long to wait for more changes before
	// reporting, e.g. "500ms".
	DebounceDelay string `yaml:"debounce_delay,omitempty"`

	// FileExtensions lists file extensions to watch, e.g. [".txt", ".md"].
	FileExtensions []string `yaml:"file_extensions,omitempty"`

	// ExcludeDirs lists directory names to skip, e.g. [".git"].
	ExcludeDirs []string `yaml:"exclude_dirs,omitempty"`
}

// DefaultWatchConfig returns default watch configuration.
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		Enabled:        false,
		DebounceDelay:  "500ms",
		FileExtensions: []string{".txt", ".md"},
		ExcludeDirs:    []string{".git", "node_modules", "vendor"},
	}
}

// GetDebounceDelay returns the debounce delay as a duration.
func (c *WatchConfig) GetDebounceDelay() time.Duration {
	if c.DebounceDelay == "" {
		return 500 * time.Millisecond
	}
	d, err := time.ParseDuration(c.DebounceDelay)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// Event reports a document file change.
type Event struct {
	// Path is the file path relative to the watched root,
	// slash-separated. It matches the source keys used by Loader.
	Path string

	// AbsPath is the absolute file path.
	AbsPath string

	// Op is the kind of change.
	Op EventOp
}

// EventOp is the kind of file change an Event reports.
type EventOp string

// OpCreate, OpModify and OpDelete enumerate the watch event kinds.
const (
	OpCreate EventOp = "create"
	OpModify EventOp = "modify"
	OpDelete EventOp = "delete"
)

// Watcher watches a directory tree for document changes and emits
// debounced events. Raw filesystem notifications are coalesced per
// file over a debounce window, and a content hash check suppresses
// notifications where the bytes did not change. When the event channel
// is full, events are dropped and counted rather than blocking.
type Watcher struct {
	config     WatchConfig
	root       string
	watcher    *fsnotify.Watcher
	logger     *slog.Logger
	extensions map[string]bool
	excludes   map[string]bool

	// Coalesced changes waiting for the next debounce tick.
	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	hashMu sync.RWMutex
	hashes map[string]string

	events  chan Event
	dropped atomic.Int64
}

// NewWatcher creates a watcher for the given root directory.
func NewWatcher(cfg WatchConfig, root string, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultWatchConfig()

	extensions := make(map[string]bool)
	exts := cfg.FileExtensions
	if len(exts) == 0 {
		exts = defaults.FileExtensions
	}
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extensions[strings.ToLower(ext)] = true
	}

	excludes := make(map[string]bool)
	dirs := cfg.ExcludeDirs
	if len(dirs) == 0 {
		dirs = defaults.ExcludeDirs
	}
	for _, dir := range dirs {
		excludes[dir] = true
	}

	return &Watcher{
		config:     cfg,
		root:       root,
		watcher:    fsw,
		logger:     logger,
		extensions: extensions,
		excludes:   excludes,
		pending:    make(map[string]fsnotify.Op),
		hashes:     make(map[string]string),
		events:     make(chan Event, eventBuffer),
	}, nil
}

// Events returns the channel of watch events. The channel is closed
// when the watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins watching the root directory tree. Watching stops when
// the context is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return err
	}
	if err := w.addWatchesRecursive(w.root); err != nil {
		return err
	}

	go w.run(ctx)

	w.logger.Info("Document watcher started",
		"root", w.root,
		"debounce", w.config.GetDebounceDelay(),
		"extensions", w.config.FileExtensions)
	return nil
}

// Stop stops the watcher. The events channel is closed by the event
// loop when it exits.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// SetHash records the content hash for a file. Seed hashes from
// Loader.Hashes so already-loaded files do not fire change events.
func (w *Watcher) SetHash(path, hash string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	w.hashes[path] = hash
}

// GetHash returns the recorded content hash for a file.
func (w *Watcher) GetHash(path string) (string, bool) {
	w.hashMu.RLock()
	defer w.hashMu.RUnlock()
	hash, ok := w.hashes[path]
	return hash, ok
}

// DroppedEvents returns the number of events dropped because the
// event channel was full.
func (w *Watcher) DroppedEvents() int64 {
	return w.dropped.Load()
}

// addWatchesRecursive registers watches on root and every directory
// below it, skipping excluded and hidden directories.
func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		base := filepath.Base(path)
		if w.excludes[base] || (strings.HasPrefix(base, ".") && base != ".") {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// run is the event loop: raw notifications accumulate in the pending
// map and are flushed on every debounce tick.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.config.GetDebounceDelay())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleRaw(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// handleRaw records a raw notification for the next flush. New
// directories get watches registered so files created in them are
// seen.
func (w *Watcher) handleRaw(event fsnotify.Event) {
	path := event.Name

	ext := strings.ToLower(filepath.Ext(path))
	if !w.extensions[ext] {
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				w.watchNewDir(path)
			}
		}
		return
	}

	rel := w.relPath(path)
	if w.inExcludedDir(rel) {
		return
	}

	w.pendingMu.Lock()
	w.pending[path] |= event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("Document change detected", "path", rel, "op", event.Op.String())
}

// watchNewDir registers a watch on a directory created after Start.
func (w *Watcher) watchNewDir(path string) {
	base := filepath.Base(path)
	if w.excludes[base] || strings.HasPrefix(base, ".") {
		return
	}
	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("Failed to watch new directory", "path", path, "error", err)
	}
}

// flushPending turns accumulated raw notifications into events.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for path, op := range toProcess {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rel := w.relPath(path)
		event := Event{Path: rel, AbsPath: path}

		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			event.Op = OpDelete
			w.hashMu.Lock()
			delete(w.hashes, rel)
			w.hashMu.Unlock()
			w.send(event)
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			event.Op = OpDelete
			w.send(event)
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			w.logger.Warn("Failed to read changed file", "path", rel, "error", err)
			continue
		}

		newHash := ContentHash(content)
		oldHash, hadHash := w.GetHash(rel)
		if hadHash && oldHash == newHash {
			continue
		}
		w.SetHash(rel, newHash)

		if op.Has(fsnotify.Create) || !hadHash {
			event.Op = OpCreate
		} else {
			event.Op = OpModify
		}
		w.send(event)
	}
}

// send delivers an event without blocking; full channels drop the
// event and bump the counter.
func (w *Watcher) send(event Event) {
	select {
	case w.events <- event:
	default:
		dropped := w.dropped.Add(1)
		w.logger.Warn("Event channel full, dropping event",
			"path", event.Path,
			"total_dropped", dropped)
	}
}

// relPath returns the slash-separated path relative to the root, so
// event paths line up with Loader source keys.
func (w *Watcher) relPath(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// inExcludedDir reports whether any element of the relative path is an
// excluded directory name.
func (w *Watcher) inExcludedDir(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if w.excludes[part] {
			return true
		}
	}
	return false
}

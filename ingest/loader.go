// Package ingest brings source material into the toolkit: text files
// loaded from a directory tree, web pages fetched and converted to
// markdown, and a directory watcher that reports file changes as they
// happen. Document uids are derived deterministically from source keys
// (relative path or URL), so ingesting the same source twice yields the
// same document and annotation ids.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/semtext/document"
	"github.com/c360studio/semtext/ident"
	"github.com/c360studio/semtext/operation"
	"github.com/c360studio/semtext/prov"
)

// ContentHash computes the SHA-256 hash of content as a hex string.
// Used to detect whether a source actually changed between loads.
func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// Config holds text file loader configuration.
type Config struct {
	// Root is the directory scanned for documents.
	Root string `yaml:"root"`

	// Pattern is the glob selecting files under Root. Supports ** for
	// recursive matching.
	Pattern string `yaml:"pattern,omitempty"`
}

// DefaultConfig returns the default loader settings.
func DefaultConfig() Config {
	return Config{
		Pattern: "**/*.txt",
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("Root must not be empty")
	}
	if c.Pattern == "" {
		return fmt.Errorf("Pattern must not be empty")
	}
	if !doublestar.ValidatePattern(c.Pattern) {
		return fmt.Errorf("invalid glob pattern %q", c.Pattern)
	}
	return nil
}

// Loader builds text documents from files under a root directory.
// Document uids are derived from the file path relative to the root,
// so the same file always becomes the same document. The loader keeps
// a content hash per file and skips files that have not changed since
// the previous Load.
type Loader struct {
	config Config
	hashes map[string]string
	desc   operation.Description
	tracer *prov.Tracer
}

// New creates a loader with the given configuration.
// Returns an error if the configuration is invalid.
func New(cfg Config) (*Loader, error) {
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultConfig().Pattern
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	desc := operation.NewDescription("TextLoader", map[string]any{
		"root":    cfg.Root,
		"pattern": cfg.Pattern,
	})
	return &Loader{
		config: cfg,
		hashes: make(map[string]string),
		desc:   desc,
	}, nil
}

// MustNew creates a loader, panicking on invalid config.
// Use for known-good configurations.
func MustNew(cfg Config) *Loader {
	l, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return l
}

// Description returns the loader's operation description.
func (l *Loader) Description() operation.Description {
	return l.desc
}

// SetProvTracer makes the loader record the provenance of every raw
// text segment it produces. Loaded documents have no traced inputs, so
// their provenance carries the loader operation and no sources.
func (l *Loader) SetProvTracer(tracer *prov.Tracer) {
	l.tracer = tracer
}

// Discover returns the absolute paths of all files matching the
// configured pattern under the root, sorted.
func (l *Loader) Discover() ([]string, error) {
	if _, err := os.Stat(l.config.Root); err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(l.config.Root, l.config.Pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", l.config.Pattern, err)
	}

	var paths []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		paths = append(paths, match)
	}
	sort.Strings(paths)
	return paths, nil
}

// Load scans the root and returns a document for every matching file
// whose content changed since the previous Load. The first Load
// returns every matching file.
func (l *Loader) Load() ([]*document.TextDocument, error) {
	paths, err := l.Discover()
	if err != nil {
		return nil, err
	}

	var docs []*document.TextDocument
	for _, path := range paths {
		key, err := l.sourceKey(path)
		if err != nil {
			return nil, err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}

		hash := ContentHash(content)
		if l.hashes[key] == hash {
			continue
		}

		doc, err := l.build(key, content, hash)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// LoadFile loads a single file under the root into a document,
// regardless of whether its content changed. Used by watch loops that
// already know the file needs reloading.
func (l *Loader) LoadFile(path string) (*document.TextDocument, error) {
	key, err := l.sourceKey(path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return l.build(key, content, ContentHash(content))
}

// Hashes returns a copy of the per-file content hashes recorded so
// far, keyed by slash-separated path relative to the root. Used to
// seed a watcher so already-loaded files do not fire change events.
func (l *Loader) Hashes() map[string]string {
	hashes := make(map[string]string, len(l.hashes))
	for k, v := range l.hashes {
		hashes[k] = v
	}
	return hashes
}

// sourceKey derives the stable document key for a file: its path
// relative to the root, slash-separated so keys match across
// platforms.
func (l *Loader) sourceKey(path string) (string, error) {
	rel, err := filepath.Rel(l.config.Root, path)
	if err != nil {
		return "", fmt.Errorf("relativize %s: %w", path, err)
	}
	return filepath.ToSlash(rel), nil
}

func (l *Loader) build(key string, content []byte, hash string) (*document.TextDocument, error) {
	doc := document.NewWithID(ident.Deterministic(key), string(content))
	doc.Metadata = map[string]any{
		"path":   key,
		"sha256": hash,
	}
	l.hashes[key] = hash

	if l.tracer != nil {
		if err := l.tracer.AddProv(doc.Raw(), l.desc, nil); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// Package config provides configuration loading and management for
// Semtext.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/semtext/ingest"
)

// Config is the complete Semtext configuration.
type Config struct {
	Ingest   ingest.Config      `yaml:"ingest"`
	Watch    ingest.WatchConfig `yaml:"watch"`
	Fetch    ingest.FetchConfig `yaml:"fetch"`
	Pipeline PipelineConfig     `yaml:"pipeline"`
	NATS     NATSConfig         `yaml:"nats"`
	Export   ExportConfig       `yaml:"export"`
}

// PipelineConfig configures the annotation pipeline.
type PipelineConfig struct {
	// Definition is the path to a pipeline definition YAML file
	// (empty = built-in default pipeline).
	Definition string `yaml:"definition"`
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	// URL is the NATS server URL (empty = run offline, without
	// persistence or graph publishing).
	URL string `yaml:"url"`
}

// ExportConfig configures the artifacts written after a run.
type ExportConfig struct {
	// Dir is the directory artifacts are written to.
	Dir string `yaml:"dir"`

	// Formats lists the artifacts to write: "jsonl" for annotated
	// documents, "dot" for the provenance graph.
	Formats []string `yaml:"formats"`

	// MaxDotDepth limits composite operation expansion in the dot
	// artifact: 0 collapses every composite to a single edge, negative
	// expands fully.
	MaxDotDepth int `yaml:"max_dot_depth"`
}

// WantsFormat reports whether the named artifact format is enabled.
func (e ExportConfig) WantsFormat(format string) bool {
	for _, f := range e.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Ingest: ingest.DefaultConfig(),
		Watch:  ingest.DefaultWatchConfig(),
		Fetch:  ingest.DefaultFetchConfig(),
		Export: ExportConfig{
			Dir:         "semtext-out",
			Formats:     []string{"jsonl", "dot"},
			MaxDotDepth: -1,
		},
	}
}

// Validate checks that the configuration is valid. The ingest root is
// only checked when set, since commands that do not scan a directory
// run without one.
func (c *Config) Validate() error {
	if c.Ingest.Root != "" {
		if err := c.Ingest.Validate(); err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
	}
	if err := c.Fetch.Validate(); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if c.Export.Dir == "" {
		return fmt.Errorf("export.dir is required")
	}
	for _, f := range c.Export.Formats {
		switch f {
		case "jsonl", "dot":
		default:
			return fmt.Errorf("unknown export format: %s", f)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file, starting from
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence
// for non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Ingest
	if other.Ingest.Root != "" {
		c.Ingest.Root = other.Ingest.Root
	}
	if other.Ingest.Pattern != "" {
		c.Ingest.Pattern = other.Ingest.Pattern
	}

	// Watch
	if other.Watch.Enabled {
		c.Watch.Enabled = true
	}
	if other.Watch.DebounceDelay != "" {
		c.Watch.DebounceDelay = other.Watch.DebounceDelay
	}
	if len(other.Watch.FileExtensions) > 0 {
		c.Watch.FileExtensions = other.Watch.FileExtensions
	}
	if len(other.Watch.ExcludeDirs) > 0 {
		c.Watch.ExcludeDirs = other.Watch.ExcludeDirs
	}

	// Fetch
	if other.Fetch.FetchTimeout != "" {
		c.Fetch.FetchTimeout = other.Fetch.FetchTimeout
	}
	if other.Fetch.MaxContentSize != 0 {
		c.Fetch.MaxContentSize = other.Fetch.MaxContentSize
	}
	if other.Fetch.UserAgent != "" {
		c.Fetch.UserAgent = other.Fetch.UserAgent
	}

	// Pipeline
	if other.Pipeline.Definition != "" {
		c.Pipeline.Definition = other.Pipeline.Definition
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	// Export
	if other.Export.Dir != "" {
		c.Export.Dir = other.Export.Dir
	}
	if len(other.Export.Formats) > 0 {
		c.Export.Formats = other.Export.Formats
	}
	if other.Export.MaxDotDepth != 0 {
		c.Export.MaxDotDepth = other.Export.MaxDotDepth
	}
}

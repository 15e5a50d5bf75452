// Package segment provides rule-based sentence segmentation with span
// tracking.
package segment

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/semtext/document"
	"github.com/c360studio/semtext/operation"
	"github.com/c360studio/semtext/pipeline"
	"github.com/c360studio/semtext/prov"
)

func init() {
	err := pipeline.RegisterOperation("sentence-tokenizer", func(params *yaml.Node) (pipeline.Processor, error) {
		cfg := DefaultConfig()
		if params != nil {
			if err := params.Decode(&cfg); err != nil {
				return nil, fmt.Errorf("sentence-tokenizer params: %w", err)
			}
		}
		return New(cfg)
	})
	if err != nil {
		panic(fmt.Sprintf("failed to register sentence-tokenizer: %v", err))
	}
}

// Config holds sentence tokenizer configuration.
type Config struct {
	// OutputLabel is the label of the produced sentence segments.
	OutputLabel string `yaml:"output_label,omitempty"`

	// PunctChars is the set of characters treated as end punctuation.
	PunctChars string `yaml:"punct_chars,omitempty"`

	// KeepPunct keeps the end punctuation in the sentence text.
	KeepPunct bool `yaml:"keep_punct,omitempty"`
}

// DefaultConfig returns the default tokenizer settings.
func DefaultConfig() Config {
	return Config{
		OutputLabel: "SENTENCE",
		PunctChars:  "\r\n.;?!",
		KeepPunct:   false,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.OutputLabel == "" {
		return fmt.Errorf("OutputLabel must not be empty")
	}
	if c.PunctChars == "" {
		return fmt.Errorf("PunctChars must not be empty")
	}
	return nil
}

// Tokenizer splits text segments into sentence segments on end
// punctuation. Sentences without a closing punctuation character are
// not emitted.
type Tokenizer struct {
	config  Config
	pattern *regexp.Regexp
	desc    operation.Description
	tracer  *prov.Tracer
}

// New creates a tokenizer with the given configuration.
// Returns an error if the configuration is invalid.
func New(cfg Config) (*Tokenizer, error) {
	if cfg.OutputLabel == "" && cfg.PunctChars == "" {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pattern, err := regexp.Compile(`(?P<blanks> *)(?P<sentence>.+?)(?P<punct>[` + charClass(cfg.PunctChars) + `]+)`)
	if err != nil {
		return nil, fmt.Errorf("compile sentence pattern: %w", err)
	}

	desc := operation.NewDescription("SentenceTokenizer", map[string]any{
		"output_label": cfg.OutputLabel,
		"punct_chars":  cfg.PunctChars,
		"keep_punct":   cfg.KeepPunct,
	})
	return &Tokenizer{config: cfg, pattern: pattern, desc: desc}, nil
}

// MustNew creates a tokenizer, panicking on invalid config.
// Use for known-good configurations.
func MustNew(cfg Config) *Tokenizer {
	t, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return t
}

// NewDefault creates a tokenizer with default configuration.
func NewDefault() *Tokenizer {
	return MustNew(DefaultConfig())
}

// Description returns the tokenizer's operation description.
func (t *Tokenizer) Description() operation.Description {
	return t.desc
}

// SetProvTracer makes the tokenizer record the provenance of every
// sentence it produces.
func (t *Tokenizer) SetProvTracer(tracer *prov.Tracer) {
	t.tracer = tracer
}

// Process returns the sentences detected in the input segments, as one
// output list.
func (t *Tokenizer) Process(inputs ...[]*document.Segment) ([][]*document.Segment, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("sentence tokenizer: got %d inputs, want 1", len(inputs))
	}

	var sentences []*document.Segment
	for _, seg := range inputs[0] {
		for _, sentence := range t.tokenize(seg) {
			sentences = append(sentences, sentence)
			if t.tracer != nil {
				if err := t.tracer.AddProv(sentence, t.desc, []prov.Identifiable{seg}); err != nil {
					return nil, err
				}
			}
		}
	}
	return [][]*document.Segment{sentences}, nil
}

func (t *Tokenizer) tokenize(seg *document.Segment) []*document.Segment {
	sentenceIdx := t.pattern.SubexpIndex("sentence")
	punctIdx := t.pattern.SubexpIndex("punct")

	var sentences []*document.Segment
	for _, match := range t.pattern.FindAllStringSubmatchIndex(seg.Text, -1) {
		start := match[2*sentenceIdx]
		end := match[2*sentenceIdx+1]
		// Skip blank and punctuation-only fragments.
		if !hasContent(seg.Text[start:end]) {
			continue
		}
		if t.config.KeepPunct {
			end = match[2*punctIdx+1]
		}

		span := document.NewSpan(start, end).Shift(seg.Span.Start)
		sentences = append(sentences, document.NewSegment(t.config.OutputLabel, seg.Text[start:end], span))
	}
	return sentences
}

// hasContent reports whether s contains at least one letter or digit.
func hasContent(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// charClass escapes chars for use inside a regexp character class.
func charClass(chars string) string {
	var b strings.Builder
	for _, r := range chars {
		switch r {
		case '-', ']', '\\', '^':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

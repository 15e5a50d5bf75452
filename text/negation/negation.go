// Package negation flags text segments that express a negation with a
// boolean attribute.
package negation

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
	err := pipeline.RegisterOperation("negation-detector", func(params *yaml.Node) (pipeline.Processor, error) {
		cfg := DefaultConfig()
		if params != nil {
			if err := params.Decode(&cfg); err != nil {
				return nil, fmt.Errorf("negation-detector params: %w", err)
			}
		}
		return New(cfg)
	})
	if err != nil {
		panic(fmt.Sprintf("failed to register negation-detector: %v", err))
	}
}

// Rule describes one negation cue.
type Rule struct {
	// Regexp is the pattern revealing a negation.
	Regexp string `yaml:"regexp"`

	// ExclusionRegexps veto the rule in a segment when any of them
	// matches the segment text.
	ExclusionRegexps []string `yaml:"exclusion_regexps,omitempty"`

	// CaseSensitive disables the default case-insensitive matching.
	CaseSensitive bool `yaml:"case_sensitive,omitempty"`
}

// Validate checks if the rule is usable.
func (r Rule) Validate() error {
	if r.Regexp == "" {
		return fmt.Errorf("rule has no regexp")
	}
	return nil
}

// DefaultRules returns negation cues for English clinical text.
func DefaultRules() []Rule {
	return []Rule{
		{Regexp: `\bno\b`, ExclusionRegexps: []string{`\bno doubt\b`}},
		{Regexp: `\bnot\b`},
		{Regexp: `\bwithout\b`},
		{Regexp: `\bdenies\b`},
		{Regexp: `\bdenied\b`},
		{Regexp: `\bnegative for\b`},
		{Regexp: `\bfree of\b`},
		{Regexp: `\babsence of\b`},
		{Regexp: `\bruled out\b`, ExclusionRegexps: []string{
			`\bcannot be ruled out\b`,
			`\bnot (?:been )?ruled out\b`,
		}},
	}
}

// Config holds negation detector configuration.
type Config struct {
	// OutputLabel is the label of the attribute added to each segment.
	OutputLabel string `yaml:"output_label,omitempty"`

	// Rules are the negation cues to try, first match wins. When
	// empty, DefaultRules is used.
	Rules []Rule `yaml:"rules,omitempty"`
}

// DefaultConfig returns the default detector settings.
func DefaultConfig() Config {
	return Config{
		OutputLabel: "is_negated",
		Rules:       DefaultRules(),
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.OutputLabel == "" {
		return fmt.Errorf("OutputLabel must not be empty")
	}
	for i, rule := range c.Rules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return nil
}

type compiledRule struct {
	pattern   *regexp.Regexp
	exclusion *regexp.Regexp
}

// Detector adds a boolean attribute to every processed segment telling
// whether its text expresses a negation. Segments should be
// sentence-sized so the cue applies to the whole segment. Segments
// containing no letter are left untouched.
type Detector struct {
	config Config
	rules  []compiledRule
	desc   operation.Description
	tracer *prov.Tracer
}

// New creates a detector with the given configuration.
// Returns an error if the configuration is invalid.
func New(cfg Config) (*Detector, error) {
	if cfg.OutputLabel == "" && len(cfg.Rules) == 0 {
		cfg = DefaultConfig()
	}
	if len(cfg.Rules) == 0 {
		cfg.Rules = DefaultRules()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rules := make([]compiledRule, 0, len(cfg.Rules))
	for i, rule := range cfg.Rules {
		cr, err := compileRule(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, cr)
	}

	desc := operation.NewDescription("NegationDetector", map[string]any{
		"output_label": cfg.OutputLabel,
		"rules":        len(cfg.Rules),
	})
	return &Detector{config: cfg, rules: rules, desc: desc}, nil
}

// MustNew creates a detector, panicking on invalid config.
// Use for known-good configurations.
func MustNew(cfg Config) *Detector {
	d, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return d
}

// NewDefault creates a detector with default configuration.
func NewDefault() *Detector {
	return MustNew(DefaultConfig())
}

func compileRule(rule Rule) (compiledRule, error) {
	var cr compiledRule
	var err error
	cr.pattern, err = compile(rule.Regexp, rule.CaseSensitive)
	if err != nil {
		return cr, fmt.Errorf("compile regexp: %w", err)
	}
	if len(rule.ExclusionRegexps) > 0 {
		// All exclusions join into one alternation.
		parts := make([]string, 0, len(rule.ExclusionRegexps))
		for _, expr := range rule.ExclusionRegexps {
			parts = append(parts, "(?:"+expr+")")
		}
		cr.exclusion, err = compile(strings.Join(parts, "|"), rule.CaseSensitive)
		if err != nil {
			return cr, fmt.Errorf("compile exclusion regexps: %w", err)
		}
	}
	return cr, nil
}

func compile(expr string, caseSensitive bool) (*regexp.Regexp, error) {
	if !caseSensitive {
		expr = "(?i)" + expr
	}
	return regexp.Compile(expr)
}

// Description returns the detector's operation description.
func (d *Detector) Description() operation.Description {
	return d.desc
}

// SetProvTracer makes the detector record the provenance of every
// attribute it produces.
func (d *Detector) SetProvTracer(tracer *prov.Tracer) {
	d.tracer = tracer
}

// Process adds a negation attribute to each input segment in place.
// It produces no output segments.
func (d *Detector) Process(inputs ...[]*document.Segment) ([][]*document.Segment, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("negation detector: got %d inputs, want 1", len(inputs))
	}

	for _, seg := range inputs[0] {
		if !hasLetter(seg.Text) {
			continue
		}

		attr := document.NewAttribute(d.config.OutputLabel, d.detect(seg.Text))
		seg.AddAttr(attr)
		if d.tracer != nil {
			if err := d.tracer.AddProv(attr, d.desc, []prov.Identifiable{seg}); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

// detect reports whether the first matching non-excluded rule sees a
// negation in text.
func (d *Detector) detect(text string) bool {
	for _, cr := range d.rules {
		if !cr.pattern.MatchString(text) {
			continue
		}
		if cr.exclusion != nil && cr.exclusion.MatchString(text) {
			continue
		}
		return true
	}
	return false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

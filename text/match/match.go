// Package match provides regexp-based entity matching over text
// segments.
package match

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/semtext/document"
	"github.com/c360studio/semtext/operation"
	"github.com/c360studio/semtext/pipeline"
	"github.com/c360studio/semtext/prov"
)

func init() {
	err := pipeline.RegisterOperation("regexp-matcher", func(params *yaml.Node) (pipeline.Processor, error) {
		var cfg struct {
			Rules []Rule `yaml:"rules"`
		}
		if params != nil {
			if err := params.Decode(&cfg); err != nil {
				return nil, fmt.Errorf("regexp-matcher params: %w", err)
			}
		}
		return New(cfg.Rules)
	})
	if err != nil {
		panic(fmt.Sprintf("failed to register regexp-matcher: %v", err))
	}
}

// Rule describes one entity pattern.
type Rule struct {
	// Label is the label given to matched entities.
	Label string `yaml:"label"`

	// Regexp is the pattern searched in segment text.
	Regexp string `yaml:"regexp"`

	// ExclusionRegexp discards all of the rule's matches in a segment
	// when it matches anywhere in the segment text.
	ExclusionRegexp string `yaml:"exclusion_regexp,omitempty"`

	// CaseSensitive disables the default case-insensitive matching.
	CaseSensitive bool `yaml:"case_sensitive,omitempty"`
}

// Validate checks if the rule is usable.
func (r Rule) Validate() error {
	if r.Label == "" {
		return fmt.Errorf("rule has no label")
	}
	if r.Regexp == "" {
		return fmt.Errorf("rule %q has no regexp", r.Label)
	}
	return nil
}

type compiledRule struct {
	label     string
	pattern   *regexp.Regexp
	exclusion *regexp.Regexp
}

// Matcher finds entities in text segments by matching configurable
// regexp rules. Each match becomes a segment labeled with the rule's
// label. Matching is case-insensitive unless a rule says otherwise.
type Matcher struct {
	rules  []compiledRule
	desc   operation.Description
	tracer *prov.Tracer
}

// New creates a matcher from the given rules.
// Returns an error if a rule is invalid or does not compile.
func New(rules []Rule) (*Matcher, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("regexp matcher: no rules")
	}

	compiled := make([]compiledRule, 0, len(rules))
	labels := make([]string, 0, len(rules))
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("regexp matcher: %w", err)
		}

		cr := compiledRule{label: rule.Label}
		var err error
		cr.pattern, err = compile(rule.Regexp, rule.CaseSensitive)
		if err != nil {
			return nil, fmt.Errorf("rule %q: compile regexp: %w", rule.Label, err)
		}
		if rule.ExclusionRegexp != "" {
			cr.exclusion, err = compile(rule.ExclusionRegexp, rule.CaseSensitive)
			if err != nil {
				return nil, fmt.Errorf("rule %q: compile exclusion regexp: %w", rule.Label, err)
			}
		}
		compiled = append(compiled, cr)
		labels = append(labels, rule.Label)
	}

	desc := operation.NewDescription("RegexpMatcher", map[string]any{
		"rule_labels": labels,
	})
	return &Matcher{rules: compiled, desc: desc}, nil
}

// MustNew creates a matcher, panicking on invalid rules.
// Use for known-good rule sets.
func MustNew(rules []Rule) *Matcher {
	m, err := New(rules)
	if err != nil {
		panic(err)
	}
	return m
}

func compile(expr string, caseSensitive bool) (*regexp.Regexp, error) {
	if !caseSensitive {
		expr = "(?i)" + expr
	}
	return regexp.Compile(expr)
}

// Description returns the matcher's operation description.
func (m *Matcher) Description() operation.Description {
	return m.desc
}

// SetProvTracer makes the matcher record the provenance of every
// entity it produces.
func (m *Matcher) SetProvTracer(tracer *prov.Tracer) {
	m.tracer = tracer
}

// Process returns the entities matched in the input segments, as one
// output list.
func (m *Matcher) Process(inputs ...[]*document.Segment) ([][]*document.Segment, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("regexp matcher: got %d inputs, want 1", len(inputs))
	}

	var entities []*document.Segment
	for _, seg := range inputs[0] {
		for _, entity := range m.findMatches(seg) {
			entities = append(entities, entity)
			if m.tracer != nil {
				if err := m.tracer.AddProv(entity, m.desc, []prov.Identifiable{seg}); err != nil {
					return nil, err
				}
			}
		}
	}
	return [][]*document.Segment{entities}, nil
}

func (m *Matcher) findMatches(seg *document.Segment) []*document.Segment {
	var entities []*document.Segment
	for _, cr := range m.rules {
		// The exclusion pattern vetoes the whole segment for this
		// rule, wherever it matches.
		if cr.exclusion != nil && cr.exclusion.MatchString(seg.Text) {
			continue
		}
		for _, loc := range cr.pattern.FindAllStringIndex(seg.Text, -1) {
			span := document.NewSpan(loc[0], loc[1]).Shift(seg.Span.Start)
			entities = append(entities, document.NewSegment(cr.label, seg.Text[loc[0]:loc[1]], span))
		}
	}
	return entities
}

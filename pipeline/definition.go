package pipeline

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/semtext/document"
)

// StepDefinition declares one pipeline step: which registered
// operation to run, the keys it reads and writes, and its
// operation-specific params.
type StepDefinition struct {
	Operation  string    `yaml:"operation"`
	InputKeys  []string  `yaml:"input_keys"`
	OutputKeys []string  `yaml:"output_keys,omitempty"`
	Params     yaml.Node `yaml:"params,omitempty"`
}

// Definition is the YAML form of a pipeline. Steps run in declaration
// order; a step's output key feeds every later step using the same
// string as an input key.
type Definition struct {
	Name       string   `yaml:"name,omitempty"`
	InputKeys  []string `yaml:"input_keys"`
	OutputKeys []string `yaml:"output_keys"`

	// InputLabels maps pipeline input keys to the annotation labels
	// feeding them when running over documents. Keys without an entry
	// read the document's raw text.
	InputLabels map[string][]string `yaml:"input_labels,omitempty"`

	Steps []StepDefinition `yaml:"steps"`
}

// LoadDefinition reads a pipeline definition from a YAML file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline definition: %w", err)
	}
	return ParseDefinition(data)
}

// ParseDefinition parses a YAML pipeline definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse pipeline definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks that every step names a registered operation and
// declares its input keys. Key wiring between steps is checked at run
// time, when data is looked up.
func (d *Definition) Validate() error {
	if len(d.Steps) == 0 {
		return fmt.Errorf("pipeline definition has no steps")
	}
	for i, step := range d.Steps {
		if step.Operation == "" {
			return fmt.Errorf("step %d: operation is required", i)
		}
		if _, ok := operationFactories[step.Operation]; !ok {
			return fmt.Errorf("step %d: unknown operation %q (registered: %s)",
				i, step.Operation, strings.Join(RegisteredOperations(), ", "))
		}
		if len(step.InputKeys) == 0 {
			return fmt.Errorf("step %d (%s): input_keys is required", i, step.Operation)
		}
	}
	return nil
}

// Compile builds a runnable pipeline from the definition.
func (d *Definition) Compile() (*Pipeline, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	steps := make([]Step, 0, len(d.Steps))
	for i, sd := range d.Steps {
		factory := operationFactories[sd.Operation]
		var params *yaml.Node
		if sd.Params.Kind != 0 {
			params = &sd.Params
		}
		op, err := factory(params)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, sd.Operation, err)
		}
		steps = append(steps, Step{
			Operation:  op,
			InputKeys:  sd.InputKeys,
			OutputKeys: sd.OutputKeys,
		})
	}
	return New(d.Name, steps, d.InputKeys, d.OutputKeys)
}

// DocLabels returns the annotation labels feeding each pipeline input
// key when running over documents, defaulting to the document's raw
// text for keys without explicit labels.
func (d *Definition) DocLabels() map[string][]string {
	labels := make(map[string][]string, len(d.InputKeys))
	for _, key := range d.InputKeys {
		if v := d.InputLabels[key]; len(v) > 0 {
			labels[key] = v
		} else {
			labels[key] = []string{document.RawLabel}
		}
	}
	return labels
}

// Package pipeline chains annotation operations into composite
// operations. Steps are wired together by string keys: a step's output
// key feeds every later step using the same string as an input key. A
// Pipeline is itself a Processor, so pipelines nest as steps of other
// pipelines, and its internal provenance is recorded under its own
// operation id as a sub-tracer.
package pipeline

import (
	"fmt"
	"slices"
	"time"

	"github.com/c360studio/semtext/document"
	"github.com/c360studio/semtext/operation"
	"github.com/c360studio/semtext/prov"
)

// Processor is the processing interface pipeline steps are wired
// through: one segment list per input key in, one segment list per
// output key out. Operations mutating their inputs in place, such as
// attribute adders, return no output lists.
type Processor interface {
	operation.Operation
	Process(inputs ...[]*document.Segment) ([][]*document.Segment, error)
}

// Step connects one operation to the rest of a pipeline. InputKeys
// names, in operation input order, the key each input is read from.
// OutputKeys names the key each output is stored under, and is empty
// for operations that modify their inputs in place.
type Step struct {
	Operation  Processor
	InputKeys  []string
	OutputKeys []string
}

// Pipeline runs a sequence of steps, feeding each step from the data
// recorded under its input keys. Steps run in the order they were
// given; there is no dependency resolution.
type Pipeline struct {
	desc       operation.Description
	steps      []Step
	inputKeys  []string
	outputKeys []string

	tracer    *prov.Tracer
	subTracer *prov.Tracer
	metrics   *Metrics
}

// New creates a pipeline from steps. inputKeys names, in order, the
// keys the pipeline's own inputs are stored under before the first
// step runs; outputKeys names the keys the pipeline's outputs are
// collected from. The name is used in the pipeline's operation
// description and defaults to "Pipeline".
func New(name string, steps []Step, inputKeys, outputKeys []string) (*Pipeline, error) {
	if name == "" {
		name = "Pipeline"
	}
	for i, step := range steps {
		if step.Operation == nil {
			return nil, fmt.Errorf("pipeline %s: step %d has no operation", name, i)
		}
	}
	return &Pipeline{
		desc:       operation.NewDescription(name, nil),
		steps:      steps,
		inputKeys:  slices.Clone(inputKeys),
		outputKeys: slices.Clone(outputKeys),
	}, nil
}

// Description returns the pipeline's operation description.
func (p *Pipeline) Description() operation.Description {
	return p.desc
}

// InputKeys returns the pipeline's input keys, in input order.
func (p *Pipeline) InputKeys() []string {
	return slices.Clone(p.inputKeys)
}

// OutputKeys returns the pipeline's output keys, in output order.
func (p *Pipeline) OutputKeys() []string {
	return slices.Clone(p.outputKeys)
}

// SetProvTracer makes the pipeline record provenance into tracer. The
// pipeline creates a sub-tracer sharing the tracer's store, hands it
// to every provenance-capable step, and registers it under its own
// operation id when Process completes.
func (p *Pipeline) SetProvTracer(tracer *prov.Tracer) {
	p.tracer = tracer
	p.subTracer = prov.NewTracerWithStore(tracer.Store())
	for _, step := range p.steps {
		if aware, ok := step.Operation.(prov.Aware); ok {
			aware.SetProvTracer(p.subTracer)
		}
	}
}

// SetMetrics makes the pipeline report run counts and durations.
func (p *Pipeline) SetMetrics(metrics *Metrics) {
	p.metrics = metrics
}

// Process implements Processor: run all steps on the given inputs, one
// segment list per pipeline input key, and return one segment list per
// pipeline output key.
func (p *Pipeline) Process(inputs ...[]*document.Segment) ([][]*document.Segment, error) {
	start := time.Now()
	outputs, err := p.process(inputs)
	if p.metrics != nil {
		p.metrics.observeRun(p.desc.Name, time.Since(start), outputs, err)
	}
	return outputs, err
}

func (p *Pipeline) process(inputs [][]*document.Segment) ([][]*document.Segment, error) {
	if len(inputs) != len(p.inputKeys) {
		return nil, fmt.Errorf("pipeline %s: got %d inputs for %d input keys", p.desc.Name, len(inputs), len(p.inputKeys))
	}

	dataByKey := make(map[string][]*document.Segment, len(p.inputKeys))
	for i, key := range p.inputKeys {
		dataByKey[key] = slices.Clone(inputs[i])
	}

	for _, step := range p.steps {
		if err := p.runStep(step, dataByKey); err != nil {
			return nil, err
		}
	}

	outputs := make([][]*document.Segment, len(p.outputKeys))
	for i, key := range p.outputKeys {
		data, err := p.dataForKey(key, dataByKey)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", p.desc.Name, err)
		}
		outputs[i] = data
	}

	if p.tracer != nil {
		if err := p.tracer.AddProvFromSubTracer(p.provOutputs(outputs), p.desc, p.subTracer); err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", p.desc.Name, err)
		}
	}

	return outputs, nil
}

func (p *Pipeline) runStep(step Step, dataByKey map[string][]*document.Segment) error {
	name := step.Operation.Description().Name

	stepInputs := make([][]*document.Segment, len(step.InputKeys))
	for i, key := range step.InputKeys {
		data, err := p.dataForKey(key, dataByKey)
		if err != nil {
			return fmt.Errorf("step %s: %w", name, err)
		}
		stepInputs[i] = data
	}

	stepOutputs, err := step.Operation.Process(stepInputs...)
	if err != nil {
		return fmt.Errorf("step %s: %w", name, err)
	}
	if len(stepOutputs) != len(step.OutputKeys) {
		return fmt.Errorf("step %s: got %d outputs for %d output keys", name, len(stepOutputs), len(step.OutputKeys))
	}

	for i, key := range step.OutputKeys {
		dataByKey[key] = append(dataByKey[key], stepOutputs[i]...)
	}
	return nil
}

func (p *Pipeline) dataForKey(key string, dataByKey map[string][]*document.Segment) ([]*document.Segment, error) {
	data, ok := dataByKey[key]
	if ok {
		return data, nil
	}
	for _, step := range p.steps {
		if slices.Contains(step.OutputKeys, key) {
			return nil, fmt.Errorf("no data for key %s: were the steps added in execution order?", key)
		}
	}
	return nil, fmt.Errorf("no data for key %s", key)
}

// provOutputs gathers the items to register as the pipeline's outputs:
// everything under its output keys, plus items produced inside the
// pipeline that no step consumed and no output key exposes. The latter
// are typically attributes attached in place to existing segments:
// without them the outer tracer would never hear about those items.
func (p *Pipeline) provOutputs(outputs [][]*document.Segment) []prov.Identifiable {
	var items []prov.Identifiable
	seen := make(map[string]bool)
	for _, segs := range outputs {
		for _, seg := range segs {
			if seen[seg.UID()] {
				continue
			}
			seen[seg.UID()] = true
			items = append(items, seg)
		}
	}

	for _, n := range p.subTracer.Graph().ListNodes() {
		if n.IsStub() || len(n.DerivedIDs) > 0 || seen[n.DataItemID] {
			continue
		}
		item, ok := p.subTracer.Store().GetItem(n.DataItemID)
		if !ok {
			continue
		}
		seen[n.DataItemID] = true
		items = append(items, item)
	}
	return items
}

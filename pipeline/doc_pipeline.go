package pipeline

import (
	"fmt"

	"github.com/c360studio/semtext/document"
	"github.com/c360studio/semtext/operation"
	"github.com/c360studio/semtext/prov"
)

// DocPipeline runs a pipeline over documents: input annotations are
// retrieved from each document by label and output annotations are
// attached back to it. The typical setup feeds the document's raw text
// segment into the pipeline's first input key:
//
//	dp, err := pipeline.NewDocPipeline(p, map[string][]string{
//		"full_text": {document.RawLabel},
//	})
type DocPipeline struct {
	desc             operation.Description
	pipeline         *Pipeline
	labelsByInputKey map[string][]string
}

// NewDocPipeline wraps a pipeline for running over documents.
// labelsByInputKey gives, for each pipeline input key, the annotation
// labels whose segments feed that input.
func NewDocPipeline(p *Pipeline, labelsByInputKey map[string][]string) (*DocPipeline, error) {
	for _, key := range p.InputKeys() {
		if len(labelsByInputKey[key]) == 0 {
			return nil, fmt.Errorf("doc pipeline: no labels for input key %s", key)
		}
	}
	return &DocPipeline{
		desc:             operation.NewDescription("DocPipeline", nil),
		pipeline:         p,
		labelsByInputKey: labelsByInputKey,
	}, nil
}

// Description returns the doc pipeline's operation description.
func (dp *DocPipeline) Description() operation.Description {
	return dp.desc
}

// SetProvTracer makes the wrapped pipeline record provenance into
// tracer.
func (dp *DocPipeline) SetProvTracer(tracer *prov.Tracer) {
	dp.pipeline.SetProvTracer(tracer)
}

// Run runs the pipeline on each document in turn, attaching all output
// annotations to the document they were derived from.
func (dp *DocPipeline) Run(docs []*document.TextDocument) error {
	for _, doc := range docs {
		if err := dp.runOnDoc(doc); err != nil {
			return fmt.Errorf("doc %s: %w", doc.UID(), err)
		}
	}
	return nil
}

func (dp *DocPipeline) runOnDoc(doc *document.TextDocument) error {
	inputKeys := dp.pipeline.InputKeys()
	inputs := make([][]*document.Segment, len(inputKeys))
	for i, key := range inputKeys {
		for _, label := range dp.labelsByInputKey[key] {
			inputs[i] = append(inputs[i], doc.Anns().Get(label)...)
		}
	}

	outputs, err := dp.pipeline.Process(inputs...)
	if err != nil {
		return err
	}

	for _, segs := range outputs {
		for _, seg := range segs {
			if err := doc.Anns().Add(seg); err != nil {
				return err
			}
		}
	}
	return nil
}

package prov_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semtext/operation"
	"github.com/c360studio/semtext/prov"
	"github.com/c360studio/semtext/prov/provtest"
)

// prefixerWrapper is a composite operation running a single prefixer
// against its own sub-tracer.
type prefixerWrapper struct {
	t        testing.TB
	desc     operation.Description
	tracer   *prov.Tracer
	sub      *prov.Tracer
	prefixer *provtest.Prefixer
}

func newPrefixerWrapper(t testing.TB, tracer *prov.Tracer) *prefixerWrapper {
	sub := prov.NewTracerWithStore(tracer.Store())
	return &prefixerWrapper{
		t:        t,
		desc:     operation.NewDescription("PrefixerWrapper", nil),
		tracer:   tracer,
		sub:      sub,
		prefixer: provtest.NewPrefixer(t, sub),
	}
}

func (w *prefixerWrapper) run(items []*provtest.TextItem) []*provtest.TextItem {
	outputs := w.prefixer.Prefix(items)
	require.NoError(w.t, w.tracer.AddProvFromSubTracer(provtest.AsItems(outputs...), w.desc, w.sub))
	return outputs
}

func TestSubTracerSingleOperation(t *testing.T) {
	tracer := prov.NewTracer()
	wrapper := newPrefixerWrapper(t, tracer)
	inputs := provtest.TextItems(2)
	outputs := wrapper.run(inputs)

	require.NoError(t, tracer.CheckSanity())

	// Outer provenance: one flat edge per output, attributed to the
	// wrapper operation.
	require.Len(t, tracer.ListProvs(), len(inputs)+len(outputs))
	for i, input := range inputs {
		p, err := tracer.GetProv(input.UID())
		require.NoError(t, err)
		assert.Same(t, input, p.DataItem)
		assert.Nil(t, p.OpDesc)
		assert.Empty(t, p.SourceItems)
		assert.Equal(t, provtest.AsItems(outputs[i]), p.DerivedItems)

		p, err = tracer.GetProv(outputs[i].UID())
		require.NoError(t, err)
		assert.Same(t, outputs[i], p.DataItem)
		require.NotNil(t, p.OpDesc)
		assert.Equal(t, wrapper.desc, *p.OpDesc)
		assert.Equal(t, provtest.AsItems(input), p.SourceItems)
		assert.Empty(t, p.DerivedItems)
	}

	// Inner provenance: the full derivation, attributed to the inner
	// prefixer.
	assert.True(t, tracer.HasSubTracer(wrapper.desc.UID))
	require.Len(t, tracer.ListSubTracers(), 1)
	sub, err := tracer.GetSubTracer(wrapper.desc.UID)
	require.NoError(t, err)
	require.Len(t, sub.ListProvs(), len(inputs)+len(outputs))

	for i, input := range inputs {
		p, err := sub.GetProv(input.UID())
		require.NoError(t, err)
		assert.Nil(t, p.OpDesc)
		assert.Equal(t, provtest.AsItems(outputs[i]), p.DerivedItems)

		p, err = sub.GetProv(outputs[i].UID())
		require.NoError(t, err)
		require.NotNil(t, p.OpDesc)
		assert.Equal(t, wrapper.prefixer.Description(), *p.OpDesc)
		assert.Equal(t, provtest.AsItems(input), p.SourceItems)
	}
}

// doublePrefixerWrapper is a composite operation chaining two
// prefixers, returning only the output of the second one.
type doublePrefixerWrapper struct {
	t         testing.TB
	desc      operation.Description
	tracer    *prov.Tracer
	sub       *prov.Tracer
	prefixer1 *provtest.Prefixer
	prefixer2 *provtest.Prefixer
}

func newDoublePrefixerWrapper(t testing.TB, tracer *prov.Tracer) *doublePrefixerWrapper {
	sub := prov.NewTracerWithStore(tracer.Store())
	return &doublePrefixerWrapper{
		t:         t,
		desc:      operation.NewDescription("DoublePrefixerWrapper", nil),
		tracer:    tracer,
		sub:       sub,
		prefixer1: provtest.NewPrefixer(t, sub),
		prefixer2: provtest.NewPrefixer(t, sub),
	}
}

func (w *doublePrefixerWrapper) run(items []*provtest.TextItem) []*provtest.TextItem {
	intermediate := w.prefixer1.Prefix(items)
	outputs := w.prefixer2.Prefix(intermediate)
	require.NoError(w.t, w.tracer.AddProvFromSubTracer(provtest.AsItems(outputs...), w.desc, w.sub))
	return outputs
}

func TestSubTracerIntermediateOperation(t *testing.T) {
	tracer := prov.NewTracer()
	wrapper := newDoublePrefixerWrapper(t, tracer)
	inputs := provtest.TextItems(2)
	outputs := wrapper.run(inputs)

	require.NoError(t, tracer.CheckSanity())

	// Outer provenance skips the intermediate items entirely.
	require.Len(t, tracer.ListProvs(), len(inputs)+len(outputs))
	for i, input := range inputs {
		p, err := tracer.GetProv(input.UID())
		require.NoError(t, err)
		assert.Equal(t, provtest.AsItems(outputs[i]), p.DerivedItems)

		p, err = tracer.GetProv(outputs[i].UID())
		require.NoError(t, err)
		require.NotNil(t, p.OpDesc)
		assert.Equal(t, wrapper.desc, *p.OpDesc)
		assert.Equal(t, provtest.AsItems(input), p.SourceItems)
	}

	// Inner provenance keeps the two-hop chain.
	sub, err := tracer.GetSubTracer(wrapper.desc.UID)
	require.NoError(t, err)
	require.Len(t, sub.ListProvs(), len(inputs)+2*len(outputs))

	for i, input := range inputs {
		assert.True(t, sub.HasProv(input.UID()))

		p, err := sub.GetProv(outputs[i].UID())
		require.NoError(t, err)
		require.NotNil(t, p.OpDesc)
		assert.Equal(t, wrapper.prefixer2.Description(), *p.OpDesc)
		require.Len(t, p.SourceItems, 1)
		intermediate := p.SourceItems[0]

		p, err = sub.GetProv(intermediate.UID())
		require.NoError(t, err)
		require.NotNil(t, p.OpDesc)
		assert.Equal(t, wrapper.prefixer1.Description(), *p.OpDesc)
		assert.Equal(t, provtest.AsItems(input), p.SourceItems)
		assert.Equal(t, []prov.Identifiable{outputs[i]}, p.DerivedItems)

		p, err = sub.GetProv(input.UID())
		require.NoError(t, err)
		assert.Equal(t, []prov.Identifiable{intermediate}, p.DerivedItems)
	}
}

// prefixerMergerWrapper is a composite operation prefixing all inputs
// then merging them into a single output.
type prefixerMergerWrapper struct {
	t        testing.TB
	desc     operation.Description
	tracer   *prov.Tracer
	sub      *prov.Tracer
	prefixer *provtest.Prefixer
	merger   *provtest.Merger
}

func newPrefixerMergerWrapper(t testing.TB, tracer *prov.Tracer) *prefixerMergerWrapper {
	sub := prov.NewTracerWithStore(tracer.Store())
	return &prefixerMergerWrapper{
		t:        t,
		desc:     operation.NewDescription("PrefixerMergerWrapper", nil),
		tracer:   tracer,
		sub:      sub,
		prefixer: provtest.NewPrefixer(t, sub),
		merger:   provtest.NewMerger(t, sub),
	}
}

func (w *prefixerMergerWrapper) run(items []*provtest.TextItem) *provtest.TextItem {
	intermediate := w.prefixer.Prefix(items)
	output := w.merger.Merge(intermediate)
	require.NoError(w.t, w.tracer.AddProvFromSubTracer(provtest.AsItems(output), w.desc, w.sub))
	return output
}

func TestSubTracerMultiInputOperation(t *testing.T) {
	tracer := prov.NewTracer()
	wrapper := newPrefixerMergerWrapper(t, tracer)
	inputs := provtest.TextItems(2)
	output := wrapper.run(inputs)

	require.NoError(t, tracer.CheckSanity())

	require.Len(t, tracer.ListProvs(), len(inputs)+1)
	p, err := tracer.GetProv(output.UID())
	require.NoError(t, err)
	require.NotNil(t, p.OpDesc)
	assert.Equal(t, wrapper.desc, *p.OpDesc)
	// The flat edge reaches through the merger and the prefixer down to
	// the wrapper's own inputs.
	assert.Equal(t, provtest.AsItems(inputs...), p.SourceItems)

	sub, err := tracer.GetSubTracer(wrapper.desc.UID)
	require.NoError(t, err)
	require.Len(t, sub.ListProvs(), 2*len(inputs)+1)

	merged, err := sub.GetProv(output.UID())
	require.NoError(t, err)
	require.NotNil(t, merged.OpDesc)
	assert.Equal(t, wrapper.merger.Description(), *merged.OpDesc)
	require.Len(t, merged.SourceItems, len(inputs))

	for i, prefixed := range merged.SourceItems {
		p, err := sub.GetProv(prefixed.UID())
		require.NoError(t, err)
		require.NotNil(t, p.OpDesc)
		assert.Equal(t, wrapper.prefixer.Description(), *p.OpDesc)
		assert.Equal(t, provtest.AsItems(inputs[i]), p.SourceItems)
	}
}

// splitterPrefixerWrapper is a composite operation splitting each input
// in two then prefixing every piece.
type splitterPrefixerWrapper struct {
	t        testing.TB
	desc     operation.Description
	tracer   *prov.Tracer
	sub      *prov.Tracer
	splitter *provtest.Splitter
	prefixer *provtest.Prefixer
}

func newSplitterPrefixerWrapper(t testing.TB, tracer *prov.Tracer) *splitterPrefixerWrapper {
	sub := prov.NewTracerWithStore(tracer.Store())
	return &splitterPrefixerWrapper{
		t:        t,
		desc:     operation.NewDescription("SplitterPrefixerWrapper", nil),
		tracer:   tracer,
		sub:      sub,
		splitter: provtest.NewSplitter(t, sub),
		prefixer: provtest.NewPrefixer(t, sub),
	}
}

func (w *splitterPrefixerWrapper) run(items []*provtest.TextItem) []*provtest.TextItem {
	intermediate := w.splitter.Split(items)
	outputs := w.prefixer.Prefix(intermediate)
	require.NoError(w.t, w.tracer.AddProvFromSubTracer(provtest.AsItems(outputs...), w.desc, w.sub))
	return outputs
}

func TestSubTracerMultiOutputOperation(t *testing.T) {
	tracer := prov.NewTracer()
	wrapper := newSplitterPrefixerWrapper(t, tracer)
	inputs := provtest.TextItems(2)
	outputs := wrapper.run(inputs)
	require.Len(t, outputs, 2*len(inputs))

	require.NoError(t, tracer.CheckSanity())

	require.Len(t, tracer.ListProvs(), len(inputs)+len(outputs))
	for i, output := range outputs {
		input := inputs[i/2]
		p, err := tracer.GetProv(output.UID())
		require.NoError(t, err)
		require.NotNil(t, p.OpDesc)
		assert.Equal(t, wrapper.desc, *p.OpDesc)
		assert.Equal(t, provtest.AsItems(input), p.SourceItems)
	}

	sub, err := tracer.GetSubTracer(wrapper.desc.UID)
	require.NoError(t, err)
	require.Len(t, sub.ListProvs(), len(inputs)+2*len(outputs))

	for i, output := range outputs {
		input := inputs[i/2]

		p, err := sub.GetProv(output.UID())
		require.NoError(t, err)
		require.NotNil(t, p.OpDesc)
		assert.Equal(t, wrapper.prefixer.Description(), *p.OpDesc)
		require.Len(t, p.SourceItems, 1)

		split := p.SourceItems[0]
		p, err = sub.GetProv(split.UID())
		require.NoError(t, err)
		require.NotNil(t, p.OpDesc)
		assert.Equal(t, wrapper.splitter.Description(), *p.OpDesc)
		assert.Equal(t, provtest.AsItems(input), p.SourceItems)
	}
}

// branchedPrefixerWrapper is a composite operation returning both the
// prefixed items and the re-prefixed items derived from them.
type branchedPrefixerWrapper struct {
	t         testing.TB
	desc      operation.Description
	tracer    *prov.Tracer
	sub       *prov.Tracer
	prefixer1 *provtest.Prefixer
	prefixer2 *provtest.Prefixer
}

func newBranchedPrefixerWrapper(t testing.TB, tracer *prov.Tracer) *branchedPrefixerWrapper {
	sub := prov.NewTracerWithStore(tracer.Store())
	return &branchedPrefixerWrapper{
		t:         t,
		desc:      operation.NewDescription("BranchedPrefixerWrapper", nil),
		tracer:    tracer,
		sub:       sub,
		prefixer1: provtest.NewPrefixer(t, sub),
		prefixer2: provtest.NewPrefixer(t, sub),
	}
}

func (w *branchedPrefixerWrapper) run(items []*provtest.TextItem) ([]*provtest.TextItem, []*provtest.TextItem) {
	prefixed := w.prefixer1.Prefix(items)
	doublePrefixed := w.prefixer2.Prefix(prefixed)

	outputs := append(provtest.AsItems(prefixed...), provtest.AsItems(doublePrefixed...)...)
	require.NoError(w.t, w.tracer.AddProvFromSubTracer(outputs, w.desc, w.sub))
	return prefixed, doublePrefixed
}

func TestSubTracerOperationReusingOutput(t *testing.T) {
	// Two outputs, the second derived from the first: every item gets
	// exactly one node at the outer level, both attributed to the
	// wrapper and flattened down to the original inputs.
	tracer := prov.NewTracer()
	wrapper := newBranchedPrefixerWrapper(t, tracer)
	inputs := provtest.TextItems(2)
	prefixed, doublePrefixed := wrapper.run(inputs)

	require.NoError(t, tracer.CheckSanity())

	require.Len(t, tracer.ListProvs(), len(inputs)+len(prefixed)+len(doublePrefixed))
	for i, input := range inputs {
		p, err := tracer.GetProv(prefixed[i].UID())
		require.NoError(t, err)
		require.NotNil(t, p.OpDesc)
		assert.Equal(t, wrapper.desc, *p.OpDesc)
		assert.Equal(t, provtest.AsItems(input), p.SourceItems)

		p, err = tracer.GetProv(doublePrefixed[i].UID())
		require.NoError(t, err)
		require.NotNil(t, p.OpDesc)
		assert.Equal(t, wrapper.desc, *p.OpDesc)
		assert.Equal(t, provtest.AsItems(input), p.SourceItems)
	}

	sub, err := tracer.GetSubTracer(wrapper.desc.UID)
	require.NoError(t, err)
	require.Len(t, sub.ListProvs(), len(inputs)+len(prefixed)+len(doublePrefixed))

	for i, input := range inputs {
		p, err := sub.GetProv(prefixed[i].UID())
		require.NoError(t, err)
		assert.Equal(t, wrapper.prefixer1.Description(), *p.OpDesc)
		assert.Equal(t, provtest.AsItems(input), p.SourceItems)

		p, err = sub.GetProv(doublePrefixed[i].UID())
		require.NoError(t, err)
		assert.Equal(t, wrapper.prefixer2.Description(), *p.OpDesc)
		assert.Equal(t, provtest.AsItems(prefixed[i]), p.SourceItems)
	}
}

func TestSubTracerConsecutiveCalls(t *testing.T) {
	// The same composite operation invoked once per batch accumulates
	// into a single sub-graph.
	tracer := prov.NewTracer()
	wrapper := newDoublePrefixerWrapper(t, tracer)

	inputs1 := provtest.TextItems(2)
	outputs1 := wrapper.run(inputs1)
	inputs2 := provtest.TextItems(2)
	outputs2 := wrapper.run(inputs2)

	require.NoError(t, tracer.CheckSanity())

	nbInputs := len(inputs1) + len(inputs2)
	nbOutputs := len(outputs1) + len(outputs2)
	require.Len(t, tracer.ListProvs(), nbInputs+nbOutputs)
	require.Len(t, tracer.ListSubTracers(), 1)

	sub, err := tracer.GetSubTracer(wrapper.desc.UID)
	require.NoError(t, err)
	require.Len(t, sub.ListProvs(), nbInputs+2*nbOutputs)
}

// nestedWrapper is a composite operation made of two composite
// operations, each run on the same inputs.
type nestedWrapper struct {
	t           testing.TB
	desc        operation.Description
	tracer      *prov.Tracer
	sub         *prov.Tracer
	subWrapper1 *doublePrefixerWrapper
	subWrapper2 *doublePrefixerWrapper
}

func newNestedWrapper(t testing.TB, tracer *prov.Tracer) *nestedWrapper {
	sub := prov.NewTracerWithStore(tracer.Store())
	return &nestedWrapper{
		t:           t,
		desc:        operation.NewDescription("NestedWrapper", nil),
		tracer:      tracer,
		sub:         sub,
		subWrapper1: newDoublePrefixerWrapper(t, sub),
		subWrapper2: newDoublePrefixerWrapper(t, sub),
	}
}

func (w *nestedWrapper) run(items []*provtest.TextItem) []*provtest.TextItem {
	outputs := w.subWrapper1.run(items)
	outputs = append(outputs, w.subWrapper2.run(items)...)
	require.NoError(w.t, w.tracer.AddProvFromSubTracer(provtest.AsItems(outputs...), w.desc, w.sub))
	return outputs
}

func TestSubTracerNested(t *testing.T) {
	tracer := prov.NewTracer()
	wrapper := newNestedWrapper(t, tracer)
	inputs := provtest.TextItems(2)
	outputs := wrapper.run(inputs)

	require.NoError(t, tracer.CheckSanity())

	input := inputs[0]
	output := outputs[0]

	// Outer level: attributed to the nested wrapper.
	p, err := tracer.GetProv(output.UID())
	require.NoError(t, err)
	require.NotNil(t, p.OpDesc)
	assert.Equal(t, wrapper.desc, *p.OpDesc)
	assert.Equal(t, provtest.AsItems(input), p.SourceItems)

	// One level down: attributed to the first inner wrapper.
	require.Len(t, tracer.ListSubTracers(), 1)
	sub, err := tracer.GetSubTracer(wrapper.desc.UID)
	require.NoError(t, err)
	p, err = sub.GetProv(output.UID())
	require.NoError(t, err)
	require.NotNil(t, p.OpDesc)
	assert.Equal(t, wrapper.subWrapper1.desc, *p.OpDesc)
	assert.Equal(t, provtest.AsItems(input), p.SourceItems)

	// Two levels down: the full chain of both inner prefixers.
	require.Len(t, sub.ListSubTracers(), 2)
	subSub, err := sub.GetSubTracer(wrapper.subWrapper1.desc.UID)
	require.NoError(t, err)
	p, err = subSub.GetProv(output.UID())
	require.NoError(t, err)
	require.NotNil(t, p.OpDesc)
	assert.Equal(t, wrapper.subWrapper1.prefixer2.Description(), *p.OpDesc)
	require.Len(t, p.SourceItems, 1)

	intermediate := p.SourceItems[0]
	p, err = subSub.GetProv(intermediate.UID())
	require.NoError(t, err)
	require.NotNil(t, p.OpDesc)
	assert.Equal(t, wrapper.subWrapper1.prefixer1.Description(), *p.OpDesc)
	assert.Equal(t, provtest.AsItems(input), p.SourceItems)
}

func TestSubTracerDiamondLeafOnce(t *testing.T) {
	// An output whose derivation fans out and back in (split then
	// merge) must list the shared leaf input only once.
	tracer := prov.NewTracer()
	sub := prov.NewTracerWithStore(tracer.Store())
	splitter := provtest.NewSplitter(t, sub)
	merger := provtest.NewMerger(t, sub)

	input := provtest.NewTextItem("Hello world")
	split := splitter.Split([]*provtest.TextItem{input})
	merged := merger.Merge(split)

	desc := operation.NewDescription("SplitterMergerWrapper", nil)
	require.NoError(t, tracer.AddProvFromSubTracer(provtest.AsItems(merged), desc, sub))

	require.NoError(t, tracer.CheckSanity())

	p, err := tracer.GetProv(merged.UID())
	require.NoError(t, err)
	assert.Equal(t, provtest.AsItems(input), p.SourceItems)
}

func TestSubTracerRepeatedOutputsSameOp(t *testing.T) {
	// Passing outputs that were already integrated on a previous call
	// is a no-op, not an error.
	tracer := prov.NewTracer()
	sub := prov.NewTracerWithStore(tracer.Store())
	prefixer := provtest.NewPrefixer(t, sub)

	inputs := provtest.TextItems(2)
	outputs := prefixer.Prefix(inputs)

	desc := operation.NewDescription("PrefixerWrapper", nil)
	require.NoError(t, tracer.AddProvFromSubTracer(provtest.AsItems(outputs...), desc, sub))
	require.NoError(t, tracer.AddProvFromSubTracer(provtest.AsItems(outputs...), desc, sub))

	require.NoError(t, tracer.CheckSanity())
	require.Len(t, tracer.ListProvs(), len(inputs)+len(outputs))
}

func TestSubTracerOpMismatch(t *testing.T) {
	tracer := prov.NewTracer()
	sub := prov.NewTracerWithStore(tracer.Store())
	prefixer := provtest.NewPrefixer(t, sub)

	inputs := provtest.TextItems(1)
	outputs := prefixer.Prefix(inputs)

	// The output is already attributed to another operation at the
	// outer level.
	other := operation.NewDescription("Other", nil)
	require.NoError(t, tracer.AddProv(outputs[0], other, nil))

	desc := operation.NewDescription("PrefixerWrapper", nil)
	err := tracer.AddProvFromSubTracer(provtest.AsItems(outputs...), desc, sub)
	require.Error(t, err)
	assert.ErrorIs(t, err, prov.ErrOpMismatch)
}

func TestSubTracerCompletesStub(t *testing.T) {
	// An output only known to the outer tracer as the source of some
	// other item gets its stub completed instead of rejected.
	tracer := prov.NewTracer()

	shared := provtest.NewTextItem("shared")
	downstream := provtest.NewTextItem("downstream")
	consumer := operation.NewDescription("Consumer", nil)
	require.NoError(t, tracer.AddProv(downstream, consumer, provtest.AsItems(shared)))

	sub := prov.NewTracerWithStore(tracer.Store())
	prefixer := provtest.NewPrefixer(t, sub)
	origin := prefixer.Prefix(provtest.TextItems(1))
	inner := operation.NewDescription("Inner", nil)
	require.NoError(t, sub.AddProv(shared, inner, provtest.AsItems(origin...)))

	desc := operation.NewDescription("Producer", nil)
	require.NoError(t, tracer.AddProvFromSubTracer(provtest.AsItems(shared), desc, sub))

	require.NoError(t, tracer.CheckSanity())

	p, err := tracer.GetProv(shared.UID())
	require.NoError(t, err)
	require.NotNil(t, p.OpDesc)
	assert.Equal(t, desc, *p.OpDesc)
	assert.Equal(t, provtest.AsItems(downstream), p.DerivedItems)
}

func TestSubTracerOwnStore(t *testing.T) {
	tracer := prov.NewTracer()
	sub := prov.NewTracer()
	prefixer := provtest.NewPrefixer(t, sub)
	outputs := prefixer.Prefix(provtest.TextItems(1))

	desc := operation.NewDescription("PrefixerWrapper", nil)
	err := tracer.AddProvFromSubTracer(provtest.AsItems(outputs...), desc, sub)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "its own store")
}

func TestSubTracerUntracedOutput(t *testing.T) {
	tracer := prov.NewTracer()
	sub := prov.NewTracerWithStore(tracer.Store())
	prefixer := provtest.NewPrefixer(t, sub)
	prefixer.Prefix(provtest.TextItems(1))

	// This item never went through the sub-tracer.
	stranger := provtest.NewTextItem("stranger")

	desc := operation.NewDescription("PrefixerWrapper", nil)
	err := tracer.AddProvFromSubTracer(provtest.AsItems(stranger), desc, sub)
	require.Error(t, err)
	assert.ErrorIs(t, err, prov.ErrUntracedOutput)
}

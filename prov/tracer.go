package prov

import (
	"fmt"

	"github.com/c360studio/semtext/operation"
)

// Aware is implemented by operations able to record the provenance of
// the items they produce. Composite operations receiving a tracer are
// expected to create their own sub-tracer from its store and register
// it through AddProvFromSubTracer.
type Aware interface {
	SetProvTracer(tracer *Tracer)
}

// Prov is the provenance information for one data item, with
// identifiers resolved back to live objects through the tracer's store.
// DataItem or any source/derived entry may be nil if the store cannot
// resolve the id; OpDesc is nil when the derivation is unknown.
type Prov struct {
	DataItem     Identifiable
	OpDesc       *operation.Description
	SourceItems  []Identifiable
	DerivedItems []Identifiable
}

// Tracer gathers provenance for everything produced during one pipeline
// run. Leaf operations call AddProv once per item they produce.
// Composite operations (pipelines) run their inner operations against
// their own sub-tracer, then call AddProvFromSubTracer so the caller
// sees one flat edge per output while the full internal derivation
// stays available through GetSubTracer.
//
// A tracer owns its graph exclusively; nested sub-tracers share the
// item store but never the graph. Like the graph, a tracer is meant to
// be used from a single goroutine.
type Tracer struct {
	store Store
	graph *Graph
}

// NewTracer creates a tracer with a fresh in-memory store.
func NewTracer() *Tracer {
	return NewTracerWithStore(NewMemStore())
}

// NewTracerWithStore creates a tracer recording items into the given
// store. A composite operation's inner tracer must be created with its
// outer tracer's store.
func NewTracerWithStore(store Store) *Tracer {
	return &Tracer{store: store, graph: NewGraph()}
}

// Store returns the item store shared by this tracer and its
// sub-tracers.
func (t *Tracer) Store() Store {
	return t.store
}

// Graph returns the underlying provenance graph, for export tooling.
func (t *Tracer) Graph() *Graph {
	return t.graph
}

// AddProv records that item was produced by the described operation
// from the given source items. Called by leaf operations once per
// produced item; recording the same item twice returns ErrDuplicate.
func (t *Tracer) AddProv(item Identifiable, opDesc operation.Description, sources []Identifiable) error {
	t.store.SetItem(item)
	t.store.SetOp(opDesc)

	sourceIDs := make([]string, len(sources))
	for i, source := range sources {
		t.store.SetItem(source)
		sourceIDs[i] = source.UID()
	}

	if err := t.graph.AddNode(item.UID(), opDesc.UID, sourceIDs); err != nil {
		return fmt.Errorf("add prov: %w", err)
	}
	return nil
}

// AddProvFromSubTracer integrates the provenance gathered by a
// composite operation's own sub-tracer. The sub-tracer's graph is
// attached (or merged, on repeated calls) as a sub-graph under the
// composite's operation id. Then each output item gets one flat node in
// this tracer's graph: produced by the composite operation, derived
// from the sub-tracer's leaf inputs, which are the items the composite
// received from this scope. Outputs should not include internal
// intermediate items.
//
// Output items already recorded here are left untouched when they are
// attributed to the same composite operation (repeated calls with
// overlapping outputs are safe); an item attributed to a different
// operation returns ErrOpMismatch.
func (t *Tracer) AddProvFromSubTracer(outputs []Identifiable, opDesc operation.Description, sub *Tracer) error {
	if sub.store != t.store {
		return fmt.Errorf("add prov from sub-tracer of %s: sub-tracer has its own store", opDesc.Name)
	}
	t.store.SetOp(opDesc)
	t.graph.AddSubGraph(opDesc.UID, sub.graph)

	for _, output := range outputs {
		uid := output.UID()
		if t.graph.HasNode(uid) {
			n, err := t.graph.GetNode(uid)
			if err != nil {
				return err
			}
			if !n.IsStub() {
				// Can happen with attributes copied from one
				// annotation to another, or on a repeated call.
				if n.OpID() != opDesc.UID {
					return fmt.Errorf("output %s: %w", uid, ErrOpMismatch)
				}
				continue
			}
			// An output that this scope already saw as a source of
			// something else: complete the stub instead of erroring.
		}
		if err := t.liftOutput(uid, opDesc.UID, sub.graph); err != nil {
			return err
		}
	}
	return nil
}

// liftOutput records the flat outer edge for one output of a composite
// operation: breadth-first walk of the sub-graph's source edges down to
// its stub nodes, which are the leaf inputs the composite received from
// its caller.
func (t *Tracer) liftOutput(dataItemID, opID string, sub *Graph) error {
	if !sub.HasNode(dataItemID) {
		return fmt.Errorf("output %s: %w", dataItemID, ErrUntracedOutput)
	}

	var sourceIDs []string
	seen := map[string]bool{dataItemID: true}
	queue := []string{dataItemID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		n, err := sub.GetNode(id)
		if err != nil {
			return fmt.Errorf("output %s: %w", dataItemID, err)
		}
		if n.IsStub() {
			sourceIDs = append(sourceIDs, id)
			continue
		}
		for _, sourceID := range n.SourceIDs() {
			if seen[sourceID] {
				continue
			}
			seen[sourceID] = true
			queue = append(queue, sourceID)
		}
	}

	if err := t.graph.AddNode(dataItemID, opID, sourceIDs); err != nil {
		return fmt.Errorf("output %s: %w", dataItemID, err)
	}
	return nil
}

// HasProv reports whether this tracer recorded provenance for a data
// item. Items known only to a sub-tracer are not considered.
func (t *Tracer) HasProv(dataItemID string) bool {
	return t.graph.HasNode(dataItemID)
}

// GetProv returns the provenance recorded for a data item.
func (t *Tracer) GetProv(dataItemID string) (Prov, error) {
	n, err := t.graph.GetNode(dataItemID)
	if err != nil {
		return Prov{}, err
	}
	return t.provFromNode(n), nil
}

// ListProvs returns provenance for every data item known to this
// tracer, in recording order, without descending into sub-tracers.
func (t *Tracer) ListProvs() []Prov {
	nodes := t.graph.ListNodes()
	provs := make([]Prov, 0, len(nodes))
	for _, n := range nodes {
		provs = append(provs, t.provFromNode(n))
	}
	return provs
}

// HasSubTracer reports whether a composite operation registered its
// internal provenance with this tracer. Only direct children count.
func (t *Tracer) HasSubTracer(opID string) bool {
	return t.graph.HasSubGraph(opID)
}

// GetSubTracer returns a tracer wrapping the internal provenance of a
// composite operation, sharing this tracer's store.
func (t *Tracer) GetSubTracer(opID string) (*Tracer, error) {
	sub, err := t.graph.GetSubGraph(opID)
	if err != nil {
		return nil, err
	}
	return &Tracer{store: t.store, graph: sub}, nil
}

// ListSubTracers returns tracers for all directly nested composite
// operations, in registration order.
func (t *Tracer) ListSubTracers() []*Tracer {
	subs := t.graph.ListSubGraphs()
	tracers := make([]*Tracer, 0, len(subs))
	for _, sub := range subs {
		tracers = append(tracers, &Tracer{store: t.store, graph: sub})
	}
	return tracers
}

// CheckSanity verifies the structural invariants of the underlying
// graph and all nested sub-graphs. Advisory: meant for tests and
// debugging, not for the recording hot path.
func (t *Tracer) CheckSanity() error {
	return t.graph.CheckSanity()
}

func (t *Tracer) provFromNode(n Node) Prov {
	var p Prov
	p.DataItem, _ = t.store.GetItem(n.DataItemID)
	if !n.IsStub() {
		if desc, ok := t.store.GetOp(n.OpID()); ok {
			p.OpDesc = &desc
		}
		for _, id := range n.SourceIDs() {
			item, _ := t.store.GetItem(id)
			p.SourceItems = append(p.SourceItems, item)
		}
	}
	for _, id := range n.DerivedIDs {
		item, _ := t.store.GetItem(id)
		p.DerivedItems = append(p.DerivedItems, item)
	}
	return p
}

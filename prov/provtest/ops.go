// Package provtest provides mock data items and operations for testing
// provenance tracking.
package provtest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/c360studio/semtext/ident"
	"github.com/c360studio/semtext/operation"
	"github.com/c360studio/semtext/prov"
)

// TextItem is a mock data item carrying a piece of text.
type TextItem struct {
	uid  string
	Text string
}

// NewTextItem creates a mock item with a fresh uid.
func NewTextItem(text string) *TextItem {
	return &TextItem{uid: ident.New(), Text: text}
}

// UID implements prov.Identifiable.
func (t *TextItem) UID() string {
	return t.uid
}

// TextItems returns n mock items with predictable texts.
func TextItems(n int) []*TextItem {
	items := make([]*TextItem, n)
	for i := range items {
		items[i] = NewTextItem(fmt.Sprintf("This is the text item number %d.", i))
	}
	return items
}

// AsItems converts mock items to the interface slice the tracer expects.
func AsItems(items ...*TextItem) []prov.Identifiable {
	out := make([]prov.Identifiable, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

// Generator is a mock operation producing items from nothing.
type Generator struct {
	t      testing.TB
	tracer *prov.Tracer
	desc   operation.Description
}

// NewGenerator creates a generator recording provenance into tracer.
func NewGenerator(t testing.TB, tracer *prov.Tracer) *Generator {
	return &Generator{t: t, tracer: tracer, desc: operation.NewDescription("Generator", nil)}
}

// Description returns the operation description.
func (g *Generator) Description() operation.Description {
	return g.desc
}

// Generate produces n fresh items with no sources.
func (g *Generator) Generate(n int) []*TextItem {
	items := TextItems(n)
	for _, item := range items {
		require.NoError(g.t, g.tracer.AddProv(item, g.desc, nil))
	}
	return items
}

// Prefixer is a mock operation producing one prefixed item per input.
type Prefixer struct {
	t      testing.TB
	tracer *prov.Tracer
	desc   operation.Description
}

// NewPrefixer creates a prefixer recording provenance into tracer.
func NewPrefixer(t testing.TB, tracer *prov.Tracer) *Prefixer {
	return &Prefixer{t: t, tracer: tracer, desc: operation.NewDescription("Prefixer", nil)}
}

// Description returns the operation description.
func (p *Prefixer) Description() operation.Description {
	return p.desc
}

// Prefix derives one new item per input.
func (p *Prefixer) Prefix(items []*TextItem) []*TextItem {
	prefixed := make([]*TextItem, 0, len(items))
	for _, item := range items {
		out := NewTextItem("Hello! " + item.Text)
		prefixed = append(prefixed, out)
		require.NoError(p.t, p.tracer.AddProv(out, p.desc, AsItems(item)))
	}
	return prefixed
}

// Splitter is a mock operation producing two halves per input.
type Splitter struct {
	t      testing.TB
	tracer *prov.Tracer
	desc   operation.Description
}

// NewSplitter creates a splitter recording provenance into tracer.
func NewSplitter(t testing.TB, tracer *prov.Tracer) *Splitter {
	return &Splitter{t: t, tracer: tracer, desc: operation.NewDescription("Splitter", nil)}
}

// Description returns the operation description.
func (s *Splitter) Description() operation.Description {
	return s.desc
}

// Split derives two new items per input, left and right half.
func (s *Splitter) Split(items []*TextItem) []*TextItem {
	split := make([]*TextItem, 0, 2*len(items))
	for _, item := range items {
		half := len(item.Text) / 2
		left := NewTextItem(item.Text[:half])
		right := NewTextItem(item.Text[half:])
		split = append(split, left, right)
		require.NoError(s.t, s.tracer.AddProv(left, s.desc, AsItems(item)))
		require.NoError(s.t, s.tracer.AddProv(right, s.desc, AsItems(item)))
	}
	return split
}

// Merger is a mock operation concatenating all inputs into one item.
type Merger struct {
	t      testing.TB
	tracer *prov.Tracer
	desc   operation.Description
}

// NewMerger creates a merger recording provenance into tracer.
func NewMerger(t testing.TB, tracer *prov.Tracer) *Merger {
	return &Merger{t: t, tracer: tracer, desc: operation.NewDescription("Merger", nil)}
}

// Description returns the operation description.
func (m *Merger) Description() operation.Description {
	return m.desc
}

// Merge derives a single item from all inputs, in input order.
func (m *Merger) Merge(items []*TextItem) *TextItem {
	text := ""
	for _, item := range items {
		text += item.Text
	}
	merged := NewTextItem(text)
	require.NoError(m.t, m.tracer.AddProv(merged, m.desc, AsItems(items...)))
	return merged
}

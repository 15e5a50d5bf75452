package document

import (
	"fmt"
)

// AnnotationContainer manages the annotations attached to one document.
// It behaves like an ordered list with label-based lookup. The
// document's auto-generated raw segment is not stored with the other
// annotations but is injected in Get and GetByID calls, so operations
// can consume the full text like any other segment.
type AnnotationContainer struct {
	raw     *Segment
	byID    map[string]*Segment
	order   []string
	byLabel map[string][]string
}

func newAnnotationContainer(raw *Segment) *AnnotationContainer {
	return &AnnotationContainer{
		raw:     raw,
		byID:    make(map[string]*Segment),
		byLabel: make(map[string][]string),
	}
}

// Add attaches an annotation to the document. The raw segment's label
// is reserved and adding the same uid twice is rejected.
func (c *AnnotationContainer) Add(seg *Segment) error {
	if seg.Label == c.raw.Label {
		return fmt.Errorf("add annotation %s: %w", seg.ID, ErrReservedLabel)
	}
	if _, ok := c.byID[seg.ID]; ok {
		return fmt.Errorf("add annotation %s: %w", seg.ID, ErrDuplicate)
	}
	c.byID[seg.ID] = seg
	c.order = append(c.order, seg.ID)
	c.byLabel[seg.Label] = append(c.byLabel[seg.Label], seg.ID)
	return nil
}

// Get returns the annotations carrying the given label, in attachment
// order. Asking for the raw segment's label returns the raw segment.
func (c *AnnotationContainer) Get(label string) []*Segment {
	if label == c.raw.Label {
		return []*Segment{c.raw}
	}
	ids := c.byLabel[label]
	segs := make([]*Segment, 0, len(ids))
	for _, id := range ids {
		segs = append(segs, c.byID[id])
	}
	return segs
}

// GetByID returns the annotation with the given uid, including the raw
// segment.
func (c *AnnotationContainer) GetByID(uid string) (*Segment, error) {
	if uid == c.raw.ID {
		return c.raw, nil
	}
	seg, ok := c.byID[uid]
	if !ok {
		return nil, fmt.Errorf("get annotation %s: %w", uid, ErrNotFound)
	}
	return seg, nil
}

// All returns every annotation in attachment order, without the raw
// segment.
func (c *AnnotationContainer) All() []*Segment {
	segs := make([]*Segment, 0, len(c.order))
	for _, id := range c.order {
		segs = append(segs, c.byID[id])
	}
	return segs
}

// Len returns the number of annotations, without the raw segment.
func (c *AnnotationContainer) Len() int {
	return len(c.order)
}

// Labels returns the distinct annotation labels in first-seen order.
func (c *AnnotationContainer) Labels() []string {
	labels := make([]string, 0, len(c.byLabel))
	seen := make(map[string]bool, len(c.byLabel))
	for _, id := range c.order {
		label := c.byID[id].Label
		if seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	return labels
}

package prov

import "github.com/c360studio/semtext/operation"

// Identifiable is implemented by any data item the provenance graph can
// reference: annotations, attributes and similar artifacts. Items are
// immutable as far as tracing is concerned and identified solely by
// their uid.
type Identifiable interface {
	UID() string
}

// Store resolves identifiers back to data items and operation
// descriptions, for introspection and export. An outer tracer and all
// its nested sub-tracers share one store, so an item traced in a
// sub-pipeline resolves from the outer scope too.
type Store interface {
	SetItem(item Identifiable)
	GetItem(uid string) (Identifiable, bool)
	SetOp(desc operation.Description)
	GetOp(uid string) (operation.Description, bool)
}

// MemStore is the default in-memory Store.
type MemStore struct {
	items map[string]Identifiable
	ops   map[string]operation.Description
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		items: make(map[string]Identifiable),
		ops:   make(map[string]operation.Description),
	}
}

// SetItem records a data item under its uid.
func (s *MemStore) SetItem(item Identifiable) {
	s.items[item.UID()] = item
}

// GetItem returns the data item recorded under uid.
func (s *MemStore) GetItem(uid string) (Identifiable, bool) {
	item, ok := s.items[uid]
	return item, ok
}

// SetOp records an operation description under its uid.
func (s *MemStore) SetOp(desc operation.Description) {
	s.ops[desc.UID] = desc
}

// GetOp returns the operation description recorded under uid.
func (s *MemStore) GetOp(uid string) (operation.Description, bool) {
	desc, ok := s.ops[uid]
	return desc, ok
}

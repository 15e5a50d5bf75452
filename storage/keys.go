// Package storage persists documents and provenance snapshots in NATS
// JetStream key-value buckets, one bucket per entity type.
package storage

import (
	"fmt"
	"strings"

	"github.com/c360studio/semtext/ident"
)

// EntityType represents the type of entity stored in KV.
type EntityType string

const (
	EntityTypeDocument EntityType = "document"
	EntityTypeSnapshot EntityType = "snapshot"
)

// Bucket names for each entity type.
const (
	BucketDocuments = "SEMTEXT_DOCUMENTS"
	BucketSnapshots = "SEMTEXT_PROV_SNAPSHOTS"
)

// EntityID represents a typed entity identifier.
type EntityID struct {
	Type EntityType
	ID   string
}

// String returns the string representation of the entity ID.
func (e EntityID) String() string {
	return fmt.Sprintf("%s:%s", e.Type, e.ID)
}

// ParseEntityID parses an entity ID string into its components.
func ParseEntityID(s string) (EntityID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return EntityID{}, fmt.Errorf("invalid entity ID format: %s", s)
	}
	entityType := EntityType(parts[0])
	switch entityType {
	case EntityTypeDocument, EntityTypeSnapshot:
		return EntityID{Type: entityType, ID: parts[1]}, nil
	default:
		return EntityID{}, fmt.Errorf("unknown entity type: %s", parts[0])
	}
}

// DocumentID wraps a document uid as a typed entity ID.
func DocumentID(uid string) EntityID {
	return EntityID{Type: EntityTypeDocument, ID: uid}
}

// NewSnapshotID generates a fresh snapshot entity ID.
func NewSnapshotID() EntityID {
	return EntityID{Type: EntityTypeSnapshot, ID: ident.New()}
}

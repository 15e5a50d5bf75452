package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semtext/document"
	"github.com/c360studio/semtext/export"
)

// Store provides document and snapshot storage backed by NATS KV.
type Store struct {
	documents jetstream.KeyValue
	snapshots jetstream.KeyValue
}

// NewStore creates a new Store with the given JetStream context.
// It creates the necessary KV buckets if they don't exist.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	documents, err := getOrCreateBucket(ctx, js, BucketDocuments)
	if err != nil {
		return nil, fmt.Errorf("create documents bucket: %w", err)
	}

	snapshots, err := getOrCreateBucket(ctx, js, BucketSnapshots)
	if err != nil {
		return nil, fmt.Errorf("create snapshots bucket: %w", err)
	}

	return &Store{
		documents: documents,
		snapshots: snapshots,
	}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Semtext %s storage", strings.ToLower(name)),
		History:     5,
	})
}

// CreateDocument stores a new document, failing if a document with the
// same uid already exists.
func (s *Store) CreateDocument(ctx context.Context, doc *document.TextDocument) error {
	data, err := marshalDocument(doc)
	if err != nil {
		return err
	}

	if _, err := s.documents.Create(ctx, doc.ID, data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("store document: %w", err)
	}
	return nil
}

// PutDocument stores a document, overwriting any previous version.
// Re-ingesting a changed source lands here: the uid is derived from
// the source key, so the new content replaces the old entry.
func (s *Store) PutDocument(ctx context.Context, doc *document.TextDocument) error {
	data, err := marshalDocument(doc)
	if err != nil {
		return err
	}

	if _, err := s.documents.Put(ctx, doc.ID, data); err != nil {
		return fmt.Errorf("store document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id EntityID) (*document.TextDocument, error) {
	if id.Type != EntityTypeDocument {
		return nil, fmt.Errorf("invalid entity type: expected document, got %s", id.Type)
	}

	entry, err := s.documents.Get(ctx, id.ID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	var record export.DocumentRecord
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return record.Document()
}

// DeleteDocument removes a document. Deleting a missing document is
// not an error.
func (s *Store) DeleteDocument(ctx context.Context, id EntityID) error {
	if id.Type != EntityTypeDocument {
		return fmt.Errorf("invalid entity type: expected document, got %s", id.Type)
	}

	if err := s.documents.Delete(ctx, id.ID); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// ListDocuments returns all stored documents.
func (s *Store) ListDocuments(ctx context.Context) ([]*document.TextDocument, error) {
	keys, err := s.documents.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list document keys: %w", err)
	}

	docs := make([]*document.TextDocument, 0, len(keys))
	for _, key := range keys {
		entry, err := s.documents.Get(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		var record export.DocumentRecord
		if err := json.Unmarshal(entry.Value(), &record); err != nil {
			continue
		}
		doc, err := record.Document()
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// CreateSnapshot stores a provenance snapshot and returns its ID.
func (s *Store) CreateSnapshot(ctx context.Context, snap *Snapshot) (EntityID, error) {
	id := NewSnapshotID()
	snap.ID = id.String()
	snap.CreatedAt = time.Now()

	data, err := json.Marshal(snap)
	if err != nil {
		return EntityID{}, fmt.Errorf("marshal snapshot: %w", err)
	}

	if _, err := s.snapshots.Create(ctx, id.ID, data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return EntityID{}, ErrAlreadyExists
		}
		return EntityID{}, fmt.Errorf("store snapshot: %w", err)
	}
	return id, nil
}

// GetSnapshot retrieves a provenance snapshot by ID.
func (s *Store) GetSnapshot(ctx context.Context, id EntityID) (*Snapshot, error) {
	if id.Type != EntityTypeSnapshot {
		return nil, fmt.Errorf("invalid entity type: expected snapshot, got %s", id.Type)
	}

	entry, err := s.snapshots.Get(ctx, id.ID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(entry.Value(), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// ListSnapshots returns all stored provenance snapshots.
func (s *Store) ListSnapshots(ctx context.Context) ([]*Snapshot, error) {
	keys, err := s.snapshots.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list snapshot keys: %w", err)
	}

	snaps := make([]*Snapshot, 0, len(keys))
	for _, key := range keys {
		entry, err := s.snapshots.Get(ctx, key)
		if err != nil {
			continue
		}
		var snap Snapshot
		if err := json.Unmarshal(entry.Value(), &snap); err != nil {
			continue
		}
		snaps = append(snaps, &snap)
	}
	return snaps, nil
}

func marshalDocument(doc *document.TextDocument) ([]byte, error) {
	data, err := json.Marshal(export.NewDocumentRecord(doc))
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return data, nil
}

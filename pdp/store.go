// pdp/store.go
package pdp

import (
	"context"
	"fmt"
)

// DocumentStore supplies the documents the demo authorizes.
type DocumentStore interface {
	ListDocuments(ctx context.Context) ([]Document, error)
	GetDocument(ctx context.Context, id string) (Document, error)
}

// StaticStore is an in-memory store seeded at startup.
type StaticStore struct {
	docs []Document
}

func NewStaticStore(docs []Document) *StaticStore {
	return &StaticStore{docs: docs}
}

func (s *StaticStore) ListDocuments(ctx context.Context) ([]Document, error) {
	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out, nil
}

func (s *StaticStore) GetDocument(ctx context.Context, id string) (Document, error) {
	for _, doc := range s.docs {
		if doc.ID == id {
			return doc, nil
		}
	}
	return Document{}, fmt.Errorf("document %s not found", id)
}

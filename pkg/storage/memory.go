package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/sw33tLie/metropolis/pkg/itinerary"
)

// MemoryStore keeps documents for the lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*itinerary.Document
	identity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]*itinerary.Document),
		identity: defaultIdentity(),
	}
}

func (m *MemoryStore) Create(ctx context.Context, entries []itinerary.Entry, req itinerary.Request) (*itinerary.Document, error) {
	doc := m.create(entries, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[doc.ID]; exists {
		return nil, fmt.Errorf("identifier collision on %s", doc.ID)
	}
	m.docs[doc.ID] = doc
	return cloneDocument(doc), nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*itinerary.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, itinerary.ErrUnknownDocument
	}
	return cloneDocument(doc), nil
}

func (m *MemoryStore) Replace(ctx context.Context, oldID string, entries []itinerary.Entry, req itinerary.Request) (*itinerary.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.docs[oldID]
	if !ok {
		return nil, itinerary.ErrUnknownDocument
	}
	doc := m.replacement(old, entries, req)
	if _, exists := m.docs[doc.ID]; exists {
		return nil, fmt.Errorf("identifier collision on %s", doc.ID)
	}
	delete(m.docs, oldID)
	m.docs[doc.ID] = doc
	return cloneDocument(doc), nil
}

// Len returns the number of live documents.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryStore) Close() error { return nil }

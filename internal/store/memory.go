package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/clicker-admin/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore keeps collections in process memory. It backs local runs
// with store.driver=memory and the service tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]json.RawMessage)}
}

// Get returns the JSON value at path
func (s *MemoryStore) Get(_ context.Context, path string) (json.RawMessage, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	doc, ok := s.collections[p.Collection][p.Key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrRecordNotFound)
	}

	value, found, err := Lookup(doc, p.Fields)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrRecordNotFound)
	}
	return value, nil
}

// Set overwrites the subtree at path
func (s *MemoryStore) Set(ctx context.Context, path string, value any) error {
	if value == nil {
		return s.Delete(ctx, path)
	}
	p, err := ParsePath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[p.Collection]
	if !ok {
		coll = make(map[string]json.RawMessage)
		s.collections[p.Collection] = coll
	}
	doc, err := Assign(coll[p.Key], p.Fields, value)
	if err != nil {
		return err
	}
	coll[p.Key] = doc
	return nil
}

// Delete removes the subtree at path
func (s *MemoryStore) Delete(_ context.Context, path string) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[p.Collection]
	doc, ok := coll[p.Key]
	if !ok {
		return nil
	}
	rest, keep, err := Remove(doc, p.Fields)
	if err != nil {
		return err
	}
	if keep {
		coll[p.Key] = rest
	} else {
		delete(coll, p.Key)
	}
	return nil
}

// Push appends value under a new time-ordered key
func (s *MemoryStore) Push(ctx context.Context, collection string, value any) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating push key: %w", err)
	}
	key := id.String()
	if err := s.Set(ctx, Join(collection, key), value); err != nil {
		return "", err
	}
	return key, nil
}

// Snapshot returns every document of collection in key order
func (s *MemoryStore) Snapshot(_ context.Context, collection string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.collections[collection]
	docs := make([]Document, 0, len(coll))
	for key, value := range coll {
		docs = append(docs, Document{Key: key, Value: value})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	return docs, nil
}

// Count returns the number of documents in a collection
func (s *MemoryStore) Count(_ context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.collections[collection])), nil
}

// Restore writes documents into a collection, keeping other keys
func (s *MemoryStore) Restore(_ context.Context, collection string, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]json.RawMessage, len(docs))
		s.collections[collection] = coll
	}
	for _, doc := range docs {
		coll[doc.Key] = append(json.RawMessage(nil), doc.Value...)
	}
	return nil
}

package docstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

type MemoryStore struct {
	mu   sync.Mutex
	now  func() time.Time
	docs map[string]map[string]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, docs: make(map[string]map[string]Document)}
}

func (s *MemoryStore) Put(_ context.Context, doc Document) (Document, error) {
	doc, err := normalizeDocument(doc)
	if err != nil {
		return Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.docs[doc.Collection]
	if coll == nil {
		coll = make(map[string]Document)
		s.docs[doc.Collection] = coll
	}
	now := s.now().UTC()
	doc.CreatedAt = now
	if prev, ok := coll[doc.ID]; ok {
		doc.CreatedAt = prev.CreatedAt
	}
	doc.UpdatedAt = now
	doc.Body = slices.Clone(doc.Body)
	coll[doc.ID] = doc
	return copyDocument(doc), nil
}

func (s *MemoryStore) Get(_ context.Context, collection string, id string) (Document, error) {
	collection, id, err := normalizeKey(collection, id)
	if err != nil {
		return Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return copyDocument(doc), nil
}

func (s *MemoryStore) Delete(_ context.Context, collection string, id string) error {
	collection, id, err := normalizeKey(collection, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[collection][id]; !ok {
		return ErrNotFound
	}
	delete(s.docs[collection], id)
	return nil
}

func (s *MemoryStore) List(_ context.Context, collection string, ownerID string) ([]Document, error) {
	collection = strings.TrimSpace(collection)
	ownerID = strings.TrimSpace(ownerID)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Document, 0, len(s.docs[collection]))
	for _, doc := range s.docs[collection] {
		if ownerID != "" && doc.OwnerID != ownerID {
			continue
		}
		out = append(out, copyDocument(doc))
	}
	slices.SortFunc(out, func(a, b Document) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func copyDocument(doc Document) Document {
	doc.Body = slices.Clone(doc.Body)
	return doc
}

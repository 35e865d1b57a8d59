package remote

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store. It backs local development and tests,
// where no external collaborator is available.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]Document // owner/collection -> id -> doc
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]Document)}
}

// HealthCheck always succeeds.
func (s *MemoryStore) HealthCheck(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) bucket(owner, collection string) map[string]Document {
	key := owner + "/" + collection
	b, ok := s.data[key]
	if !ok {
		b = make(map[string]Document)
		s.data[key] = b
	}
	return b
}

// List returns every document under owner/collection, ordered by created_at
// where present.
func (s *MemoryStore) List(ctx context.Context, owner, collection string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.data[owner+"/"+collection]
	docs := make([]Document, 0, len(b))
	for _, doc := range b {
		docs = append(docs, cloneDoc(doc))
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, _ := docs[i]["created_at"].(string)
		bb, _ := docs[j]["created_at"].(string)
		return a < bb
	})
	return docs, nil
}

// Get returns a single document or ErrDocNotFound.
func (s *MemoryStore) Get(ctx context.Context, owner, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.data[owner+"/"+collection][id]
	if !ok {
		return nil, ErrDocNotFound
	}
	return cloneDoc(doc), nil
}

// Set creates or fully replaces a document.
func (s *MemoryStore) Set(ctx context.Context, owner, collection, id string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bucket(owner, collection)[id] = cloneDoc(doc)
	return nil
}

// Merge applies a partial update, nil values clearing fields.
func (s *MemoryStore) Merge(ctx context.Context, owner, collection, id string, fields Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mergeLocked(owner, collection, id, fields)
}

func (s *MemoryStore) mergeLocked(owner, collection, id string, fields Document) error {
	doc, ok := s.data[owner+"/"+collection][id]
	if !ok {
		return ErrDocNotFound
	}
	MergeInto(doc, fields)
	return nil
}

// Delete removes a document.
func (s *MemoryStore) Delete(ctx context.Context, owner, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.data[owner+"/"+collection]
	if _, ok := b[id]; !ok {
		return ErrDocNotFound
	}
	delete(b, id)
	return nil
}

// Batch applies all operations, or none when any merge or delete target is
// missing.
func (s *MemoryStore) Batch(ctx context.Context, owner string, ops []BatchOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate targets up front so the batch stays all-or-nothing.
	for _, op := range ops {
		if op.Kind == BatchSet {
			continue
		}
		if _, ok := s.data[owner+"/"+op.Collection][op.ID]; !ok {
			return ErrDocNotFound
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case BatchSet:
			s.bucket(owner, op.Collection)[op.ID] = cloneDoc(op.Doc)
		case BatchMerge:
			if err := s.mergeLocked(owner, op.Collection, op.ID, op.Doc); err != nil {
				return err
			}
		case BatchDelete:
			delete(s.data[owner+"/"+op.Collection], op.ID)
		}
	}
	return nil
}

func cloneDoc(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

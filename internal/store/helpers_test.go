package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/remote"
)

var errBackendDown = errors.New("backend down")

// flakyStore wraps a working store and fails selected operations.
type flakyStore struct {
	remote.Store
	failSet    bool
	failMerge  bool
	failDelete bool
	failBatch  bool
	failList   bool
}

func (f *flakyStore) List(ctx context.Context, owner, collection string) ([]remote.Document, error) {
	if f.failList {
		return nil, errBackendDown
	}
	return f.Store.List(ctx, owner, collection)
}

func (f *flakyStore) Set(ctx context.Context, owner, collection, id string, doc remote.Document) error {
	if f.failSet {
		return errBackendDown
	}
	return f.Store.Set(ctx, owner, collection, id, doc)
}

func (f *flakyStore) Merge(ctx context.Context, owner, collection, id string, fields remote.Document) error {
	if f.failMerge {
		return errBackendDown
	}
	return f.Store.Merge(ctx, owner, collection, id, fields)
}

func (f *flakyStore) Delete(ctx context.Context, owner, collection, id string) error {
	if f.failDelete {
		return errBackendDown
	}
	return f.Store.Delete(ctx, owner, collection, id)
}

func (f *flakyStore) Batch(ctx context.Context, owner string, ops []remote.BatchOp) error {
	if f.failBatch {
		return errBackendDown
	}
	return f.Store.Batch(ctx, owner, ops)
}

// recordingSink captures published events as "type:entity" strings.
type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSink) Publish(ctx context.Context, eventType, ownerID, entityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType+":"+entityID)
}

func (r *recordingSink) has(want string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == want {
			return true
		}
	}
	return false
}

const testOwner = "owner-1"

func testClock() string { return "2026-01-02T10:00:00Z" }

// newTestStore builds a loaded NodeStore over a flaky in-memory backend.
func newTestStore(t *testing.T) (*NodeStore, *flakyStore, *recordingSink) {
	t.Helper()

	flaky := &flakyStore{Store: remote.NewMemoryStore()}
	sink := &recordingSink{}
	s := NewNodeStore(flaky, zap.NewNop(), WithEvents(sink), WithClock(testClock))
	if err := s.Load(context.Background(), testOwner); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return s, flaky, sink
}

// mustCreate creates a node and fails the test on error.
func mustCreate(t *testing.T, s *NodeStore, draft NodeDraft) string {
	t.Helper()

	id, err := s.Create(context.Background(), draft)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return id
}

// mustLink links child under parent and fails the test on error.
func mustLink(t *testing.T, s *NodeStore, parentID, childID string) {
	t.Helper()

	if err := s.LinkAsChild(context.Background(), parentID, childID); err != nil {
		t.Fatalf("LinkAsChild(%s, %s) error = %v", parentID, childID, err)
	}
}

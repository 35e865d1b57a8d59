// Package store holds the in-memory authoritative node collection for one
// owner and the optimistic-mutation machinery that keeps it reconciled with
// the remote document collaborator.
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/models"
	"github.com/daygraph/daygraph/internal/remote"
)

const collectionNodes = "nodes"

// NodeStore is the canonical, de-duplicated collection of nodes for the
// current owner. Writes apply locally first (or persist first, per
// operation) and reconcile against the remote collaborator; the most recent
// write failure is kept in an observable error slot.
type NodeStore struct {
	mu     sync.Mutex
	remote remote.Store
	logger *zap.Logger
	events EventSink
	now    func() string

	ownerID string
	nodes   []*models.Node
	byID    map[string]*models.Node
	lastErr error
}

// NodeStoreOption configures a NodeStore.
type NodeStoreOption func(*NodeStore)

// WithEvents routes committed-mutation events into sink.
func WithEvents(sink EventSink) NodeStoreOption {
	return func(s *NodeStore) { s.events = sink }
}

// WithClock overrides the timestamp source (tests).
func WithClock(now func() string) NodeStoreOption {
	return func(s *NodeStore) { s.now = now }
}

// NewNodeStore creates a node store backed by the given remote collaborator.
func NewNodeStore(r remote.Store, logger *zap.Logger, opts ...NodeStoreOption) *NodeStore {
	s := &NodeStore{
		remote: r,
		logger: logger,
		events: NopSink{},
		now:    NowRFC3339,
		byID:   map[string]*models.Node{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OwnerID returns the owner the store is currently loaded for.
func (s *NodeStore) OwnerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownerID
}

// LastError returns the most recent recorded mutation error, if any.
func (s *NodeStore) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearError dismisses the recorded error.
func (s *NodeStore) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}

func (s *NodeStore) recordErr(err error) {
	s.lastErr = err
}

// Load replaces the entire local collection with the remote collection's
// current contents. A single malformed record is coerced and kept; it never
// blocks the rest of the collection.
func (s *NodeStore) Load(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return ErrUnauthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownerID = ownerID
	return s.reloadLocked(ctx)
}

// reloadLocked refetches the collection under the held lock.
func (s *NodeStore) reloadLocked(ctx context.Context) error {
	docs, err := s.remote.List(ctx, s.ownerID, collectionNodes)
	if err != nil {
		perr := &PersistenceError{Op: "load nodes", Err: err}
		s.recordErr(perr)
		return perr
	}

	nodes := make([]*models.Node, 0, len(docs))
	byID := make(map[string]*models.Node, len(docs))
	for _, doc := range docs {
		n, err := decodeNode(doc)
		if err != nil || n.ID == "" {
			s.logger.Warn("skipping_malformed_node_record", zap.Error(err))
			continue
		}
		if _, dup := byID[n.ID]; dup {
			continue
		}
		nodes = append(nodes, n)
		byID[n.ID] = n
	}
	s.nodes = nodes
	s.byID = byID
	return nil
}

// Nodes returns the current collection. The slice is a copy; the nodes are
// shared and must be treated as read-only by callers.
func (s *NodeStore) Nodes() []*models.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Get returns the node with the given id, or nil.
func (s *NodeStore) Get(id string) *models.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id]
}

// NodeDraft carries the caller-supplied fields for Create. Optional fields
// left unset are omitted from the persisted document entirely.
type NodeDraft struct {
	OwnerID     string
	Title       string
	Description string
	Type        models.NodeType
	Tags        []string

	Urgency    *int
	Importance *int
	DueDate    *string

	ParentID *string
	ChildIDs []string

	TaskType   models.TaskType
	Recurrence *models.Recurrence

	CalendarEventID *string
	CalendarID      *string
}

// Create persists a new node remotely, then appends it to the local
// collection. Returns the generated id. The error is both recorded in the
// store's error slot and returned, since creation callers typically await
// the result to chain a follow-up action.
func (s *NodeStore) Create(ctx context.Context, draft NodeDraft) (string, error) {
	owner := draft.OwnerID
	if owner == "" {
		owner = s.OwnerID()
	}
	if owner == "" {
		return "", ErrUnauthenticated
	}

	now := s.now()
	n := &models.Node{
		ID:          uuid.NewString(),
		OwnerID:     owner,
		Title:       draft.Title,
		Description: draft.Description,
		Type:        draft.Type,
		Tags:        draft.Tags,
		Urgency:     draft.Urgency,
		Importance:  draft.Importance,
		DueDate:     draft.DueDate,
		ParentID:    draft.ParentID,
		ChildIDs:    append([]string(nil), draft.ChildIDs...),
		TaskType:    draft.TaskType,
		Recurrence:  draft.Recurrence,

		CalendarEventID: draft.CalendarEventID,
		CalendarID:      draft.CalendarID,

		CreatedAt: now,
		UpdatedAt: now,
	}
	if n.Title == "" {
		n.Title = "Untitled"
	}
	if n.Type == "" {
		n.Type = models.DefaultNodeType
	}
	if len(n.Tags) == 0 {
		n.Tags = []string{models.DefaultTag}
	}

	doc, err := encodeNode(n)
	if err != nil {
		return "", err
	}

	if err := s.remote.Set(ctx, owner, collectionNodes, n.ID, doc); err != nil {
		perr := &PersistenceError{Op: "create node", Err: err}
		s.mu.Lock()
		s.recordErr(perr)
		s.mu.Unlock()
		return "", perr
	}

	s.mu.Lock()
	s.nodes = append(s.nodes, n)
	s.byID[n.ID] = n
	s.mu.Unlock()

	s.events.Publish(ctx, EventNodeCreated, owner, n.ID)
	return n.ID, nil
}

// Update applies a partial update optimistically, then persists it with
// merge semantics. On persistence failure the whole collection is reloaded
// from the remote source: merge semantics make a precise snapshot-restore
// ambiguous in the face of server-side defaults, so reload is the stronger
// recovery.
func (s *NodeStore) Update(ctx context.Context, id string, patch models.NodePatch) error {
	s.mu.Lock()
	n, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}

	now := s.now()
	patch.Apply(n)
	n.UpdatedAt = now

	fields := patch.Fields()
	fields["updated_at"] = now
	owner := s.ownerID
	s.mu.Unlock()

	if err := s.remote.Merge(ctx, owner, collectionNodes, id, fields); err != nil {
		perr := &PersistenceError{Op: "update node", Err: err}
		s.mu.Lock()
		s.recordErr(perr)
		if rerr := s.reloadLocked(ctx); rerr != nil {
			s.logger.Error("reload_after_failed_update_failed", zap.Error(rerr))
		}
		s.mu.Unlock()
		return perr
	}

	s.events.Publish(ctx, EventNodeUpdated, owner, id)
	return nil
}

// Complete marks a node done and publishes a completion event, which the
// recurrence worker consumes to materialize the next occurrence.
func (s *NodeStore) Complete(ctx context.Context, id string) error {
	now := s.now()
	done := true
	if err := s.Update(ctx, id, models.NodePatch{Completed: &done, CompletedAt: &now}); err != nil {
		return err
	}
	s.events.Publish(ctx, EventNodeCompleted, s.OwnerID(), id)
	return nil
}

// Delete removes a node and, within the same remote batch, clears the
// dangling references: the parent's child list loses the id and every
// former child is orphaned (parent pointer cleared), never cascaded.
// Local state is updated only after the batch commits.
func (s *NodeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	n, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}

	now := s.now()
	ops := []remote.BatchOp{{Kind: remote.BatchDelete, Collection: collectionNodes, ID: id}}

	var parent *models.Node
	if n.ParentID != nil {
		if p, ok := s.byID[*n.ParentID]; ok && p.HasChild(id) {
			parent = p
			remaining := make([]string, 0, len(p.ChildIDs))
			for _, c := range p.ChildIDs {
				if c != id {
					remaining = append(remaining, c)
				}
			}
			ops = append(ops, remote.BatchOp{
				Kind:       remote.BatchMerge,
				Collection: collectionNodes,
				ID:         p.ID,
				Doc:        remote.Document{"child_ids": remaining, "updated_at": now},
			})
		}
	}

	var children []*models.Node
	for _, cid := range n.ChildIDs {
		c, ok := s.byID[cid]
		if !ok {
			continue
		}
		children = append(children, c)
		ops = append(ops, remote.BatchOp{
			Kind:       remote.BatchMerge,
			Collection: collectionNodes,
			ID:         cid,
			Doc:        remote.Document{"parent_id": nil, "updated_at": now},
		})
	}
	owner := s.ownerID
	s.mu.Unlock()

	if err := s.remote.Batch(ctx, owner, ops); err != nil {
		perr := &PersistenceError{Op: "delete node", Err: err}
		s.mu.Lock()
		s.recordErr(perr)
		s.mu.Unlock()
		return perr
	}

	s.mu.Lock()
	delete(s.byID, id)
	out := s.nodes[:0]
	for _, cur := range s.nodes {
		if cur.ID != id {
			out = append(out, cur)
		}
	}
	s.nodes = out
	if parent != nil {
		parent.RemoveChild(id)
		parent.UpdatedAt = now
	}
	for _, c := range children {
		c.ParentID = nil
		c.UpdatedAt = now
	}
	s.mu.Unlock()

	s.events.Publish(ctx, EventNodeDeleted, owner, id)
	return nil
}

// AddUpdate appends a timestamped annotation to a node, following the
// optimistic contract: visible immediately, reverted if persistence fails.
func (s *NodeStore) AddUpdate(ctx context.Context, nodeID string, kind models.UpdateKind, text, author string) (string, error) {
	s.mu.Lock()
	n, ok := s.byID[nodeID]
	if !ok {
		s.mu.Unlock()
		return "", ErrNotFound
	}

	before := append([]models.NodeUpdate(nil), n.Updates...)
	upd := models.NodeUpdate{
		ID:        uuid.NewString(),
		Kind:      kind,
		Text:      text,
		Author:    author,
		CreatedAt: s.now(),
	}
	n.Updates = append(n.Updates, upd)
	updates := append([]models.NodeUpdate(nil), n.Updates...)
	owner := s.ownerID

	m := NewMutation(func() {
		n.Updates = before
	}).Under(&s.mu)
	s.mu.Unlock()

	err := m.Run(ctx, "add update", func(ctx context.Context) error {
		return s.remote.Merge(ctx, owner, collectionNodes, nodeID, remote.Document{
			"updates":    updates,
			"updated_at": s.now(),
		})
	})
	if err != nil {
		s.mu.Lock()
		s.recordErr(err)
		s.mu.Unlock()
		return "", err
	}
	return upd.ID, nil
}

// DeleteUpdate removes one annotation by id.
func (s *NodeStore) DeleteUpdate(ctx context.Context, nodeID, updateID string) error {
	s.mu.Lock()
	n, ok := s.byID[nodeID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}

	idx := -1
	for i, u := range n.Updates {
		if u.ID == updateID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}

	before := append([]models.NodeUpdate(nil), n.Updates...)
	n.Updates = append(n.Updates[:idx], n.Updates[idx+1:]...)
	updates := append([]models.NodeUpdate(nil), n.Updates...)
	owner := s.ownerID

	m := NewMutation(func() {
		n.Updates = before
	}).Under(&s.mu)
	s.mu.Unlock()

	err := m.Run(ctx, "delete update", func(ctx context.Context) error {
		return s.remote.Merge(ctx, owner, collectionNodes, nodeID, remote.Document{
			"updates":    updates,
			"updated_at": s.now(),
		})
	})
	if err != nil {
		s.mu.Lock()
		s.recordErr(err)
		s.mu.Unlock()
		return err
	}
	return nil
}

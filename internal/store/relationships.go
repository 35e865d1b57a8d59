package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/models"
	"github.com/daygraph/daygraph/internal/remote"
)

// LinkAsChild makes childID a child of parentID. Both sides of the link are
// written in one logical transaction: the parent's child list and the
// child's parent pointer change together locally and persist as one remote
// batch; a failed batch rolls both back.
//
// Linking is rejected with ErrCircularDependency when childID already
// appears in parentID's ancestor chain, which keeps the relation a forest.
// Re-linking an existing child is idempotent. Re-linking a child that
// already has a different parent detaches it from the old parent in the
// same batch, so the child never appears in two child lists.
func (s *NodeStore) LinkAsChild(ctx context.Context, parentID, childID string) error {
	s.mu.Lock()
	parent, ok := s.byID[parentID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	child, ok := s.byID[childID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if parentID == childID {
		s.mu.Unlock()
		return ErrCircularDependency
	}
	for _, anc := range s.ancestorsLocked(parentID) {
		if anc.ID == childID {
			s.mu.Unlock()
			return ErrCircularDependency
		}
	}
	if parent.HasChild(childID) && child.ParentID != nil && *child.ParentID == parentID {
		s.mu.Unlock()
		return nil
	}

	now := s.now()
	parentChildren := append([]string(nil), parent.ChildIDs...)
	childParent := child.ParentID

	// Moving the child out from under another parent must clear the old
	// parent's child list in the same transaction as the new link.
	var oldParent *models.Node
	var oldParentChildren []string
	if child.ParentID != nil && *child.ParentID != parentID {
		if op, ok := s.byID[*child.ParentID]; ok && op.HasChild(childID) {
			oldParent = op
			oldParentChildren = append([]string(nil), op.ChildIDs...)
			op.RemoveChild(childID)
			op.UpdatedAt = now
		}
	}

	if !parent.HasChild(childID) {
		parent.ChildIDs = append(parent.ChildIDs, childID)
	}
	pid := parentID
	child.ParentID = &pid
	parent.UpdatedAt = now
	child.UpdatedAt = now

	childIDs := append([]string(nil), parent.ChildIDs...)
	owner := s.ownerID

	ops := []remote.BatchOp{
		{
			Kind:       remote.BatchMerge,
			Collection: collectionNodes,
			ID:         parentID,
			Doc:        remote.Document{"child_ids": childIDs, "updated_at": now},
		},
		{
			Kind:       remote.BatchMerge,
			Collection: collectionNodes,
			ID:         childID,
			Doc:        remote.Document{"parent_id": parentID, "updated_at": now},
		},
	}
	if oldParent != nil {
		remaining := append([]string(nil), oldParent.ChildIDs...)
		if remaining == nil {
			remaining = []string{}
		}
		ops = append(ops, remote.BatchOp{
			Kind:       remote.BatchMerge,
			Collection: collectionNodes,
			ID:         oldParent.ID,
			Doc:        remote.Document{"child_ids": remaining, "updated_at": now},
		})
	}

	m := NewMutation(func() {
		parent.ChildIDs = parentChildren
		child.ParentID = childParent
		if oldParent != nil {
			oldParent.ChildIDs = oldParentChildren
		}
	}).Under(&s.mu)
	s.mu.Unlock()

	err := m.Run(ctx, "link nodes", func(ctx context.Context) error {
		return s.remote.Batch(ctx, owner, ops)
	})
	if err != nil {
		s.mu.Lock()
		s.recordErr(err)
		s.mu.Unlock()
		return err
	}

	s.events.Publish(ctx, EventNodeLinked, owner, childID)
	return nil
}

// UnlinkNodes removes the parent/child relationship between two nodes,
// whichever direction it holds. When no consistent relationship exists but
// one side still carries an orphaned reference to the other (consistency
// drift), the orphaned reference is cleared as a corrective action via
// RepairConsistency rather than reported as an error. ErrNoRelationship is
// returned only when no link or orphaned reference of any kind is found.
func (s *NodeStore) UnlinkNodes(ctx context.Context, idA, idB string) error {
	s.mu.Lock()
	a, ok := s.byID[idA]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	b, ok := s.byID[idB]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}

	switch {
	case a.HasChild(idB) && b.ParentID != nil && *b.ParentID == idA:
		return s.unlinkLocked(ctx, a, b)
	case b.HasChild(idA) && a.ParentID != nil && *a.ParentID == idB:
		return s.unlinkLocked(ctx, b, a)
	}

	// No consistent relationship. Check for one-sided drift.
	orphaned := a.HasChild(idB) || b.HasChild(idA) ||
		(a.ParentID != nil && *a.ParentID == idB) ||
		(b.ParentID != nil && *b.ParentID == idA)
	s.mu.Unlock()

	if !orphaned {
		return ErrNoRelationship
	}

	s.logger.Warn("clearing_orphaned_relationship_reference",
		zap.String("node_a", idA),
		zap.String("node_b", idB),
	)
	if _, err := s.RepairConsistency(ctx, idA); err != nil {
		return err
	}
	_, err := s.RepairConsistency(ctx, idB)
	return err
}

// unlinkLocked removes a consistent parent→child link. Called with the lock
// held; releases it.
func (s *NodeStore) unlinkLocked(ctx context.Context, parent, child *models.Node) error {
	now := s.now()
	parentChildren := append([]string(nil), parent.ChildIDs...)
	childParent := child.ParentID

	parent.RemoveChild(child.ID)
	child.ParentID = nil
	parent.UpdatedAt = now
	child.UpdatedAt = now

	childIDs := append([]string(nil), parent.ChildIDs...)
	if childIDs == nil {
		childIDs = []string{}
	}
	owner := s.ownerID

	m := NewMutation(func() {
		parent.ChildIDs = parentChildren
		child.ParentID = childParent
	}).Under(&s.mu)
	s.mu.Unlock()

	err := m.Run(ctx, "unlink nodes", func(ctx context.Context) error {
		return s.remote.Batch(ctx, owner, []remote.BatchOp{
			{
				Kind:       remote.BatchMerge,
				Collection: collectionNodes,
				ID:         parent.ID,
				Doc:        remote.Document{"child_ids": childIDs, "updated_at": now},
			},
			{
				Kind:       remote.BatchMerge,
				Collection: collectionNodes,
				ID:         child.ID,
				Doc:        remote.Document{"parent_id": nil, "updated_at": now},
			},
		})
	})
	if err != nil {
		s.mu.Lock()
		s.recordErr(err)
		s.mu.Unlock()
		return err
	}

	s.events.Publish(ctx, EventNodeUnlinked, owner, child.ID)
	return nil
}

// Ancestors returns the chain of ancestors walking parent pointers upward,
// nearest first. The walk stops at the first node with no parent, at a
// dangling pointer, or at the first repeated id.
func (s *NodeStore) Ancestors(id string) []*models.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ancestorsLocked(id)
}

func (s *NodeStore) ancestorsLocked(id string) []*models.Node {
	var chain []*models.Node
	seen := map[string]bool{id: true}

	cur, ok := s.byID[id]
	if !ok {
		return nil
	}
	for cur.ParentID != nil {
		next, ok := s.byID[*cur.ParentID]
		if !ok || seen[next.ID] {
			break
		}
		seen[next.ID] = true
		chain = append(chain, next)
		cur = next
	}
	return chain
}

// Descendants returns every node reachable through child lists, guarded
// against revisiting an id so residual inconsistency can never loop.
func (s *NodeStore) Descendants(id string) []*models.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, ok := s.byID[id]
	if !ok {
		return nil
	}

	var out []*models.Node
	seen := map[string]bool{id: true}
	queue := append([]string(nil), root.ChildIDs...)
	for len(queue) > 0 {
		cid := queue[0]
		queue = queue[1:]
		if seen[cid] {
			continue
		}
		seen[cid] = true
		c, ok := s.byID[cid]
		if !ok {
			continue
		}
		out = append(out, c)
		queue = append(queue, c.ChildIDs...)
	}
	return out
}

// Children returns the node's direct children. Dangling ids are silently
// filtered: the remote store may lag local deletes.
func (s *NodeStore) Children(id string) []*models.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok {
		return nil
	}
	var out []*models.Node
	for _, cid := range n.ChildIDs {
		if c, ok := s.byID[cid]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Parent returns the node's parent, or nil when there is none or the
// pointer dangles.
func (s *NodeStore) Parent(id string) *models.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok || n.ParentID == nil {
		return nil
	}
	return s.byID[*n.ParentID]
}

// Breadcrumb returns the ancestor chain root-first with the node itself
// appended last.
func (s *NodeStore) Breadcrumb(id string) []*models.Node {
	s.mu.Lock()
	n, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	chain := s.ancestorsLocked(id)
	s.mu.Unlock()

	out := make([]*models.Node, 0, len(chain)+1)
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i])
	}
	return append(out, n)
}

// RepairConsistency clears orphaned relationship references on one node:
// child ids whose node is missing or does not point back, and a parent
// pointer whose node is missing or does not list the node. Consistent links
// are left untouched. Returns a description of each repair applied.
//
// Both the unlink path and maintenance tooling call this, so the
// self-healing behavior is a documented operation rather than a side effect.
func (s *NodeStore) RepairConsistency(ctx context.Context, id string) ([]string, error) {
	s.mu.Lock()
	n, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	var repairs []string
	now := s.now()
	fields := remote.Document{}

	var keep []string
	for _, cid := range n.ChildIDs {
		c, exists := s.byID[cid]
		if !exists {
			repairs = append(repairs, "dropped dangling child reference "+cid)
			continue
		}
		if c.ParentID == nil || *c.ParentID != id {
			repairs = append(repairs, "dropped orphaned child reference "+cid)
			continue
		}
		keep = append(keep, cid)
	}
	if len(keep) != len(n.ChildIDs) {
		if keep == nil {
			keep = []string{}
		}
		fields["child_ids"] = keep
	}

	if n.ParentID != nil {
		p, exists := s.byID[*n.ParentID]
		if !exists {
			repairs = append(repairs, "cleared dangling parent pointer "+*n.ParentID)
			fields["parent_id"] = nil
		} else if !p.HasChild(id) {
			repairs = append(repairs, "cleared orphaned parent pointer "+*n.ParentID)
			fields["parent_id"] = nil
		}
	}

	if len(repairs) == 0 {
		s.mu.Unlock()
		return nil, nil
	}

	before := n.Clone()
	if v, ok := fields["child_ids"].([]string); ok {
		n.ChildIDs = append([]string(nil), v...)
		if len(n.ChildIDs) == 0 {
			n.ChildIDs = nil
		}
	}
	if _, clear := fields["parent_id"]; clear {
		n.ParentID = nil
	}
	n.UpdatedAt = now
	fields["updated_at"] = now
	owner := s.ownerID

	m := NewMutation(func() {
		n.ChildIDs = before.ChildIDs
		n.ParentID = before.ParentID
		n.UpdatedAt = before.UpdatedAt
	}).Under(&s.mu)
	s.mu.Unlock()

	err := m.Run(ctx, "repair consistency", func(ctx context.Context) error {
		return s.remote.Merge(ctx, owner, collectionNodes, id, fields)
	})
	if err != nil {
		s.mu.Lock()
		s.recordErr(err)
		s.mu.Unlock()
		return nil, err
	}

	s.logger.Info("repaired_relationship_consistency",
		zap.String("node_id", id),
		zap.Strings("repairs", repairs),
	)
	return repairs, nil
}

package store

import (
	"context"
	"sync"
)

// MutationState tracks where an optimistic mutation is in its lifecycle.
type MutationState int

const (
	// MutationApplied means the local change is visible but persistence has
	// not settled.
	MutationApplied MutationState = iota
	// MutationCommitted means persistence succeeded and the local change is
	// final.
	MutationCommitted
	// MutationRolledBack means persistence failed and the local change was
	// reverted.
	MutationRolledBack
)

// Mutation is one optimistic write: the local change is applied immediately
// so observers see it with zero latency, persistence runs afterwards, and
// the change is reverted if persistence fails.
//
// Rollback is idempotent. Rapid repeated mutations on the same record can
// interleave on persistence (there is no per-record locking), so applying a
// rollback to already-rolled-back state must be a no-op rather than an error
// or a double-revert.
type Mutation struct {
	state    MutationState
	revert   func()
	onCommit func()
	lock     sync.Locker
}

// NewMutation wraps a local change that has just been applied. revert must
// restore the exact pre-mutation state when called.
func NewMutation(revert func()) *Mutation {
	return &Mutation{revert: revert}
}

// OnCommit registers a hook run exactly once when the mutation commits,
// typically to clear an in-flight marker on the mutated record.
func (m *Mutation) OnCommit(fn func()) *Mutation {
	m.onCommit = fn
	return m
}

// Under registers the store mutex the revert and commit hooks must hold.
// The hooks run after the mutating call has released the lock and touch the
// same shared records, so reconciliation has to re-enter the critical
// section or it races with concurrent mutations.
func (m *Mutation) Under(l sync.Locker) *Mutation {
	m.lock = l
	return m
}

// State returns the mutation's current lifecycle state.
func (m *Mutation) State() MutationState {
	return m.state
}

// Commit finalizes an applied mutation. Committing a rolled-back or
// already-committed mutation is a no-op.
func (m *Mutation) Commit() {
	if m.state != MutationApplied {
		return
	}
	m.state = MutationCommitted
	if m.onCommit != nil {
		m.guarded(m.onCommit)
	}
}

// Rollback reverts an applied mutation. Safe to call any number of times;
// the revert function runs at most once.
func (m *Mutation) Rollback() {
	if m.state != MutationApplied {
		return
	}
	m.state = MutationRolledBack
	if m.revert != nil {
		m.guarded(m.revert)
	}
}

func (m *Mutation) guarded(fn func()) {
	if m.lock != nil {
		m.lock.Lock()
		defer m.lock.Unlock()
	}
	fn()
}

// Run drives the full optimistic cycle: the caller has already applied the
// local change, persist is attempted, and the outcome is reconciled against
// whatever the current state is at completion time. Returns a
// *PersistenceError on failure.
func (m *Mutation) Run(ctx context.Context, op string, persist func(context.Context) error) error {
	if err := persist(ctx); err != nil {
		m.Rollback()
		return &PersistenceError{Op: op, Err: err}
	}
	m.Commit()
	return nil
}

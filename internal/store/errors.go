package store

import (
	"errors"
	"fmt"
)

// Structural and validation errors are detected synchronously, before any
// local mutation or remote call, and are reported without side effects.
var (
	// ErrUnauthenticated means the required owner identity is missing.
	ErrUnauthenticated = errors.New("owner not authenticated")

	// ErrNotFound means a referenced node, slot or task id does not resolve
	// in local state.
	ErrNotFound = errors.New("not found")

	// ErrCircularDependency means the proposed parent/child link would make
	// a node its own ancestor.
	ErrCircularDependency = errors.New("link would create a circular dependency")

	// ErrNoRelationship means an unlink was requested between two nodes
	// with no existing or orphaned link.
	ErrNoRelationship = errors.New("no relationship between nodes")

	// ErrSlotBlocked means a task move targeted a blocked slot. Moves are
	// rejected loudly so the task is never silently dropped.
	ErrSlotBlocked = errors.New("slot is blocked")
)

// PersistenceError wraps a failed remote collaborator call. The underlying
// message is carried verbatim for user display.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceFailure reports whether err is (or wraps) a PersistenceError.
func IsPersistenceFailure(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// Package remote defines the contract for the remote document collaborator:
// an opaque, owner-scoped document store that the local stores persist into.
// The store either fully applies a batch or not at all; partial batch
// failure is reported as whole-batch failure.
package remote

import (
	"context"
	"errors"
)

// ErrDocNotFound is returned by Get, Merge and Delete when the document does
// not exist under the owner and collection.
var ErrDocNotFound = errors.New("remote: document not found")

// Document is the wire shape of a stored record. Values are whatever the
// collaborator handed back; callers coerce malformed fields rather than
// rejecting the document.
type Document map[string]any

// BatchOpKind enumerates the operations allowed inside a batch.
type BatchOpKind string

const (
	BatchSet    BatchOpKind = "set"
	BatchMerge  BatchOpKind = "merge"
	BatchDelete BatchOpKind = "delete"
)

// BatchOp is one operation of an atomic multi-document batch. For merges, a
// nil value in Doc clears that field on the stored document.
type BatchOp struct {
	Kind       BatchOpKind
	Collection string
	ID         string
	Doc        Document
}

// Store is the remote document collaborator. All operations are scoped by
// owner and collection name.
type Store interface {
	// List returns every document under owner/collection, ordered by the
	// created_at field where present.
	List(ctx context.Context, owner, collection string) ([]Document, error)

	// Get returns a single document or ErrDocNotFound.
	Get(ctx context.Context, owner, collection, id string) (Document, error)

	// Set creates or fully replaces a document.
	Set(ctx context.Context, owner, collection, id string, doc Document) error

	// Merge applies a partial update: listed fields are written, nil values
	// clear fields, unlisted fields are untouched. ErrDocNotFound when the
	// document does not exist.
	Merge(ctx context.Context, owner, collection, id string, fields Document) error

	// Delete removes a document. ErrDocNotFound when it does not exist.
	Delete(ctx context.Context, owner, collection, id string) error

	// Batch applies all operations atomically: either every op is applied
	// or none is.
	Batch(ctx context.Context, owner string, ops []BatchOp) error
}

// MergeInto applies merge semantics of Batch/Merge onto a document in place.
func MergeInto(doc Document, fields Document) {
	for k, v := range fields {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
}

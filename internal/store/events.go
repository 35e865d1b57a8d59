package store

import "context"

// Mutation event types published on committed writes.
const (
	EventNodeCreated   = "node.created"
	EventNodeUpdated   = "node.updated"
	EventNodeDeleted   = "node.deleted"
	EventNodeCompleted = "node.completed"
	EventNodeLinked    = "node.linked"
	EventNodeUnlinked  = "node.unlinked"
	EventTaskScheduled = "task.scheduled"
)

// EventSink receives mutation events after a write commits. Publishing is
// best effort: a sink must never block a mutation or fail it.
type EventSink interface {
	Publish(ctx context.Context, eventType, ownerID, entityID string)
}

// NopSink discards all events.
type NopSink struct{}

// Publish implements EventSink.
func (NopSink) Publish(context.Context, string, string, string) {}

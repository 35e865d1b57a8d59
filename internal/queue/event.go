// Package queue carries the mutation-event stream: every committed write in
// the stores is published for downstream consumers such as the recurrence
// worker.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Event is one committed mutation.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       string         `json:"type"`
	OwnerID    string         `json:"owner_id"`
	EntityID   string         `json:"entity_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	RetryCount int            `json:"retry_count"`
	MaxRetries int            `json:"max_retries"`
}

// NewEvent creates an event with a fresh id and default retry budget.
func NewEvent(eventType, ownerID, entityID string) *Event {
	return &Event{
		ID:         uuid.New(),
		Type:       eventType,
		OwnerID:    ownerID,
		EntityID:   entityID,
		Metadata:   make(map[string]any),
		CreatedAt:  time.Now(),
		MaxRetries: 3,
	}
}

// CanRetry reports whether the event's retry budget allows another attempt.
func (e *Event) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// IncrementRetry bumps the retry count.
func (e *Event) IncrementRetry() {
	e.RetryCount++
}

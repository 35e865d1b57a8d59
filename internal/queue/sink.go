package queue

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sink adapts an EventStream to the stores' event hook. Publishing is best
// effort with a short deadline: a slow or dead broker must never stall or
// fail a user-facing mutation.
type Sink struct {
	stream EventStream
	logger *zap.Logger
}

// NewSink wraps a stream for use as a store event sink.
func NewSink(stream EventStream, logger *zap.Logger) *Sink {
	return &Sink{stream: stream, logger: logger}
}

// Publish implements store.EventSink.
func (s *Sink) Publish(ctx context.Context, eventType, ownerID, entityID string) {
	if s.stream == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := s.stream.Publish(pubCtx, NewEvent(eventType, ownerID, entityID)); err != nil {
		s.logger.Warn("failed_to_publish_mutation_event",
			zap.String("event_type", eventType),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

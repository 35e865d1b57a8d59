// Package workers holds the background consumers of the mutation-event
// stream.
package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/models"
	"github.com/daygraph/daygraph/internal/queue"
	"github.com/daygraph/daygraph/internal/session"
	"github.com/daygraph/daygraph/internal/store"
)

// RecurrenceWorker materializes the next occurrence of recurring nodes.
// When a recurring node is completed, the worker rolls its due date forward
// per the recurrence rule and reopens it; a rule past its end date leaves
// the node completed.
type RecurrenceWorker struct {
	stream   queue.EventStream
	sessions *session.Manager
	logger   *zap.Logger
	now      func() time.Time
}

// NewRecurrenceWorker creates a recurrence worker.
func NewRecurrenceWorker(stream queue.EventStream, sessions *session.Manager, logger *zap.Logger) *RecurrenceWorker {
	return &RecurrenceWorker{
		stream:   stream,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// Run consumes completion events until the context is cancelled.
func (w *RecurrenceWorker) Run(ctx context.Context, prefetch int) error {
	deliveries, errs, err := w.stream.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			w.logger.Warn("event_stream_error", zap.Error(err))
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			w.handle(ctx, d)
		}
	}
}

func (w *RecurrenceWorker) handle(ctx context.Context, d queue.Delivery) {
	event := d.Event()
	if event.Type != store.EventNodeCompleted {
		if err := d.Ack(); err != nil {
			w.logger.Warn("failed_to_ack_event", zap.Error(err))
		}
		return
	}

	if err := w.Process(ctx, event); err != nil {
		w.logger.Error("failed_to_process_completion_event",
			zap.String("node_id", event.EntityID),
			zap.Int("retry_count", event.RetryCount),
			zap.Error(err),
		)
		// Requeue while the retry budget lasts, then dead-letter.
		if err := d.Nack(event.CanRetry()); err != nil {
			w.logger.Warn("failed_to_nack_event", zap.Error(err))
		}
		return
	}

	if err := d.Ack(); err != nil {
		w.logger.Warn("failed_to_ack_event", zap.Error(err))
	}
}

// Process rolls one completed recurring node forward.
func (w *RecurrenceWorker) Process(ctx context.Context, event *queue.Event) error {
	sess, err := w.sessions.Session(ctx, event.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	nodes := sess.Nodes()

	n := nodes.Get(event.EntityID)
	if n == nil {
		// Deleted between completion and processing; nothing to do.
		return nil
	}
	if n.Recurrence == nil {
		return nil
	}
	if n.TaskType != models.TaskTypeRecurring && n.TaskType != models.TaskTypeHabit {
		return nil
	}
	if !n.Completed {
		return nil
	}

	after := w.anchor(n)
	next, ok := n.Recurrence.Next(after)
	if !ok {
		w.logger.Info("recurrence_exhausted", zap.String("node_id", n.ID))
		return nil
	}

	due := next.Format(models.DateLayout)
	reopened := false
	patch := models.NodePatch{
		DueDate:          &due,
		Completed:        &reopened,
		ClearCompletedAt: true,
	}
	if err := nodes.Update(ctx, n.ID, patch); err != nil {
		return fmt.Errorf("failed to roll node forward: %w", err)
	}

	w.logger.Info("materialized_next_occurrence",
		zap.String("node_id", n.ID),
		zap.String("due_date", due),
	)
	return nil
}

// anchor picks the date the next occurrence counts from: the due date when
// set, otherwise the completion day.
func (w *RecurrenceWorker) anchor(n *models.Node) time.Time {
	if n.DueDate != nil {
		if t, err := time.Parse(models.DateLayout, *n.DueDate); err == nil {
			return t
		}
	}
	if n.CompletedAt != nil {
		if t, err := time.Parse(time.RFC3339, *n.CompletedAt); err == nil {
			return t
		}
	}
	return w.now()
}

package monitoring

import (
	"context"
	"time"

	"hospital-queue/internal/models"
	"hospital-queue/internal/queue"

	"github.com/rs/zerolog"
)

// Queue wraps queue operations with counters, latency histograms and debug logs.
type Queue struct {
	next queue.Operations
	log  zerolog.Logger
}

var _ queue.Operations = (*Queue)(nil)

func NewQueue(log zerolog.Logger, next queue.Operations) *Queue {
	return &Queue{next: next, log: log.With().Str("component", "queue").Logger()}
}

func (q *Queue) Join(ctx context.Context, req queue.JoinRequest) (models.QueueEntry, error) {
	defer q.track("join", time.Now())
	entry, err := q.next.Join(ctx, req)
	q.record("join", err)
	if err == nil {
		q.log.Info().Str("entry_id", entry.ID).Int64("service_id", entry.ServiceID).
			Int64("queue_number", entry.QueueNumber).Int("eta_minutes", entry.EstimatedWaitMinutes).Msg("patient joined queue")
	}
	return entry, err
}

func (q *Queue) UpdateStatus(ctx context.Context, entryID string, status models.QueueStatus) (models.QueueEntry, error) {
	defer q.track("update_status", time.Now())
	entry, err := q.next.UpdateStatus(ctx, entryID, status)
	q.record("update_status", err)
	if err == nil {
		q.log.Info().Str("entry_id", entryID).Str("status", string(status)).Msg("queue status updated")
	}
	return entry, err
}

func (q *Queue) CallNext(ctx context.Context, serviceID int64) (models.QueueEntry, error) {
	defer q.track("call_next", time.Now())
	entry, err := q.next.CallNext(ctx, serviceID)
	q.record("call_next", err)
	if err == nil {
		q.log.Info().Str("entry_id", entry.ID).Int64("service_id", serviceID).
			Int64("queue_number", entry.QueueNumber).Msg("patient called")
	}
	return entry, err
}

func (q *Queue) Position(ctx context.Context, entryID string) (int, error) {
	pos, err := q.next.Position(ctx, entryID)
	q.record("position", err)
	return pos, err
}

func (q *Queue) Get(ctx context.Context, entryID string) (models.QueueEntry, error) {
	entry, err := q.next.Get(ctx, entryID)
	q.record("get", err)
	return entry, err
}

func (q *Queue) Snapshot(ctx context.Context, serviceID int64) (models.QueueUpdate, error) {
	snap, err := q.next.Snapshot(ctx, serviceID)
	q.record("snapshot", err)
	return snap, err
}

func (q *Queue) record(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
		q.log.Debug().Err(err).Str("operation", operation).Msg("queue operation rejected")
	}
	queueOperations.WithLabelValues(operation, status).Inc()
}

func (q *Queue) track(operation string, start time.Time) {
	queueOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hospital-queue/internal/models"
	"hospital-queue/internal/queue"

	"github.com/redis/go-redis/v9"
)

const EventsChannel = "queue:events"

type publishedEvent struct {
	Event       string             `json:"event"`
	EntryID     string             `json:"entry_id"`
	ServiceID   int64              `json:"service_id"`
	QueueNumber int64              `json:"queue_number"`
	Priority    models.Priority    `json:"priority"`
	Status      models.QueueStatus `json:"status"`
	Previous    models.QueueStatus `json:"previous_status,omitempty"`
	QueueLength int                `json:"queue_length"`
	Timestamp   time.Time          `json:"timestamp"`
}

// RedisPublisher mirrors queue events onto a Pub/Sub channel for other consumers.
type RedisPublisher struct {
	client  redis.Cmdable
	channel string
}

func NewRedisPublisher(client redis.Cmdable) *RedisPublisher {
	return &RedisPublisher{client: client, channel: EventsChannel}
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) Consume(ctx context.Context, evt queue.Event) error {
	payload, err := json.Marshal(publishedEvent{
		Event:       string(evt.Type),
		EntryID:     evt.Entry.ID,
		ServiceID:   evt.Entry.ServiceID,
		QueueNumber: evt.Entry.QueueNumber,
		Priority:    evt.Entry.Priority,
		Status:      evt.Entry.Status,
		Previous:    evt.Previous,
		QueueLength: evt.Snapshot.QueueLength,
		Timestamp:   evt.At,
	})
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", p.channel, err)
	}
	return nil
}

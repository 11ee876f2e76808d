package storage

import (
	"context"
	"database/sql"
	"fmt"

	"hospital-queue/internal/queue"
)

// MySQLJournal appends one queue_transactions row per queue event.
type MySQLJournal struct {
	db *sql.DB
}

func NewMySQLJournal(db *sql.DB) *MySQLJournal {
	return &MySQLJournal{db: db}
}

func (j *MySQLJournal) Name() string { return "mysql" }

func (j *MySQLJournal) Consume(ctx context.Context, evt queue.Event) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO queue_transactions
		(entry_id, service_id, queue_number, event, status, previous_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		evt.Entry.ID,
		evt.Entry.ServiceID,
		evt.Entry.QueueNumber,
		string(evt.Type),
		string(evt.Entry.Status),
		string(evt.Previous),
		evt.At,
	)
	if err != nil {
		return fmt.Errorf("insert queue_transactions: %w", err)
	}
	return nil
}

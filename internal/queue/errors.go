package queue

import "errors"

var (
	ErrServiceNotFound   = errors.New("service not found")
	ErrServiceClosed     = errors.New("service is not accepting patients")
	ErrEntryNotFound     = errors.New("queue entry not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidPriority   = errors.New("invalid priority")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrQueueEmpty        = errors.New("no waiting entry for service")
	ErrNotWaiting        = errors.New("queue entry is not waiting")
	ErrNumberReused      = errors.New("queue number source went backwards")
)

package models

import (
	"time"
)

type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type QueueStatus string

const (
	StatusWaiting   QueueStatus = "waiting"
	StatusCalled    QueueStatus = "called"
	StatusServing   QueueStatus = "serving"
	StatusCompleted QueueStatus = "completed"
	StatusCancelled QueueStatus = "cancelled"
)

// transitions lists the forward moves allowed from each status.
var transitions = map[QueueStatus][]QueueStatus{
	StatusWaiting: {StatusCalled, StatusCancelled},
	StatusCalled:  {StatusServing, StatusCancelled},
	StatusServing: {StatusCompleted},
}

func (s QueueStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusCalled, StatusServing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s QueueStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether from -> to is an allowed forward move.
func CanTransition(from, to QueueStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type QueueEntry struct {
	ID                   string      `json:"id"`
	ServiceID            int64       `json:"service_id"`
	OwnerID              string      `json:"owner_id,omitempty"`
	Priority             Priority    `json:"priority"`
	Status               QueueStatus `json:"status"`
	QueueNumber          int64       `json:"queue_number"`
	CreatedAt            time.Time   `json:"created_at"`
	EstimatedWaitMinutes int         `json:"estimated_wait_minutes"`
	CalledAt             *time.Time  `json:"called_at"`
	CompletedAt          *time.Time  `json:"completed_at"`
}

// Before orders entries by arrival, ties broken by queue number.
func (e QueueEntry) Before(other QueueEntry) bool {
	if !e.CreatedAt.Equal(other.CreatedAt) {
		return e.CreatedAt.Before(other.CreatedAt)
	}
	return e.QueueNumber < other.QueueNumber
}

type JoinQueueRequest struct {
	ServiceID int64    `json:"service_id" validate:"required,gt=0"`
	Priority  Priority `json:"priority" validate:"omitempty,oneof=urgent high medium low"`
}

type UpdateQueueStatusRequest struct {
	Status QueueStatus `json:"status" validate:"required,oneof=waiting called serving completed cancelled"`
}

type CallNextQueueRequest struct {
	ServiceID int64 `json:"service_id" validate:"required,gt=0"`
}

package models

import "time"

/*
|--------------------------------------------------------------------------
| Outbound messages
|--------------------------------------------------------------------------
| Every frame sent to a websocket client carries a "type" tag.
*/

const (
	MessageWelcome        = "welcome"
	MessageRoomJoined     = "room_joined"
	MessageRoomLeft       = "room_left"
	MessageSubscribed     = "subscribed"
	MessageUnsubscribed   = "unsubscribed"
	MessageQueueUpdate    = "queue_update"
	MessagePresenceUpdate = "presence_update"
	MessageOnlineUsers    = "online_users"
	MessageTyping         = "typing"
	MessageHeartbeat      = "heartbeat"
	MessagePong           = "pong"
	MessageError          = "error"
)

const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

type Welcome struct {
	Type              string    `json:"type"`
	ConnectionID      string    `json:"connection_id"`
	UserID            string    `json:"user_id,omitempty"`
	Role              string    `json:"role"`
	HeartbeatInterval int       `json:"heartbeat_interval"` // seconds
	Timestamp         time.Time `json:"timestamp"`
}

// RoomEvent is used for room_joined, room_left, subscribed and unsubscribed.
type RoomEvent struct {
	Type      string    `json:"type"`
	Room      string    `json:"room"`
	Timestamp time.Time `json:"timestamp"`
}

type QueueEntrySummary struct {
	QueueNumber int64       `json:"queue_number"`
	Status      QueueStatus `json:"status"`
	Priority    Priority    `json:"priority"`
	CreatedAt   time.Time   `json:"created_at"`
}

// QueueUpdate is a full snapshot of one service line; clients render it without a follow-up query.
type QueueUpdate struct {
	Type             string              `json:"type"`
	ServiceID        int64               `json:"service_id"`
	ServiceName      string              `json:"service_name"`
	Department       string              `json:"department,omitempty"`
	QueueLength      int                 `json:"queue_length"`
	CurrentlyServing int                 `json:"currently_serving"`
	QueueEntries     []QueueEntrySummary `json:"queue_entries"`
	Event            string              `json:"event,omitempty"`
	Timestamp        time.Time           `json:"timestamp"`
}

type PresenceUpdate struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type OnlineUser struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Connections int    `json:"connections"`
}

type OnlineUsers struct {
	Type  string       `json:"type"`
	Count int          `json:"count"`
	Users []OnlineUser `json:"users"`
}

type Typing struct {
	Type     string `json:"type"`
	Room     string `json:"room"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	IsTyping bool   `json:"is_typing"`
}

// Tick is used for heartbeat and pong.
type Tick struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

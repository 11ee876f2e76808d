package models

// Inbound control frame types.
const (
	FramePing               = "ping"
	FrameJoinRoom           = "join_room"
	FrameLeaveRoom          = "leave_room"
	FrameSubscribeQueue     = "subscribe_queue"
	FrameUnsubscribeQueue   = "unsubscribe_queue"
	FrameRequestQueueUpdate = "request_queue_update"
	FrameRequestOnlineUsers = "request_online_users"
	FrameTypingIndicator    = "typing_indicator"
)

// ClientFrame is the union of every inbound control frame.
type ClientFrame struct {
	Type       string `json:"type" validate:"required,oneof=ping join_room leave_room subscribe_queue unsubscribe_queue request_queue_update request_online_users typing_indicator"`
	Room       string `json:"room,omitempty" validate:"max=128"`
	ServiceID  int64  `json:"service_id,omitempty" validate:"gte=0"`
	QueueID    string `json:"queue_id,omitempty" validate:"omitempty,uuid"`
	Department string `json:"department,omitempty" validate:"max=64"`
	IsTyping   bool   `json:"is_typing,omitempty"`
}

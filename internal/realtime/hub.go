package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hospital-queue/internal/models"
	"hospital-queue/internal/queue"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const DefaultMaxMalformedFrames = 5

var validate = validator.New()

// QueueReader is the part of the queue a client may query over its socket.
type QueueReader interface {
	Get(ctx context.Context, entryID string) (models.QueueEntry, error)
	Snapshot(ctx context.Context, serviceID int64) (models.QueueUpdate, error)
}

type HubConfig struct {
	HeartbeatInterval  time.Duration
	MaxMalformedFrames int
}

/*
|--------------------------------------------------------------------------
| Hub
|--------------------------------------------------------------------------
| Admits sockets and interprets their control frames.
*/

type Hub struct {
	cfg         HubConfig
	conns       Connections
	registry    *Registry
	broadcaster *Broadcaster
	presence    *PresenceTracker
	queue       QueueReader
	now         func() time.Time
	log         zerolog.Logger
}

func NewHub(log zerolog.Logger, cfg HubConfig, registry *Registry, conns Connections, broadcaster *Broadcaster, presence *PresenceTracker, reader QueueReader) *Hub {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.MaxMalformedFrames <= 0 {
		cfg.MaxMalformedFrames = DefaultMaxMalformedFrames
	}
	if conns == nil {
		conns = registry
	}
	return &Hub{
		cfg:         cfg,
		conns:       conns,
		registry:    registry,
		broadcaster: broadcaster,
		presence:    presence,
		queue:       reader,
		now:         time.Now,
		log:         log.With().Str("component", "hub").Logger(),
	}
}

// Admit registers a connection and queues its welcome frame.
func (h *Hub) Admit(p ConnectParams) *Connection {
	c := h.conns.Connect(p)
	role := c.Role
	if c.Anonymous() {
		role = "anonymous"
	}
	h.reply(c, models.Welcome{
		Type:              models.MessageWelcome,
		ConnectionID:      c.ID,
		UserID:            c.UserID,
		Role:              role,
		HeartbeatInterval: int(h.cfg.HeartbeatInterval / time.Second),
		Timestamp:         h.now(),
	})
	return c
}

func (h *Hub) Release(c *Connection) {
	h.conns.Disconnect(c.ID)
}

// Heartbeat returns the server-initiated heartbeat frame.
func (h *Hub) Heartbeat() []byte {
	return encode(h.log, models.Tick{Type: models.MessageHeartbeat, Timestamp: h.now()})
}

// Handle interprets one inbound text frame. Malformed frames are answered with an
// error frame; ErrTooManyMalformedFrames means the caller should close the socket.
func (h *Hub) Handle(ctx context.Context, c *Connection, raw []byte) error {
	var frame models.ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return h.malformed(c, "invalid json")
	}
	if err := validate.Struct(frame); err != nil {
		return h.malformed(c, fmt.Sprintf("invalid frame: %s", describe(err)))
	}
	if msg := requiredFields(frame); msg != "" {
		return h.malformed(c, msg)
	}
	c.malformed.Store(0)

	switch frame.Type {
	case models.FramePing:
		c.Touch(h.now())
		h.reply(c, models.Tick{Type: models.MessagePong, Timestamp: h.now()})
	case models.FrameJoinRoom:
		h.joinRoom(c, RoomKey(frame.Room), models.MessageRoomJoined)
	case models.FrameLeaveRoom:
		h.leaveRoom(c, RoomKey(frame.Room), models.MessageRoomLeft)
	case models.FrameSubscribeQueue:
		h.subscribe(ctx, c, frame)
	case models.FrameUnsubscribeQueue:
		for _, room := range subscriptionRooms(frame) {
			h.leaveRoom(c, room, models.MessageUnsubscribed)
		}
	case models.FrameRequestQueueUpdate:
		h.sendSnapshot(ctx, c, frame.ServiceID)
	case models.FrameRequestOnlineUsers:
		h.reply(c, h.presence.OnlineUsers())
	case models.FrameTypingIndicator:
		h.typing(c, RoomKey(frame.Room), frame.IsTyping)
	}
	return nil
}

func (h *Hub) subscribe(ctx context.Context, c *Connection, frame models.ClientFrame) {
	if frame.QueueID != "" {
		if _, err := h.queue.Get(ctx, frame.QueueID); err != nil {
			h.fail(c, err)
			return
		}
	}
	// An unknown service must leave no room behind. The snapshot is sent after joining so no
	// update falls between the two.
	if frame.ServiceID > 0 {
		if _, err := h.queue.Snapshot(ctx, frame.ServiceID); err != nil {
			h.fail(c, err)
			return
		}
	}
	for _, room := range subscriptionRooms(frame) {
		h.joinRoom(c, room, models.MessageSubscribed)
	}
	if frame.ServiceID > 0 {
		h.sendSnapshot(ctx, c, frame.ServiceID)
	}
}

func (h *Hub) joinRoom(c *Connection, room RoomKey, ack string) {
	if _, err := h.conns.JoinRoom(c.ID, room); err != nil {
		h.fail(c, err)
		return
	}
	h.reply(c, models.RoomEvent{Type: ack, Room: string(room), Timestamp: h.now()})
}

func (h *Hub) leaveRoom(c *Connection, room RoomKey, ack string) {
	if _, err := h.conns.LeaveRoom(c.ID, room); err != nil {
		h.fail(c, err)
		return
	}
	h.reply(c, models.RoomEvent{Type: ack, Room: string(room), Timestamp: h.now()})
}

func (h *Hub) sendSnapshot(ctx context.Context, c *Connection, serviceID int64) {
	snap, err := h.queue.Snapshot(ctx, serviceID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.reply(c, snap)
}

// typing relays to everyone else in the room. Only members may type.
func (h *Hub) typing(c *Connection, room RoomKey, isTyping bool) {
	if !h.registry.IsMember(c.ID, room) {
		h.reply(c, models.ErrorMessage{Type: models.MessageError, Message: "not a member of room " + string(room)})
		return
	}
	h.broadcaster.Publish(room, encode(h.log, models.Typing{
		Type:     models.MessageTyping,
		Room:     string(room),
		UserID:   c.UserID,
		Username: c.Username,
		IsTyping: isTyping,
	}), c.ID)
}

func (h *Hub) malformed(c *Connection, reason string) error {
	n := c.malformed.Add(1)
	h.log.Debug().Str("connection_id", c.ID).Int32("count", n).Str("reason", reason).Msg("malformed frame")
	h.reply(c, models.ErrorMessage{Type: models.MessageError, Message: reason})
	if int(n) >= h.cfg.MaxMalformedFrames {
		return ErrTooManyMalformedFrames
	}
	return nil
}

func (h *Hub) fail(c *Connection, err error) {
	msg := "internal error"
	switch {
	case errors.Is(err, queue.ErrServiceNotFound):
		msg = "service not found"
	case errors.Is(err, queue.ErrEntryNotFound):
		msg = "queue entry not found"
	case errors.Is(err, ErrInvalidRoom):
		msg = "invalid room"
	case errors.Is(err, ErrConnectionNotFound):
		return
	default:
		h.log.Error().Err(err).Str("connection_id", c.ID).Msg("frame handling failed")
	}
	h.reply(c, models.ErrorMessage{Type: models.MessageError, Message: msg})
}

// reply sends directly to c; a failed send disconnects it like any other.
func (h *Hub) reply(c *Connection, v any) {
	msg := encode(h.log, v)
	if msg == nil {
		return
	}
	if err := c.Send(msg); err != nil {
		h.log.Warn().Err(err).Str("connection_id", c.ID).Msg("reply failed, evicting")
		h.conns.Disconnect(c.ID)
	}
}

func subscriptionRooms(frame models.ClientFrame) []RoomKey {
	var rooms []RoomKey
	if frame.ServiceID > 0 {
		rooms = append(rooms, ServiceRoom(frame.ServiceID))
	}
	if frame.Department != "" {
		rooms = append(rooms, DepartmentRoom(frame.Department))
	}
	if frame.QueueID != "" {
		rooms = append(rooms, EntryRoom(frame.QueueID))
	}
	return rooms
}

// requiredFields checks the per-type fields struct tags cannot express.
func requiredFields(frame models.ClientFrame) string {
	switch frame.Type {
	case models.FrameJoinRoom, models.FrameLeaveRoom, models.FrameTypingIndicator:
		if frame.Room == "" {
			return frame.Type + " requires room"
		}
	case models.FrameSubscribeQueue, models.FrameUnsubscribeQueue:
		if frame.ServiceID == 0 && frame.QueueID == "" && frame.Department == "" {
			return frame.Type + " requires service_id, queue_id or department"
		}
	case models.FrameRequestQueueUpdate:
		if frame.ServiceID == 0 {
			return frame.Type + " requires service_id"
		}
	}
	return ""
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Sprintf("%s failed %s", verrs[0].Field(), verrs[0].Tag())
	}
	return err.Error()
}

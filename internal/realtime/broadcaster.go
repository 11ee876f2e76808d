package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Publisher enqueues a room broadcast without blocking.
type Publisher interface {
	Publish(room RoomKey, msg []byte, exclude ...string)
}

type delivery struct {
	room    RoomKey
	userID  string
	msg     []byte
	exclude []string
}

/*
|--------------------------------------------------------------------------
| Broadcaster
|--------------------------------------------------------------------------
*/

// Broadcaster fans messages out to room members or to every connection of a user.
// Publish and PublishToUser are delivered by Run in the order they were called.
type Broadcaster struct {
	registry *Registry
	conns    Connections
	outbox   *outbox[delivery]
	recorder Recorder
	log      zerolog.Logger
}

var _ Publisher = (*Broadcaster)(nil)

// NewBroadcaster reads members from registry and evicts failed ones through conns,
// which may be a wrapped registry.
func NewBroadcaster(log zerolog.Logger, registry *Registry, conns Connections) *Broadcaster {
	if conns == nil {
		conns = registry
	}
	return &Broadcaster{
		registry: registry,
		conns:    conns,
		outbox:   newOutbox[delivery](),
		recorder: nopRecorder{},
		log:      log.With().Str("component", "broadcaster").Logger(),
	}
}

func (b *Broadcaster) WithRecorder(r Recorder) *Broadcaster {
	if r != nil {
		b.recorder = r
	}
	return b
}

// BroadcastToRoom sends msg to every member except the excluded connection ids.
// A member whose send fails is disconnected. It returns the number of successful sends.
func (b *Broadcaster) BroadcastToRoom(room RoomKey, msg []byte, exclude ...string) int {
	members := b.registry.Members(room)
	if len(exclude) > 0 {
		members = lo.Reject(members, func(c *Connection, _ int) bool {
			return lo.Contains(exclude, c.ID)
		})
	}
	n := b.deliver(members, msg)
	b.recorder.Delivered("room", n)
	return n
}

func (b *Broadcaster) BroadcastToUser(userID string, msg []byte) int {
	n := b.deliver(b.registry.UserConnections(userID), msg)
	b.recorder.Delivered("user", n)
	return n
}

func (b *Broadcaster) Publish(room RoomKey, msg []byte, exclude ...string) {
	b.outbox.push(delivery{room: room, msg: msg, exclude: exclude})
}

func (b *Broadcaster) PublishToUser(userID string, msg []byte) {
	b.outbox.push(delivery{userID: userID, msg: msg})
}

// Pending is the number of published messages not yet delivered.
func (b *Broadcaster) Pending() int {
	return b.outbox.len()
}

// Run delivers published messages until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	b.log.Info().Msg("broadcaster started")
	b.outbox.run(ctx, func(d delivery) {
		if d.userID != "" {
			b.BroadcastToUser(d.userID, d.msg)
			return
		}
		b.BroadcastToRoom(d.room, d.msg, d.exclude...)
	})
	b.log.Info().Msg("broadcaster stopped")
	return nil
}

func (b *Broadcaster) deliver(conns []*Connection, msg []byte) int {
	delivered := 0
	for _, c := range conns {
		if err := c.Send(msg); err != nil {
			reason := "closed"
			if errors.Is(err, ErrSendBufferFull) {
				reason = "buffer_full"
			}
			b.recorder.SendFailed(reason)
			b.log.Warn().Err(err).Str("connection_id", c.ID).Msg("send failed, evicting")
			if b.conns.Disconnect(c.ID) {
				b.recorder.Evicted("send_failed")
			}
			continue
		}
		delivered++
	}
	return delivered
}

// encode marshals an outbound message, returning nil on failure.
func encode(log zerolog.Logger, v any) []byte {
	msg, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("encode message")
		return nil
	}
	return msg
}

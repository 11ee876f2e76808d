package monitoring

import (
	"time"

	"hospital-queue/internal/realtime"

	"github.com/rs/zerolog"
)

// Connections wraps registry mutations with lifecycle counters and debug logs.
type Connections struct {
	next realtime.Connections
	log  zerolog.Logger
}

var _ realtime.Connections = (*Connections)(nil)

func NewConnections(log zerolog.Logger, next realtime.Connections) *Connections {
	return &Connections{next: next, log: log.With().Str("component", "connections").Logger()}
}

func (c *Connections) Connect(p realtime.ConnectParams) *realtime.Connection {
	conn := c.next.Connect(p)
	connectionEvents.WithLabelValues("connect").Inc()
	return conn
}

func (c *Connections) Disconnect(connectionID string) bool {
	removed := c.next.Disconnect(connectionID)
	if removed {
		connectionEvents.WithLabelValues("disconnect").Inc()
	}
	return removed
}

func (c *Connections) EvictStale(connectionID string, cutoff time.Time) bool {
	removed := c.next.EvictStale(connectionID, cutoff)
	if removed {
		connectionEvents.WithLabelValues("disconnect").Inc()
	}
	return removed
}

func (c *Connections) JoinRoom(connectionID string, room realtime.RoomKey) (bool, error) {
	changed, err := c.next.JoinRoom(connectionID, room)
	if err != nil {
		c.log.Debug().Err(err).Str("connection_id", connectionID).Str("room", string(room)).Msg("join room rejected")
		return changed, err
	}
	if changed {
		connectionEvents.WithLabelValues("join_room").Inc()
		c.log.Debug().Str("connection_id", connectionID).Str("room", string(room)).Msg("joined room")
	}
	return changed, nil
}

func (c *Connections) LeaveRoom(connectionID string, room realtime.RoomKey) (bool, error) {
	changed, err := c.next.LeaveRoom(connectionID, room)
	if err != nil {
		return changed, err
	}
	if changed {
		connectionEvents.WithLabelValues("leave_room").Inc()
		c.log.Debug().Str("connection_id", connectionID).Str("room", string(room)).Msg("left room")
	}
	return changed, nil
}

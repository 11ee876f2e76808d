package realtime

import (
	"sync"
	"sync/atomic"
	"time"
)

/*
|--------------------------------------------------------------------------
| Connection
|--------------------------------------------------------------------------
*/

// Transport is the write side of a client socket. Reads stay with the caller.
type Transport interface {
	WriteText(data []byte) error
	WritePing() error
	Close() error
}

// Connection is one live client session. Messages are queued on a bounded
// buffer and written by Pump; a full buffer is treated as a failed send.
type Connection struct {
	ID        string
	UserID    string
	Username  string
	Role      string
	Type      string
	Metadata  map[string]string
	CreatedAt time.Time

	// rooms is guarded by the owning Registry's lock.
	rooms map[RoomKey]struct{}

	lastHeartbeat atomic.Int64
	malformed     atomic.Int32

	mu     sync.Mutex
	closed bool
	send   chan []byte
	done   chan struct{}
}

func newConnection(id string, p ConnectParams, bufferSize int, now time.Time) *Connection {
	c := &Connection{
		ID:        id,
		UserID:    p.UserID,
		Username:  p.Username,
		Role:      p.Role,
		Type:      p.Type,
		Metadata:  p.Metadata,
		CreatedAt: now,
		rooms:     make(map[RoomKey]struct{}),
		send:      make(chan []byte, bufferSize),
		done:      make(chan struct{}),
	}
	c.lastHeartbeat.Store(now.UnixNano())
	return c
}

// Anonymous connections carry no user identity and never affect presence.
func (c *Connection) Anonymous() bool {
	return c.UserID == ""
}

// Send queues msg without blocking.
func (c *Connection) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Connection) Touch(at time.Time) {
	c.lastHeartbeat.Store(at.UnixNano())
}

func (c *Connection) LastHeartbeat() time.Time {
	return time.Unix(0, c.lastHeartbeat.Load())
}

// Done is closed once the connection has been removed from its registry.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// close reports whether this call closed the connection.
func (c *Connection) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.closed = true
	close(c.done)
	return true
}

// Pump writes queued messages to t until the connection is closed or a write fails.
// Every pingInterval it sends a protocol ping followed by the heartbeat frame.
func (c *Connection) Pump(t Transport, pingInterval time.Duration, heartbeat func() []byte) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return nil
		case msg := <-c.send:
			if err := t.WriteText(msg); err != nil {
				return err
			}
		case <-ticker.C:
			if err := t.WritePing(); err != nil {
				return err
			}
			if heartbeat != nil {
				if err := t.WriteText(heartbeat()); err != nil {
					return err
				}
			}
		}
	}
}

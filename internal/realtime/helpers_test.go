package realtime

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type published struct {
	room    RoomKey
	msg     map[string]any
	exclude []string
}

// capturePublisher records Publish calls instead of delivering them.
type capturePublisher struct {
	mu    sync.Mutex
	items []published
}

func (p *capturePublisher) Publish(room RoomKey, msg []byte, exclude ...string) {
	var decoded map[string]any
	_ = json.Unmarshal(msg, &decoded)
	p.mu.Lock()
	p.items = append(p.items, published{room: room, msg: decoded, exclude: exclude})
	p.mu.Unlock()
}

func (p *capturePublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.items...)
}

func newTestRegistry(opts ...RegistryOption) *Registry {
	return NewRegistry(zerolog.Nop(), opts...)
}

// receive pops the next queued message for c.
func receive(t *testing.T, c *Connection) map[string]any {
	t.Helper()
	select {
	case raw := <-c.send:
		var msg map[string]any
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatalf("no message for connection %s", c.ID)
		return nil
	}
}

func requireNoMessage(t *testing.T, c *Connection) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected message for %s: %s", c.ID, raw)
	default:
	}
}

type recordingTransport struct {
	mu      sync.Mutex
	written []string
	pinged  int
	closed  bool
}

func (t *recordingTransport) WriteText(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.written = append(t.written, string(data))
	return nil
}

func (t *recordingTransport) WritePing() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pinged++
	return nil
}

func (t *recordingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *recordingTransport) texts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.written...)
}

func (t *recordingTransport) pings() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pinged
}

// countingConnections wraps a registry and counts the removals routed through it.
// beforeEvict, when set, runs ahead of every EvictStale.
type countingConnections struct {
	*Registry
	beforeEvict func(connectionID string)

	mu      sync.Mutex
	removed int
}

func (c *countingConnections) Disconnect(connectionID string) bool {
	ok := c.Registry.Disconnect(connectionID)
	c.count(ok)
	return ok
}

func (c *countingConnections) EvictStale(connectionID string, cutoff time.Time) bool {
	if c.beforeEvict != nil {
		c.beforeEvict(connectionID)
	}
	ok := c.Registry.EvictStale(connectionID, cutoff)
	c.count(ok)
	return ok
}

func (c *countingConnections) count(ok bool) {
	if !ok {
		return
	}
	c.mu.Lock()
	c.removed++
	c.mu.Unlock()
}

func (c *countingConnections) removals() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removed
}

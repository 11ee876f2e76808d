package realtime

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"hospital-queue/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const DefaultSendBufferSize = 256

type ConnectParams struct {
	UserID   string
	Username string
	Role     string
	Type     string
	Metadata map[string]string
}

// PresenceChange is emitted when a user's live connection count moves between zero and non-zero.
type PresenceChange struct {
	UserID      string
	Username    string
	Online      bool
	Connections int
	At          time.Time
}

// Connections is the mutating surface of the registry, wrapped by the monitoring layer.
type Connections interface {
	Connect(p ConnectParams) *Connection
	Disconnect(connectionID string) bool
	EvictStale(connectionID string, cutoff time.Time) bool
	JoinRoom(connectionID string, room RoomKey) (bool, error)
	LeaveRoom(connectionID string, room RoomKey) (bool, error)
}

type RegistryOption func(*Registry)

func WithSendBufferSize(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.bufferSize = n
		}
	}
}

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

/*
|--------------------------------------------------------------------------
| Registry
|--------------------------------------------------------------------------
*/

// Registry indexes live connections by id, by room and by user.
// One lock guards all three indices so room membership is always bidirectional.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
	rooms map[RoomKey]map[string]struct{}
	users map[string]map[string]struct{}

	onPresence []func(PresenceChange)
	bufferSize int
	now        func() time.Time
	log        zerolog.Logger
}

var _ Connections = (*Registry)(nil)

func NewRegistry(log zerolog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		conns:      make(map[string]*Connection),
		rooms:      make(map[RoomKey]map[string]struct{}),
		users:      make(map[string]map[string]struct{}),
		bufferSize: DefaultSendBufferSize,
		now:        time.Now,
		log:        log.With().Str("component", "registry").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnPresence registers fn for online/offline transitions. fn runs under the
// registry lock and must not call back into the registry.
func (r *Registry) OnPresence(fn func(PresenceChange)) {
	r.mu.Lock()
	r.onPresence = append(r.onPresence, fn)
	r.mu.Unlock()
}

func (r *Registry) Connect(p ConnectParams) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	c := newConnection(uuid.NewString(), p, r.bufferSize, now)
	r.conns[c.ID] = c

	if !c.Anonymous() {
		set, ok := r.users[c.UserID]
		if !ok {
			set = make(map[string]struct{})
			r.users[c.UserID] = set
		}
		set[c.ID] = struct{}{}
		if len(set) == 1 {
			r.notify(PresenceChange{UserID: c.UserID, Username: c.Username, Online: true, Connections: 1, At: now})
		}
	}

	r.log.Info().Str("connection_id", c.ID).Str("user_id", c.UserID).
		Int("total", len(r.conns)).Msg("connection registered")
	return c
}

// Disconnect removes the connection from every index and closes it.
// It reports false if the connection was already gone.
func (r *Registry) Disconnect(connectionID string) bool {
	r.mu.Lock()
	c, ok := r.conns[connectionID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	left, total := r.remove(c)
	r.mu.Unlock()

	c.close()
	r.log.Info().Str("connection_id", c.ID).Str("user_id", c.UserID).
		Int("rooms_left", left).Int("total", total).Msg("connection removed")
	return true
}

// EvictStale disconnects the connection only if its last heartbeat, read under the write
// lock, is still before cutoff.
func (r *Registry) EvictStale(connectionID string, cutoff time.Time) bool {
	r.mu.Lock()
	c, ok := r.conns[connectionID]
	if !ok || !c.LastHeartbeat().Before(cutoff) {
		r.mu.Unlock()
		return false
	}
	left, total := r.remove(c)
	r.mu.Unlock()

	c.close()
	r.log.Info().Str("connection_id", c.ID).Str("user_id", c.UserID).
		Int("rooms_left", left).Int("total", total).Msg("stale connection removed")
	return true
}

// remove must be called with mu held. It returns the number of rooms left and the
// remaining connection count.
func (r *Registry) remove(c *Connection) (int, int) {
	left := make([]RoomKey, 0, len(c.rooms))
	for room := range c.rooms {
		r.removeMember(room, c.ID)
		left = append(left, room)
	}
	clear(c.rooms)
	delete(r.conns, c.ID)

	if !c.Anonymous() {
		set := r.users[c.UserID]
		delete(set, c.ID)
		if len(set) == 0 {
			delete(r.users, c.UserID)
			r.notify(PresenceChange{UserID: c.UserID, Username: c.Username, Online: false, At: r.now()})
		}
	}

	for _, room := range left {
		r.verify(c, room)
	}
	return len(left), len(r.conns)
}

// JoinRoom reports whether membership changed. Joining twice is a no-op.
func (r *Registry) JoinRoom(connectionID string, room RoomKey) (bool, error) {
	if strings.TrimSpace(string(room)) == "" {
		return false, ErrInvalidRoom
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connectionID]
	if !ok {
		return false, ErrConnectionNotFound
	}
	if _, member := c.rooms[room]; member {
		return false, nil
	}

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	members[c.ID] = struct{}{}
	c.rooms[room] = struct{}{}

	r.verify(c, room)
	return true, nil
}

func (r *Registry) LeaveRoom(connectionID string, room RoomKey) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connectionID]
	if !ok {
		return false, ErrConnectionNotFound
	}
	if _, member := c.rooms[room]; !member {
		return false, nil
	}

	delete(c.rooms, room)
	r.removeMember(room, c.ID)

	r.verify(c, room)
	return true, nil
}

func (r *Registry) Get(connectionID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connectionID]
	return c, ok
}

// Members returns a point-in-time copy of the room's connections.
func (r *Registry) Members(room RoomKey) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.rooms[room])
}

func (r *Registry) UserConnections(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.users[userID])
}

func (r *Registry) Rooms(connectionID string) []RoomKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[connectionID]
	if !ok {
		return nil
	}
	rooms := lo.Keys(c.rooms)
	slices.Sort(rooms)
	return rooms
}

func (r *Registry) IsMember(connectionID string, room RoomKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][connectionID]
	return ok
}

// OnlineUsers lists users with at least one live connection, ordered by user id.
func (r *Registry) OnlineUsers() []models.OnlineUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]models.OnlineUser, 0, len(r.users))
	for userID, set := range r.users {
		var username string
		for id := range set {
			username = r.conns[id].Username
			break
		}
		users = append(users, models.OnlineUser{UserID: userID, Username: username, Connections: len(set)})
	}
	slices.SortFunc(users, func(a, b models.OnlineUser) int {
		return strings.Compare(a.UserID, b.UserID)
	})
	return users
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// Stale returns connections whose last heartbeat is before cutoff.
func (r *Registry) Stale(cutoff time.Time) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []*Connection
	for _, c := range r.conns {
		if c.LastHeartbeat().Before(cutoff) {
			stale = append(stale, c)
		}
	}
	return stale
}

// All returns every live connection.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.conns)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// lookup must be called with mu held.
func (r *Registry) lookup(ids map[string]struct{}) []*Connection {
	out := make([]*Connection, 0, len(ids))
	for id := range ids {
		if c, ok := r.conns[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// removeMember must be called with mu held. Empty rooms are dropped.
func (r *Registry) removeMember(room RoomKey, connectionID string) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// verify must be called with mu held.
func (r *Registry) verify(c *Connection, room RoomKey) {
	_, inRoom := r.rooms[room][c.ID]
	_, inConn := c.rooms[room]
	_, live := r.conns[c.ID]

	switch {
	case inRoom != inConn:
		panic(fmt.Errorf("%w: connection %s room %s (room index %t, connection index %t)",
			ErrRegistryInvariant, c.ID, room, inRoom, inConn))
	case inRoom && !live:
		panic(fmt.Errorf("%w: room %s references removed connection %s", ErrRegistryInvariant, room, c.ID))
	case r.rooms[room] != nil && len(r.rooms[room]) == 0:
		panic(fmt.Errorf("%w: empty room %s retained", ErrRegistryInvariant, room))
	}
}

// notify must be called with mu held.
func (r *Registry) notify(change PresenceChange) {
	for _, fn := range r.onPresence {
		fn(change)
	}
}

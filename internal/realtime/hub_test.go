package realtime

import (
	"context"
	"testing"
	"time"

	"hospital-queue/internal/models"
	"hospital-queue/internal/queue"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type hubFixture struct {
	registry    *Registry
	broadcaster *Broadcaster
	store       *queue.Store
	hub         *Hub
	clock       *manualClock
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	log := zerolog.Nop()
	clock := &manualClock{t: testEpoch}
	registry := newTestRegistry(WithRegistryClock(clock.Now))
	broadcaster := NewBroadcaster(log, registry, nil)
	presence := NewPresenceTracker(log, registry, broadcaster)
	store := newTestStore()
	dispatcher := NewDispatcher(log, broadcaster, time.Second)
	store.Subscribe(dispatcher.Handle)

	hub := NewHub(log, HubConfig{HeartbeatInterval: 30 * time.Second, MaxMalformedFrames: 3},
		registry, nil, broadcaster, presence, store)
	hub.now = clock.Now

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = broadcaster.Run(ctx) }()

	return &hubFixture{registry: registry, broadcaster: broadcaster, store: store, hub: hub, clock: clock}
}

func (f *hubFixture) admit(t *testing.T, p ConnectParams) *Connection {
	t.Helper()
	c := f.hub.Admit(p)
	welcome := receive(t, c)
	require.Equal(t, models.MessageWelcome, welcome["type"])
	return c
}

func (f *hubFixture) send(t *testing.T, c *Connection, frame string) {
	t.Helper()
	require.NoError(t, f.hub.Handle(context.Background(), c, []byte(frame)))
}

func TestHub_Admit_SendsWelcome(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)

	c := f.hub.Admit(ConnectParams{UserID: "u1", Role: "staff"})
	welcome := receive(t, c)
	req.Equal(models.MessageWelcome, welcome["type"])
	req.Equal(c.ID, welcome["connection_id"])
	req.Equal("staff", welcome["role"])
	req.Equal(float64(30), welcome["heartbeat_interval"])

	anon := f.hub.Admit(ConnectParams{})
	req.Equal("anonymous", receive(t, anon)["role"])
}

func TestHub_Ping_RefreshesHeartbeat(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	c := f.admit(t, ConnectParams{})

	f.clock.Advance(time.Minute)
	f.send(t, c, `{"type":"ping"}`)

	req.Equal(models.MessagePong, receive(t, c)["type"])
	req.True(c.LastHeartbeat().Equal(testEpoch.Add(time.Minute)))
}

func TestHub_JoinAndLeaveRoom(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	c := f.admit(t, ConnectParams{UserID: "u1"})

	f.send(t, c, `{"type":"join_room","room":"ward_3"}`)
	joined := receive(t, c)
	req.Equal(models.MessageRoomJoined, joined["type"])
	req.Equal("ward_3", joined["room"])
	req.True(f.registry.IsMember(c.ID, "ward_3"))

	f.send(t, c, `{"type":"leave_room","room":"ward_3"}`)
	req.Equal(models.MessageRoomLeft, receive(t, c)["type"])
	req.Zero(f.registry.RoomCount())
}

func TestHub_SubscribeQueue_SendsCurrentSnapshot(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	_, err := f.store.Join(context.Background(), queue.JoinRequest{ServiceID: 7})
	req.NoError(err)
	c := f.admit(t, ConnectParams{})

	f.send(t, c, `{"type":"subscribe_queue","service_id":7,"department":"Outpatient"}`)

	req.Equal("service_7", receive(t, c)["room"])
	req.Equal("department_outpatient", receive(t, c)["room"])
	snap := receive(t, c)
	req.Equal(models.MessageQueueUpdate, snap["type"])
	req.Equal(float64(1), snap["queue_length"])

	f.send(t, c, `{"type":"unsubscribe_queue","service_id":7}`)
	req.Equal(models.MessageUnsubscribed, receive(t, c)["type"])
	req.False(f.registry.IsMember(c.ID, ServiceRoom(7)))
}

func TestHub_SubscribeQueue_UnknownEntry(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	c := f.admit(t, ConnectParams{})

	f.send(t, c, `{"type":"subscribe_queue","queue_id":"3f1c6f9e-8a51-4a43-9d7c-2a54f1e0b2aa"}`)

	msg := receive(t, c)
	req.Equal(models.MessageError, msg["type"])
	req.Equal("queue entry not found", msg["message"])
	req.Zero(f.registry.RoomCount())
}

func TestHub_SubscribeQueue_UnknownServiceJoinsNothing(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	c := f.admit(t, ConnectParams{})

	// When subscribing to a service that does not exist, together with a department
	f.send(t, c, `{"type":"subscribe_queue","service_id":404,"department":"Outpatient"}`)

	// Then only the error is sent and no room was joined
	msg := receive(t, c)
	req.Equal(models.MessageError, msg["type"])
	req.Equal("service not found", msg["message"])
	requireNoMessage(t, c)
	req.False(f.registry.IsMember(c.ID, ServiceRoom(404)))
	req.Empty(f.registry.Rooms(c.ID))
	req.Zero(f.registry.RoomCount())
}

func TestHub_RequestQueueUpdate(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	c := f.admit(t, ConnectParams{})

	f.send(t, c, `{"type":"request_queue_update","service_id":7}`)
	req.Equal(models.MessageQueueUpdate, receive(t, c)["type"])

	f.send(t, c, `{"type":"request_queue_update","service_id":404}`)
	req.Equal("service not found", receive(t, c)["message"])
}

func TestHub_RequestOnlineUsers(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	c := f.admit(t, ConnectParams{UserID: "u1", Username: "nurse.ani"})
	f.admit(t, ConnectParams{UserID: "u2", Username: "dr.budi"})

	f.send(t, c, `{"type":"request_online_users"}`)

	msg := receive(t, c)
	req.Equal(models.MessageOnlineUsers, msg["type"])
	req.Equal(float64(2), msg["count"])
}

func TestHub_Typing_RelaysToOtherMembers(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	sender := f.admit(t, ConnectParams{UserID: "u1", Username: "nurse.ani"})
	peer := f.admit(t, ConnectParams{UserID: "u2"})
	outsider := f.admit(t, ConnectParams{UserID: "u3"})
	for _, c := range []*Connection{sender, peer} {
		f.send(t, c, `{"type":"join_room","room":"ward_3"}`)
		receive(t, c)
	}

	f.send(t, sender, `{"type":"typing_indicator","room":"ward_3","is_typing":true}`)

	msg := receive(t, peer)
	req.Equal(models.MessageTyping, msg["type"])
	req.Equal("nurse.ani", msg["username"])
	req.Equal(true, msg["is_typing"])
	requireNoMessage(t, sender)

	f.send(t, outsider, `{"type":"typing_indicator","room":"ward_3","is_typing":true}`)
	req.Equal(models.MessageError, receive(t, outsider)["type"])
}

func TestHub_MalformedFrames(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	c := f.admit(t, ConnectParams{})

	// Given a bad frame followed by a good one, the counter resets
	req.NoError(f.hub.Handle(context.Background(), c, []byte(`not json`)))
	req.Equal(models.MessageError, receive(t, c)["type"])
	f.send(t, c, `{"type":"ping"}`)
	receive(t, c)

	// When three consecutive frames are malformed
	frames := []string{`{"type":"dance"}`, `{"type":"join_room"}`, `{"type":"subscribe_queue","queue_id":"nope"}`}
	var err error
	for _, frame := range frames {
		err = f.hub.Handle(context.Background(), c, []byte(frame))
		req.Equal(models.MessageError, receive(t, c)["type"])
	}

	// Then the last one asks the caller to close
	req.ErrorIs(err, ErrTooManyMalformedFrames)
}

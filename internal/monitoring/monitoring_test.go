package monitoring

import (
	"context"
	"testing"
	"time"

	"hospital-queue/internal/models"
	"hospital-queue/internal/queue"
	"hospital-queue/internal/realtime"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newStore() *queue.Store {
	log := zerolog.Nop()
	catalog := queue.NewMemoryCatalog(models.Service{ID: 7, Name: "General Practice", BaselineMinutes: 20, IsActive: true})
	return queue.NewStore(log, catalog, &queue.SequenceNumbers{}, queue.NewEstimator(log, nil, 0))
}

func TestQueue_CountsOutcomes(t *testing.T) {
	req := require.New(t)
	q := NewQueue(zerolog.Nop(), newStore())
	ctx := context.Background()

	joins := testutil.ToFloat64(queueOperations.WithLabelValues("join", "success"))
	rejected := testutil.ToFloat64(queueOperations.WithLabelValues("join", "error"))

	entry, err := q.Join(ctx, queue.JoinRequest{ServiceID: 7})
	req.NoError(err)
	_, err = q.Join(ctx, queue.JoinRequest{ServiceID: 404})
	req.ErrorIs(err, queue.ErrServiceNotFound)

	req.Equal(joins+1, testutil.ToFloat64(queueOperations.WithLabelValues("join", "success")))
	req.Equal(rejected+1, testutil.ToFloat64(queueOperations.WithLabelValues("join", "error")))

	// The wrapper passes results through untouched
	pos, err := q.Position(ctx, entry.ID)
	req.NoError(err)
	req.Equal(1, pos)
	called, err := q.CallNext(ctx, 7)
	req.NoError(err)
	req.Equal(entry.ID, called.ID)
	_, err = q.UpdateStatus(ctx, entry.ID, models.StatusServing)
	req.NoError(err)
	snap, err := q.Snapshot(ctx, 7)
	req.NoError(err)
	req.Equal(1, snap.CurrentlyServing)
}

func TestConnections_CountsLifecycle(t *testing.T) {
	req := require.New(t)
	registry := realtime.NewRegistry(zerolog.Nop())
	conns := NewConnections(zerolog.Nop(), registry)

	connects := testutil.ToFloat64(connectionEvents.WithLabelValues("connect"))
	joins := testutil.ToFloat64(connectionEvents.WithLabelValues("join_room"))
	disconnects := testutil.ToFloat64(connectionEvents.WithLabelValues("disconnect"))

	c := conns.Connect(realtime.ConnectParams{UserID: "u1"})
	_, err := conns.JoinRoom(c.ID, realtime.ServiceRoom(7))
	req.NoError(err)
	_, err = conns.JoinRoom(c.ID, realtime.ServiceRoom(7))
	req.NoError(err)
	req.True(conns.Disconnect(c.ID))
	req.False(conns.Disconnect(c.ID))

	req.Equal(connects+1, testutil.ToFloat64(connectionEvents.WithLabelValues("connect")))
	req.Equal(joins+1, testutil.ToFloat64(connectionEvents.WithLabelValues("join_room")))
	req.Equal(disconnects+1, testutil.ToFloat64(connectionEvents.WithLabelValues("disconnect")))
}

func TestConnections_CountsEvictions(t *testing.T) {
	req := require.New(t)
	registry := realtime.NewRegistry(zerolog.Nop(), realtime.WithSendBufferSize(1))
	conns := NewConnections(zerolog.Nop(), registry)
	broadcaster := realtime.NewBroadcaster(zerolog.Nop(), registry, conns)
	disconnects := testutil.ToFloat64(connectionEvents.WithLabelValues("disconnect"))

	// Given one silent connection and one with a full buffer
	silent := conns.Connect(realtime.ConnectParams{UserID: "u1"})
	slow := conns.Connect(realtime.ConnectParams{UserID: "u2"})
	_, err := conns.JoinRoom(slow.ID, realtime.ServiceRoom(7))
	req.NoError(err)
	req.NoError(slow.Send([]byte(`{}`)))

	// When the heartbeat and the broadcaster evict them
	req.False(conns.EvictStale(silent.ID, silent.LastHeartbeat()))
	req.True(conns.EvictStale(silent.ID, silent.LastHeartbeat().Add(time.Second)))
	req.Zero(broadcaster.BroadcastToRoom(realtime.ServiceRoom(7), []byte(`{}`)))

	// Then both count as disconnects
	req.Equal(disconnects+2, testutil.ToFloat64(connectionEvents.WithLabelValues("disconnect")))
	req.Zero(registry.Count())
}

func TestMonitor_CollectAndRecord(t *testing.T) {
	req := require.New(t)
	registry := realtime.NewRegistry(zerolog.Nop())
	broadcaster := realtime.NewBroadcaster(zerolog.Nop(), registry, nil)
	monitor := NewMonitor(registry, broadcaster)

	c := registry.Connect(realtime.ConnectParams{UserID: "u1"})
	_, err := registry.JoinRoom(c.ID, realtime.PresenceRoom)
	req.NoError(err)

	monitor.Collect()
	req.Equal(float64(1), testutil.ToFloat64(activeConnections))
	req.Equal(float64(1), testutil.ToFloat64(activeRooms))
	req.Equal(float64(1), testutil.ToFloat64(onlineUsers))

	before := testutil.ToFloat64(evictions.WithLabelValues("heartbeat_timeout"))
	monitor.Evicted("heartbeat_timeout")
	req.Equal(before+1, testutil.ToFloat64(evictions.WithLabelValues("heartbeat_timeout")))

	delivered := testutil.ToFloat64(messagesDelivered.WithLabelValues("room"))
	monitor.Delivered("room", 3)
	req.Equal(delivered+3, testutil.ToFloat64(messagesDelivered.WithLabelValues("room")))
}

package handler

import (
	"context"
	"net"
	"testing"
	"time"

	"hospital-queue/internal/models"
	"hospital-queue/internal/queue"
	"hospital-queue/internal/realtime"

	fws "github.com/fasthttp/websocket"
	"github.com/stretchr/testify/require"
)

func (f *fixture) serve(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = f.app.Listener(ln) }()
	t.Cleanup(func() { _ = f.app.Shutdown() })
	return ln.Addr().String()
}

func dial(t *testing.T, url string) *fws.Conn {
	t.Helper()
	conn, _, err := fws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readType(t *testing.T, conn *fws.Conn, want string) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		if msg["type"] == want {
			return msg
		}
	}
}

func TestWebSocket_SubscribeAndReceiveUpdates(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	addr := f.serve(t)

	// Given a staff console connected with a token
	tok := bearer(t, "staff")[len("Bearer "):]
	conn := dial(t, "ws://"+addr+"/ws?token="+tok)

	welcome := readType(t, conn, models.MessageWelcome)
	req.Equal("staff-1", welcome["user_id"])
	req.Equal("staff", welcome["role"])

	// When it subscribes to service 7
	req.NoError(conn.WriteJSON(map[string]any{"type": "subscribe_queue", "service_id": 7}))
	req.Equal("service_7", readType(t, conn, models.MessageSubscribed)["room"])
	req.Equal(float64(0), readType(t, conn, models.MessageQueueUpdate)["queue_length"])

	// Then a join shows up as a queue_update
	_, err := f.store.Join(context.Background(), queue.JoinRequest{ServiceID: 7, Priority: models.PriorityUrgent})
	req.NoError(err)
	update := readType(t, conn, models.MessageQueueUpdate)
	req.Equal(float64(1), update["queue_length"])
	req.Equal("joined", update["event"])

	// And ping is answered
	req.NoError(conn.WriteJSON(map[string]any{"type": "ping"}))
	readType(t, conn, models.MessagePong)
}

func TestWebSocket_DisconnectCleansUp(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	addr := f.serve(t)

	conn := dial(t, "ws://"+addr+"/ws")
	readType(t, conn, models.MessageWelcome)
	req.NoError(conn.WriteJSON(map[string]any{"type": "join_room", "room": "ward_3"}))
	readType(t, conn, models.MessageRoomJoined)
	req.Equal(1, f.registry.Count())

	req.NoError(conn.Close())

	require.Eventually(t, func() bool {
		return f.registry.Count() == 0 && f.registry.RoomCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_MalformedFramesClose(t *testing.T) {
	f := newFixture(t)
	addr := f.serve(t)

	conn := dial(t, "ws://"+addr+"/ws")
	readType(t, conn, models.MessageWelcome)
	for i := 0; i < realtime.DefaultMaxMalformedFrames; i++ {
		require.NoError(t, conn.WriteMessage(fws.TextMessage, []byte("garbage")))
	}

	require.Eventually(t, func() bool { return f.registry.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

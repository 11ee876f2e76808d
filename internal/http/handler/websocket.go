package handler

import (
	"context"
	"errors"
	"time"

	"hospital-queue/internal/http/middleware"
	"hospital-queue/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
)

const (
	writeWait    = 5 * time.Second
	frameTimeout = 5 * time.Second
)

/*
|--------------------------------------------------------------------------
| WebSocket Transport
|--------------------------------------------------------------------------
*/

type wsTransport struct {
	conn *websocket.Conn
}

func (t wsTransport) WriteText(data []byte) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t wsTransport) WritePing() error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.PingMessage, nil)
}

func (t wsTransport) Close() error {
	return t.conn.Close()
}

/*
|--------------------------------------------------------------------------
| WebSocket Handler
|--------------------------------------------------------------------------
*/

type WebSocketHandler struct {
	hub          *realtime.Hub
	pingInterval time.Duration
	readTimeout  time.Duration
	log          zerolog.Logger
}

func NewWebSocketHandler(log zerolog.Logger, hub *realtime.Hub, pingInterval, readTimeout time.Duration) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		pingInterval: pingInterval,
		readTimeout:  readTimeout,
		log:          log.With().Str("component", "websocket").Logger(),
	}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *WebSocketHandler) Handler() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *WebSocketHandler) serve(conn *websocket.Conn) {
	params := realtime.ConnectParams{
		Type:     conn.Query("type", "client"),
		Metadata: map[string]string{"remote_addr": conn.RemoteAddr().String()},
	}
	if id, ok := conn.Locals(middleware.IdentityKey).(middleware.Identity); ok {
		params.UserID = id.UserID
		params.Username = id.Username
		params.Role = id.Role
	}

	c := h.hub.Admit(params)
	log := h.log.With().Str("connection_id", c.ID).Str("user_id", c.UserID).Logger()
	log.Info().Str("remote_addr", params.Metadata["remote_addr"]).Msg("websocket connected")

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		if err := c.Pump(wsTransport{conn: conn}, h.pingInterval, h.hub.Heartbeat); err != nil {
			log.Warn().Err(err).Msg("write failed")
			h.hub.Release(c)
		}
		// Unblocks the read loop when the connection was evicted elsewhere.
		_ = conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		c.Touch(time.Now())
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure,
			) {
				log.Warn().Err(err).Msg("unexpected close")
			} else {
				log.Info().Msg("websocket closed")
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		if mt != websocket.TextMessage {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
		err = h.hub.Handle(ctx, c, msg)
		cancel()
		if errors.Is(err, realtime.ErrTooManyMalformedFrames) {
			log.Warn().Msg("closing after repeated malformed frames")
			break
		}
	}

	h.hub.Release(c)
	<-pumpDone
}

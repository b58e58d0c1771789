package fanout

import (
	"context"
	"errors"
	"net/http"
	"time"

	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	authFrameTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second

	frameAuth        = "auth"
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	frameReady       = "ready"
)

var errAuthFrame = errors.New("first frame must be an auth frame")

// clientFrame is anything a websocket client may send.
type clientFrame struct {
	Type      string   `json:"type"`
	Token     string   `json:"token,omitempty"`
	SectorIDs []string `json:"sectorIds,omitempty"`
}

// Transport exposes the hub over websocket and server-sent events.
type Transport struct {
	hub     *Hub
	jwt     config.JWTConfig
	origins []string
	log     *logger.Logger
}

// NewTransport builds the connection-accept path. origins are the allowed
// websocket Origin host patterns; empty allows any origin.
func NewTransport(hub *Hub, jwt config.JWTConfig, origins []string, log *logger.Logger) *Transport {
	return &Transport{hub: hub, jwt: jwt, origins: origins, log: log}
}

// WebSocket upgrades the request. The client must send
// {"type":"auth","token":"..."} first; an invalid token closes the socket.
// Afterwards {"type":"subscribe","sectorIds":[...]} joins sector channels.
func (t *Transport) WebSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := websocket.Accept(rawWriter(c), c.Request, t.acceptOptions())
		if err != nil {
			t.log.Warn("websocket accept failed", "error", err)
			return
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		userID, err := t.authenticate(ctx, ws)
		if err != nil {
			t.log.Debug("websocket auth rejected", "error", err)
			_ = ws.Close(websocket.StatusPolicyViolation, "unauthorized")
			return
		}

		conn := t.hub.Register(userID)
		defer t.hub.Unregister(conn)

		if err := t.write(ctx, ws, Message{Type: frameReady}); err != nil {
			return
		}

		go t.writeLoop(ctx, cancel, ws, conn)
		t.readLoop(ctx, ws, conn)

		_ = ws.Close(websocket.StatusNormalClosure, "")
	}
}

// rawWriter returns the net/http writer behind gin's. gin refuses to hijack
// once headers are flushed, and the accept handshake flushes them first.
func rawWriter(c *gin.Context) http.ResponseWriter {
	if u, ok := c.Writer.(interface{ Unwrap() http.ResponseWriter }); ok {
		return u.Unwrap()
	}
	return c.Writer
}

func (t *Transport) acceptOptions() *websocket.AcceptOptions {
	if len(t.origins) == 0 {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	return &websocket.AcceptOptions{OriginPatterns: t.origins}
}

func (t *Transport) authenticate(ctx context.Context, ws *websocket.Conn) (uuid.UUID, error) {
	actx, cancel := context.WithTimeout(ctx, authFrameTimeout)
	defer cancel()

	var frame clientFrame
	if err := wsjson.Read(actx, ws, &frame); err != nil {
		return uuid.Nil, err
	}
	if frame.Type != frameAuth || frame.Token == "" {
		return uuid.Nil, errAuthFrame
	}
	userID, _, err := httpkit.ParseAccessToken(frame.Token, t.jwt)
	if err != nil {
		return uuid.Nil, err
	}
	return userID, nil
}

func (t *Transport) readLoop(ctx context.Context, ws *websocket.Conn, conn *Conn) {
	for {
		var frame clientFrame
		if err := wsjson.Read(ctx, ws, &frame); err != nil {
			return
		}
		switch frame.Type {
		case frameSubscribe:
			t.hub.Join(conn, frame.SectorIDs)
		case frameUnsubscribe:
			t.hub.Leave(conn, frame.SectorIDs)
		default:
			t.log.Debug("websocket frame ignored", "type", frame.Type, "conn_id", conn.ID())
		}
	}
}

func (t *Transport) writeLoop(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn, conn *Conn) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
			_ = ws.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case msg := <-conn.Messages():
			if err := t.write(ctx, ws, msg); err != nil {
				t.log.FanoutDropped(msg.Type, conn.ID(), err.Error())
				return
			}
		}
	}
}

func (t *Transport) write(ctx context.Context, ws *websocket.Conn, msg Message) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, ws, msg)
}

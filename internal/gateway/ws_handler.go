package gateway

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/kit/log"
)

// HandleHertzConnection handles a WebSocket connection from Hertz using
// hertz-contrib/websocket
func (s *WsServer) HandleHertzConnection(ctx context.Context, c *app.RequestContext, upgrader *websocket.HertzUpgrader) {
	// Check connection limit
	if s.onlineConnNum.Load() >= s.maxConnNum {
		c.String(503, "connection limit exceeded")
		return
	}

	// The credential arrives either as a query parameter or a bearer header
	token := string(c.Query(QueryToken))
	if token == "" {
		authHeader := string(c.GetHeader("Authorization"))
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}

	if token == "" {
		c.String(400, "missing token")
		return
	}

	claims, err := s.authenticate(token)
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: %v", err)
		c.String(401, "unauthorized")
		return
	}

	// Upgrade connection using hertz-contrib/websocket
	err = upgrader.Upgrade(c, func(conn *websocket.Conn) {
		connId := uuid.New().String()
		wsConn := NewHertzWebSocketClientConn(conn, s.cfg.WebSocket.MaxMessageSize, s.cfg.WebSocket.PongWait, s.cfg.WebSocket.PingPeriod, s.cfg.WebSocket.WriteChannelSize)
		client := NewClient(wsConn, claims.UserId, connId, s)

		// Register client
		s.registerChan <- client

		// Start client (blocking, handles the event loop)
		client.readLoop()
	})

	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}
}

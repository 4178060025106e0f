package gateway

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"
	"github.com/workhive/chat-server/internal/config"
	"github.com/workhive/chat-server/internal/service"
	"github.com/workhive/chat-server/pkg/constant"
	"github.com/workhive/chat-server/pkg/jwt"
)

// WsServer is the WebSocket connection gateway. It authenticates
// handshakes, owns the presence registry and room hub, and fans committed
// events out to users' private channels.
type WsServer struct {
	upgrader       *websocket.Upgrader
	cfg            *config.Config
	presence       *PresenceRegistry
	rooms          *RoomHub
	registerChan   chan *Client
	unregisterChan chan *Client
	pushChan       chan *PushTask
	chatService    *service.ChatService
	onlineConnNum  atomic.Int64
	maxConnNum     int64
}

// PushTask represents an event push to a set of users
type PushTask struct {
	UserIds []string
	Event   string
	Payload interface{}
}

// NewWsServer creates a new WebSocket server
func NewWsServer(cfg *config.Config, rdb *redis.Client, chatService *service.ChatService) *WsServer {
	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	server := &WsServer{
		upgrader:       upgrader,
		cfg:            cfg,
		presence:       NewPresenceRegistry(rdb),
		rooms:          NewRoomHub(),
		registerChan:   make(chan *Client, 1000),
		unregisterChan: make(chan *Client, 1000),
		pushChan:       make(chan *PushTask, cfg.WebSocket.PushChannelSize),
		chatService:    chatService,
		maxConnNum:     cfg.WebSocket.MaxConnNum,
	}

	return server
}

// Run starts the WebSocket server
func (s *WsServer) Run(ctx context.Context) {
	// Start event loop
	go s.eventLoop(ctx)
	// Start push workers
	workerNum := s.cfg.WebSocket.PushWorkerNum
	if workerNum <= 0 {
		workerNum = 10
	}
	for i := 0; i < workerNum; i++ {
		go s.pushLoop(ctx)
	}
	log.Info("started %d push workers", workerNum)
}

// eventLoop handles client registration and unregistration
func (s *WsServer) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-s.registerChan:
			s.registerClient(ctx, client)
		case client := <-s.unregisterChan:
			s.unregisterClient(ctx, client)
		}
	}
}

// pushLoop handles async event pushing
func (s *WsServer) pushLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.pushChan:
			s.processPushTask(ctx, task)
		}
	}
}

// processPushTask processes a single push task
func (s *WsServer) processPushTask(ctx context.Context, task *PushTask) {
	for _, userId := range task.UserIds {
		clients, ok := s.presence.GetAll(userId)
		if !ok {
			continue
		}

		for _, client := range clients {
			if err := client.PushEvent(task.Event, task.Payload); err != nil {
				log.CtxDebug(ctx, "push to client failed: user_id=%s, conn_id=%s, event=%s, error=%v",
					userId, client.ConnId, task.Event, err)
			}
		}
	}
}

// registerClient registers a client, broadcasting presence only on the
// offline->online edge
func (s *WsServer) registerClient(ctx context.Context, client *Client) {
	cameOnline := s.presence.Register(ctx, client)
	s.onlineConnNum.Add(1)

	if cameOnline {
		s.broadcastPresence(ctx, client.UserId, true)
	}

	if err := client.PushEvent(constant.EventConnected, &ConnectedEvent{UserId: client.UserId}); err != nil {
		log.CtxDebug(ctx, "push connected event failed: user_id=%s, error=%v", client.UserId, err)
	}

	log.CtxInfo(ctx, "client registered: user_id=%s, conn_id=%s, came_online=%v, online_users=%d, online_conns=%d",
		client.UserId, client.ConnId, cameOnline, s.presence.OnlineUserCount(), s.onlineConnNum.Load())
}

// unregisterClient unregisters a client, broadcasting presence only on the
// online->offline edge
func (s *WsServer) unregisterClient(ctx context.Context, client *Client) {
	s.rooms.LeaveAll(client)
	wentOffline := s.presence.Unregister(ctx, client)
	s.onlineConnNum.Add(-1)

	if wentOffline {
		s.broadcastPresence(ctx, client.UserId, false)
	}

	log.CtxInfo(ctx, "client unregistered: user_id=%s, conn_id=%s, went_offline=%v, online_users=%d, online_conns=%d",
		client.UserId, client.ConnId, wentOffline, s.presence.OnlineUserCount(), s.onlineConnNum.Load())
}

// broadcastPresence announces a presence edge to every connected client
func (s *WsServer) broadcastPresence(ctx context.Context, userId string, online bool) {
	event := &PresenceEvent{UserId: userId, Online: online}
	for _, client := range s.presence.AllClients() {
		if client.UserId == userId {
			continue
		}
		if err := client.PushEvent(constant.EventPresence, event); err != nil {
			log.CtxDebug(ctx, "push presence failed: user_id=%s, error=%v", client.UserId, err)
		}
	}
}

// UnregisterClient queues client for unregistration
func (s *WsServer) UnregisterClient(client *Client) {
	select {
	case s.unregisterChan <- client:
	default:
		log.Warn("unregister channel full: user_id=%s", client.UserId)
	}
}

// authenticate resolves the bearer credential supplied at handshake time.
// Missing or invalid credentials abort the connection before any event is
// serviced.
func (s *WsServer) authenticate(token string) (*jwt.Claims, error) {
	return jwt.ParseToken(token, s.cfg.JWT.Secret)
}

// HandleConnection handles a new WebSocket connection over net/http
func (s *WsServer) HandleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	// Check connection limit
	if s.onlineConnNum.Load() >= s.maxConnNum {
		http.Error(w, "connection limit exceeded", http.StatusServiceUnavailable)
		return
	}

	token := r.URL.Query().Get(QueryToken)
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	claims, err := s.authenticate(token)
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: %v", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Upgrade connection
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}

	// Create client
	connId := uuid.New().String()
	wsConn := NewWebSocketClientConn(conn, s.cfg.WebSocket.MaxMessageSize, s.cfg.WebSocket.PongWait, s.cfg.WebSocket.PingPeriod, s.cfg.WebSocket.WriteChannelSize)
	client := NewClient(wsConn, claims.UserId, connId, s)

	// Register client
	s.registerChan <- client

	// Start client
	client.Start()
}

// AsyncPushToUsers queues an event push to users' private channels.
// Implements service.EventPusher.
func (s *WsServer) AsyncPushToUsers(userIds []string, event string, payload interface{}) {
	task := &PushTask{
		UserIds: userIds,
		Event:   event,
		Payload: payload,
	}

	select {
	case s.pushChan <- task:
		// Successfully queued
	default:
		// Queue full, log warning
		log.Warn("push channel full, event dropped: event=%s", event)
	}
}

// IsOnline implements service.PresenceView
func (s *WsServer) IsOnline(ctx context.Context, userId string) bool {
	return s.presence.IsOnline(ctx, userId)
}

// InConversation implements service.PresenceView
func (s *WsServer) InConversation(conversationId, userId string) bool {
	return s.rooms.UserInRoom(conversationId, userId)
}

// GetOnlineUserCount returns online user count
func (s *WsServer) GetOnlineUserCount() int64 {
	return int64(s.presence.OnlineUserCount())
}

// GetOnlineConnCount returns online connection count
func (s *WsServer) GetOnlineConnCount() int64 {
	return s.onlineConnNum.Load()
}

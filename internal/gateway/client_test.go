package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workhive/chat-server/internal/config"
	"github.com/workhive/chat-server/internal/entity"
	"github.com/workhive/chat-server/internal/service"
	"github.com/workhive/chat-server/pkg/constant"
	"github.com/workhive/chat-server/pkg/errcode"
)

// fakeConn is a scripted ClientConn that records every write
type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func (c *fakeConn) ReadMessage() ([]byte, error) { return nil, ErrConnClosed }

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	c.writes = append(c.writes, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

// lastWrite decodes the most recent frame written to the connection
func (c *fakeConn) lastWrite(t *testing.T) *wireFrame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.writes)

	var frame wireFrame
	require.NoError(t, json.Unmarshal(c.writes[len(c.writes)-1], &frame))
	return &frame
}

// wireFrame mirrors the response envelope with a raw payload for assertions
type wireFrame struct {
	Event   string          `json:"event"`
	OpId    string          `json:"op_id"`
	OK      bool            `json:"ok"`
	ErrCode int             `json:"err_code"`
	ErrMsg  string          `json:"err_msg"`
	Data    json.RawMessage `json:"data"`
}

// memConvStore and memMsgStore back the gateway tests with just enough
// store behavior for the dispatch paths

type memConvStore struct {
	mu    sync.Mutex
	convs map[string]*entity.Conversation
	next  int
}

func newMemConvStore() *memConvStore {
	return &memConvStore{convs: make(map[string]*entity.Conversation)}
}

func (s *memConvStore) GetById(ctx context.Context, id string) (*entity.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convs[id], nil
}

func (s *memConvStore) GetByPair(ctx context.Context, userA, userB string) (*entity.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	low, high := entity.SortPair(userA, userB)
	for _, c := range s.convs {
		if c.UserLow == low && c.UserHigh == high {
			return c, nil
		}
	}
	return nil, nil
}

func (s *memConvStore) GetOrCreate(ctx context.Context, userA, userB string) (*entity.Conversation, error) {
	if conv, _ := s.GetByPair(ctx, userA, userB); conv != nil {
		return conv, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	low, high := entity.SortPair(userA, userB)
	s.next++
	conv := &entity.Conversation{Id: fmt.Sprintf("conv-%d", s.next), UserLow: low, UserHigh: high}
	s.convs[conv.Id] = conv
	return conv, nil
}

func (s *memConvStore) ListByUser(ctx context.Context, userId string) ([]*entity.Conversation, error) {
	return nil, nil
}

func (s *memConvStore) ApplyMessage(ctx context.Context, conv *entity.Conversation, last entity.LastMessage, incrementFor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.convs[conv.Id]
	c.LastMsgId = last.MessageId
	c.LastMsgText = last.Text
	c.LastMsgAt = last.SendAt
	switch incrementFor {
	case c.UserLow:
		c.UnreadLow++
	case c.UserHigh:
		c.UnreadHigh++
	}
	return nil
}

func (s *memConvStore) ResetUnread(ctx context.Context, conv *entity.Conversation, userId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.convs[conv.Id]
	switch userId {
	case c.UserLow:
		c.UnreadLow = 0
	case c.UserHigh:
		c.UnreadHigh = 0
	}
	return nil
}

type memMsgStore struct {
	mu       sync.Mutex
	messages []*entity.Message
}

func (s *memMsgStore) CreateIdempotent(ctx context.Context, msg *entity.Message) (*entity.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ConversationId == msg.ConversationId && m.ClientMsgId == msg.ClientMsgId {
			return m, false, nil
		}
	}
	cp := *msg
	s.messages = append(s.messages, &cp)
	return &cp, true, nil
}

func (s *memMsgStore) MarkDelivered(ctx context.Context, conversationId, recvId string, at int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for _, m := range s.messages {
		if m.ConversationId == conversationId && m.RecvId == recvId && m.Status == constant.MsgStatusSent {
			m.Status = constant.MsgStatusDelivered
			m.DeliveredAt = at
			affected++
		}
	}
	return affected, nil
}

func (s *memMsgStore) MarkRead(ctx context.Context, conversationId, recvId string, at int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for _, m := range s.messages {
		if m.ConversationId == conversationId && m.RecvId == recvId && m.Status < constant.MsgStatusRead {
			m.Status = constant.MsgStatusRead
			m.ReadAt = at
			affected++
		}
	}
	return affected, nil
}

func (s *memMsgStore) ListByConversation(ctx context.Context, conversationId, beforeId string, limit int) ([]*entity.Message, error) {
	return nil, nil
}

func newTestServer() (*WsServer, *memConvStore, *memMsgStore) {
	cfg := &config.Config{}
	cfg.WebSocket.MaxConnNum = 100
	cfg.WebSocket.PushChannelSize = 64
	cfg.WebSocket.PushWorkerNum = 1

	convStore := newMemConvStore()
	msgStore := &memMsgStore{}
	chatService := service.NewChatService(convStore, msgStore)

	server := NewWsServer(cfg, nil, chatService)
	chatService.SetPresence(server)
	chatService.SetPusher(server)
	return server, convStore, msgStore
}

// connect registers a client directly against the presence registry so
// dispatch tests stay synchronous
func connect(server *WsServer, userId, connId string) (*Client, *fakeConn) {
	conn := &fakeConn{}
	client := NewClient(conn, userId, connId, server)
	server.presence.Register(context.Background(), client)
	return client, conn
}

// drainPushes delivers every queued push task synchronously
func drainPushes(server *WsServer) {
	for {
		select {
		case task := <-server.pushChan:
			server.processPushTask(context.Background(), task)
		default:
			return
		}
	}
}

func event(t *testing.T, name, opId string, payload interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(&WSRequest{Event: name, OpId: opId, Data: data})
	require.NoError(t, err)
	return frame
}

func TestDispatchInvalidProtocol(t *testing.T) {
	server, _, _ := newTestServer()
	client, conn := connect(server, "alice", "conn-1")

	client.handleMessage([]byte("not json"))
	frame := conn.lastWrite(t)
	assert.False(t, frame.OK)
	assert.Equal(t, errcode.ErrInvalidProtocol.Code, frame.ErrCode)

	client.handleMessage(event(t, "unknown_event", "op-1", nil))
	frame = conn.lastWrite(t)
	assert.False(t, frame.OK)
	assert.Equal(t, "op-1", frame.OpId)
	assert.Equal(t, errcode.ErrInvalidProtocol.Code, frame.ErrCode)
}

func TestDispatchSendAndReceive(t *testing.T) {
	server, _, _ := newTestServer()
	alice, aliceConn := connect(server, "alice", "conn-1")
	_, bobConn := connect(server, "bob", "conn-2")

	alice.handleMessage(event(t, constant.EventSendMessage, "op-1", &service.SendMessageRequest{
		RecvId:      "bob",
		ClientMsgId: "c1",
		Text:        "hello",
	}))
	drainPushes(server)

	// Sender gets an ok ack carrying the stored message
	ack := aliceConn.lastWrite(t)
	assert.Equal(t, constant.EventSendMessage, ack.Event)
	assert.Equal(t, "op-1", ack.OpId)
	assert.True(t, ack.OK)

	var info entity.MessageInfo
	require.NoError(t, json.Unmarshal(ack.Data, &info))
	assert.Equal(t, "hello", info.Text)
	// Bob holds a live connection, so the message lands delivered
	assert.Equal(t, "delivered", info.Status)

	// Receiver gets new_message and conversation_updated pushes
	bobConn.mu.Lock()
	events := make(map[string]bool)
	for _, w := range bobConn.writes {
		var frame wireFrame
		require.NoError(t, json.Unmarshal(w, &frame))
		events[frame.Event] = true
	}
	bobConn.mu.Unlock()
	assert.True(t, events[constant.EventNewMessage])
	assert.True(t, events[constant.EventConversationUpdated])
}

func TestDispatchJoinDeliversAndSuppressesUnread(t *testing.T) {
	server, convStore, msgStore := newTestServer()
	alice, _ := connect(server, "alice", "conn-1")
	bob, _ := connect(server, "bob", "conn-2")

	alice.handleMessage(event(t, constant.EventSendMessage, "op-1", &service.SendMessageRequest{
		RecvId: "bob", ClientMsgId: "c1", Text: "one",
	}))
	drainPushes(server)

	conv, err := convStore.GetByPair(context.Background(), "alice", "bob")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.EqualValues(t, 1, conv.UnreadFor("bob"))

	bob.handleMessage(event(t, constant.EventJoinConversation, "op-2", &JoinConversationReq{
		ConversationId: conv.Id,
	}))
	drainPushes(server)
	assert.True(t, server.InConversation(conv.Id, "bob"))

	// Messages sent while bob has the thread open do not bump the counter
	alice.handleMessage(event(t, constant.EventSendMessage, "op-3", &service.SendMessageRequest{
		RecvId: "bob", ClientMsgId: "c2", Text: "two",
	}))
	drainPushes(server)
	assert.EqualValues(t, 1, conv.UnreadFor("bob"))

	bob.handleMessage(event(t, constant.EventMarkRead, "op-4", &MarkReadReq{ConversationId: conv.Id}))
	drainPushes(server)
	assert.EqualValues(t, 0, conv.UnreadFor("bob"))
	for _, m := range msgStore.messages {
		assert.EqualValues(t, constant.MsgStatusRead, m.Status)
	}

	bob.handleMessage(event(t, constant.EventLeaveConversation, "op-5", &LeaveConversationReq{
		ConversationId: conv.Id,
	}))
	assert.False(t, server.InConversation(conv.Id, "bob"))
}

func TestDispatchJoinUnauthorized(t *testing.T) {
	server, convStore, _ := newTestServer()
	mallory, conn := connect(server, "mallory", "conn-1")

	conv, err := convStore.GetOrCreate(context.Background(), "alice", "bob")
	require.NoError(t, err)

	mallory.handleMessage(event(t, constant.EventJoinConversation, "op-1", &JoinConversationReq{
		ConversationId: conv.Id,
	}))
	frame := conn.lastWrite(t)
	assert.False(t, frame.OK)
	assert.Equal(t, errcode.ErrNotParticipant.Code, frame.ErrCode)
	assert.False(t, server.InConversation(conv.Id, "mallory"))
}

func TestDispatchTyping(t *testing.T) {
	server, convStore, _ := newTestServer()
	alice, _ := connect(server, "alice", "conn-1")
	_, bobConn := connect(server, "bob", "conn-2")

	conv, err := convStore.GetOrCreate(context.Background(), "alice", "bob")
	require.NoError(t, err)

	alice.handleMessage(event(t, constant.EventTyping, "op-1", &TypingReq{
		ConversationId: conv.Id,
		ToUserId:       "bob",
		IsTyping:       true,
	}))
	drainPushes(server)

	frame := bobConn.lastWrite(t)
	assert.Equal(t, constant.EventTyping, frame.Event)

	var typing TypingEvent
	require.NoError(t, json.Unmarshal(frame.Data, &typing))
	assert.Equal(t, "alice", typing.FromUserId)
	assert.True(t, typing.IsTyping)
}

func TestDispatchRelay(t *testing.T) {
	server, _, _ := newTestServer()
	alice, _ := connect(server, "alice", "conn-1")
	_, bobConn := connect(server, "bob", "conn-2")

	payload := map[string]interface{}{"to_user_id": "bob", "sdp": "v=0..."}
	alice.handleMessage(event(t, constant.EventWebrtcOffer, "op-1", payload))
	drainPushes(server)

	frame := bobConn.lastWrite(t)
	assert.Equal(t, constant.EventWebrtcOffer, frame.Event)

	var relay RelayEvent
	require.NoError(t, json.Unmarshal(frame.Data, &relay))
	assert.Equal(t, "alice", relay.From)
	assert.Contains(t, string(relay.Data), "sdp")
}

func TestRegisterUnregisterPresenceBroadcast(t *testing.T) {
	server, _, _ := newTestServer()
	ctx := context.Background()

	watcherConn := &fakeConn{}
	watcher := NewClient(watcherConn, "watcher", "conn-0", server)
	server.registerClient(ctx, watcher)

	conn := &fakeConn{}
	client := NewClient(conn, "alice", "conn-1", server)
	server.registerClient(ctx, client)

	// The new connection got the handshake event
	assert.Equal(t, constant.EventConnected, conn.lastWrite(t).Event)

	// The watcher saw alice come online
	frame := watcherConn.lastWrite(t)
	assert.Equal(t, constant.EventPresence, frame.Event)
	var presence PresenceEvent
	require.NoError(t, json.Unmarshal(frame.Data, &presence))
	assert.Equal(t, "alice", presence.UserId)
	assert.True(t, presence.Online)

	server.unregisterClient(ctx, client)
	frame = watcherConn.lastWrite(t)
	assert.Equal(t, constant.EventPresence, frame.Event)
	require.NoError(t, json.Unmarshal(frame.Data, &presence))
	assert.Equal(t, "alice", presence.UserId)
	assert.False(t, presence.Online)
}

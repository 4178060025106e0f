package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/mbeoliero/kit/log"
	"github.com/workhive/chat-server/pkg/constant"
	"github.com/workhive/chat-server/pkg/errcode"
)

// Client represents a connected WebSocket client. Events from one
// connection are dispatched sequentially by its read loop; failures are
// reported on that event's ack and never tear down the connection.
type Client struct {
	mu        sync.Mutex
	conn      ClientConn
	UserId    string
	ConnId    string
	server    *WsServer
	closed    atomic.Bool
	closedErr error
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new client
func NewClient(conn ClientConn, userId, connId string, server *WsServer) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:   conn,
		UserId: userId,
		ConnId: connId,
		server: server,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the client message handling
func (c *Client) Start() {
	go c.readLoop()
}

// readLoop continuously reads events from the connection
func (c *Client) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			c.closedErr = ErrPanic
			log.CtxError(c.ctx, "client read loop panic: user_id=%s, error=%v", c.UserId, r)
		}
		c.close()
	}()

	for {
		message, err := c.conn.ReadMessage()
		if err != nil {
			log.CtxDebug(c.ctx, "read message error: user_id=%s, error=%v", c.UserId, err)
			c.closedErr = err
			return
		}

		if c.closed.Load() {
			c.closedErr = ErrConnClosed
			return
		}

		c.handleMessage(message)
	}
}

// handleMessage dispatches a single incoming event and acks it
func (c *Client) handleMessage(message []byte) {
	var req WSRequest
	if err := json.Unmarshal(message, &req); err != nil {
		c.reply(&WSRequest{}, errcode.ErrInvalidProtocol, nil)
		return
	}

	log.CtxDebug(c.ctx, "received event: event=%s, user_id=%s", req.Event, c.UserId)

	var resp interface{}
	var err error

	switch req.Event {
	case constant.EventJoinConversation:
		resp, err = c.server.HandleJoinConversation(c.ctx, c, &req)
	case constant.EventLeaveConversation:
		resp, err = c.server.HandleLeaveConversation(c.ctx, c, &req)
	case constant.EventTyping:
		resp, err = c.server.HandleTyping(c.ctx, c, &req)
	case constant.EventSendMessage:
		resp, err = c.server.HandleSendMessage(c.ctx, c, &req)
	case constant.EventMarkRead:
		resp, err = c.server.HandleMarkRead(c.ctx, c, &req)
	default:
		if constant.IsRelayEvent(req.Event) {
			resp, err = c.server.HandleRelay(c.ctx, c, &req)
		} else {
			err = errcode.ErrInvalidProtocol
		}
	}

	c.reply(&req, err, resp)
}

// reply sends an ack for a request. Storage and handler failures surface
// here as ok:false with the business code; they never close the connection.
func (c *Client) reply(req *WSRequest, err error, data interface{}) {
	resp := WSResponse{
		Event: req.Event,
		OpId:  req.OpId,
		OK:    err == nil,
		Data:  data,
	}

	if err != nil {
		if e, ok := err.(*errcode.Error); ok {
			resp.ErrCode = e.Code
			resp.ErrMsg = e.Msg
		} else {
			resp.ErrCode = errcode.ErrInternalServer.Code
			resp.ErrMsg = err.Error()
		}
	}

	if werr := c.writeResponse(resp); werr != nil {
		log.CtxDebug(c.ctx, "write ack failed: user_id=%s, error=%v", c.UserId, werr)
	}
}

// writeResponse writes a response to the connection
func (c *Client) writeResponse(resp WSResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrConnClosed
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	return c.conn.WriteMessage(data)
}

// PushEvent pushes a server event to the client
func (c *Client) PushEvent(event string, payload interface{}) error {
	if c.closed.Load() {
		return ErrConnClosed
	}

	return c.writeResponse(WSResponse{
		Event: event,
		OK:    true,
		Data:  payload,
	})
}

// Close closes the client connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil
	}

	c.closed.Store(true)
	c.cancel()
	return c.conn.Close()
}

// close handles cleanup when connection is closed
func (c *Client) close() {
	c.Close()
	c.server.UnregisterClient(c)
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}

package gateway

import (
	"context"
	"encoding/json"

	"github.com/workhive/chat-server/internal/service"
	"github.com/workhive/chat-server/pkg/constant"
	"github.com/workhive/chat-server/pkg/errcode"
)

// Event handlers. Each returns the ack payload or a business error; the
// client read loop wraps both in the ack envelope.

// HandleJoinConversation subscribes the connection to a conversation's
// room and flushes the member's pending inbound messages to delivered.
func (s *WsServer) HandleJoinConversation(ctx context.Context, client *Client, req *WSRequest) (interface{}, error) {
	var joinReq JoinConversationReq
	if err := json.Unmarshal(req.Data, &joinReq); err != nil || joinReq.ConversationId == "" {
		return nil, errcode.ErrInvalidParam
	}

	conv, err := s.chatService.AuthorizeParticipant(ctx, client.UserId, joinReq.ConversationId)
	if err != nil {
		return nil, err
	}

	s.rooms.Join(conv.Id, client)

	if err := s.chatService.DeliverPending(ctx, conv, client.UserId); err != nil {
		return nil, err
	}

	return &JoinConversationReq{ConversationId: conv.Id}, nil
}

// HandleLeaveConversation unsubscribes the connection from a room. No
// authorization check; leaving an unjoined room is a no-op.
func (s *WsServer) HandleLeaveConversation(ctx context.Context, client *Client, req *WSRequest) (interface{}, error) {
	var leaveReq LeaveConversationReq
	if err := json.Unmarshal(req.Data, &leaveReq); err != nil || leaveReq.ConversationId == "" {
		return nil, errcode.ErrInvalidParam
	}

	s.rooms.Leave(leaveReq.ConversationId, client)
	return nil, nil
}

// HandleTyping forwards an ephemeral typing-state event to the target's
// private channel. Nothing is persisted.
func (s *WsServer) HandleTyping(ctx context.Context, client *Client, req *WSRequest) (interface{}, error) {
	var typingReq TypingReq
	if err := json.Unmarshal(req.Data, &typingReq); err != nil || typingReq.ConversationId == "" || typingReq.ToUserId == "" {
		return nil, errcode.ErrInvalidParam
	}

	if _, err := s.chatService.AuthorizeParticipant(ctx, client.UserId, typingReq.ConversationId); err != nil {
		return nil, err
	}

	s.AsyncPushToUsers([]string{typingReq.ToUserId}, constant.EventTyping, &TypingEvent{
		ConversationId: typingReq.ConversationId,
		FromUserId:     client.UserId,
		IsTyping:       typingReq.IsTyping,
	})

	return nil, nil
}

// HandleSendMessage runs the delivery pipeline and acks with the
// created (or, on a retry, the original) message.
func (s *WsServer) HandleSendMessage(ctx context.Context, client *Client, req *WSRequest) (interface{}, error) {
	var sendReq service.SendMessageRequest
	if err := json.Unmarshal(req.Data, &sendReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	msg, err := s.chatService.SendMessage(ctx, client.UserId, &sendReq)
	if err != nil {
		return nil, err
	}

	return msg.ToMessageInfo(), nil
}

// HandleMarkRead flips the requester's unread inbound messages to read and
// resets their counter
func (s *WsServer) HandleMarkRead(ctx context.Context, client *Client, req *WSRequest) (interface{}, error) {
	var markReq MarkReadReq
	if err := json.Unmarshal(req.Data, &markReq); err != nil || markReq.ConversationId == "" {
		return nil, errcode.ErrInvalidParam
	}

	if err := s.chatService.MarkRead(ctx, client.UserId, markReq.ConversationId); err != nil {
		return nil, err
	}

	return nil, nil
}

// HandleRelay forwards call-invitation and WebRTC negotiation events
// verbatim to the target's private channel with the sender's identity
// attached. No authorization beyond identity resolution, no persistence.
func (s *WsServer) HandleRelay(ctx context.Context, client *Client, req *WSRequest) (interface{}, error) {
	var relayReq RelayReq
	if err := json.Unmarshal(req.Data, &relayReq); err != nil || relayReq.ToUserId == "" {
		return nil, errcode.ErrInvalidParam
	}

	s.AsyncPushToUsers([]string{relayReq.ToUserId}, req.Event, &RelayEvent{
		From: client.UserId,
		Data: req.Data,
	})

	return nil, nil
}

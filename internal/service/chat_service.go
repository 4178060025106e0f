package service

import (
	"context"
	"strings"

	"github.com/mbeoliero/kit/log"
	"github.com/workhive/chat-server/internal/entity"
	"github.com/workhive/chat-server/pkg/constant"
	"github.com/workhive/chat-server/pkg/errcode"
	"github.com/workhive/chat-server/pkg/idgen"
)

// ChatService is the message delivery pipeline: the send/deliver/read
// state machine, deduplication, and unread-count bookkeeping.
type ChatService struct {
	convStore ConversationStore
	msgStore  MessageStore
	presence  PresenceView
	pusher    EventPusher
	notifier  Notifier
}

// NewChatService creates a new ChatService
func NewChatService(convStore ConversationStore, msgStore MessageStore) *ChatService {
	return &ChatService{
		convStore: convStore,
		msgStore:  msgStore,
	}
}

// SetPresence sets the presence view (owned by the gateway)
func (s *ChatService) SetPresence(p PresenceView) {
	s.presence = p
}

// SetPusher sets the event pusher (owned by the gateway)
func (s *ChatService) SetPusher(p EventPusher) {
	s.pusher = p
}

// SetNotifier sets the downstream notification producer
func (s *ChatService) SetNotifier(n Notifier) {
	s.notifier = n
}

// SendMessageRequest represents a send message request
type SendMessageRequest struct {
	RecvId         string `json:"to_user_id"`
	ConversationId string `json:"conversation_id,omitempty"`
	MsgType        string `json:"type,omitempty"`
	Text           string `json:"text,omitempty"`
	MediaUrl       string `json:"media_url,omitempty"`
	ClientMsgId    string `json:"client_id"`
}

// ConversationUpdatedEvent is pushed to both participants after an
// accepted message or a read reset
type ConversationUpdatedEvent struct {
	ConversationId string             `json:"conversation_id"`
	OtherUserId    string             `json:"other_user_id"`
	LastMessage    entity.LastMessage `json:"last_message"`
	LastMsgAt      int64              `json:"last_msg_at"`
	UnreadInc      int64              `json:"unread_inc"`
}

// MessageStatusEvent notifies a sender that pending messages in a
// conversation moved forward in the delivery state machine
type MessageStatusEvent struct {
	ConversationId string `json:"conversation_id"`
	Status         string `json:"status"`
	At             int64  `json:"at"`
}

// ReadReceiptEvent notifies the peer that the reader consumed the thread
type ReadReceiptEvent struct {
	ConversationId string `json:"conversation_id"`
	ReaderId       string `json:"reader_id"`
	ReadAt         int64  `json:"read_at"`
}

// UnreadResetEvent syncs the reader's other devices after mark_read
type UnreadResetEvent struct {
	ConversationId string `json:"conversation_id"`
}

// validateSend checks the request preconditions. Each violation is a
// distinct failure.
func validateSend(req *SendMessageRequest) error {
	if req.RecvId == "" {
		return errcode.ErrMissingRecvId
	}
	if req.ClientMsgId == "" {
		return errcode.ErrMissingClientId
	}
	if req.MsgType == "" {
		req.MsgType = constant.MsgTypeText
	}
	switch {
	case req.MsgType == constant.MsgTypeText:
		if strings.TrimSpace(req.Text) == "" {
			return errcode.ErrEmptyContent
		}
	case constant.IsMediaType(req.MsgType):
		if req.MediaUrl == "" {
			return errcode.ErrInvalidParam
		}
	default:
		return errcode.ErrInvalidParam
	}
	return nil
}

// resolveConversation applies the addressing rules of the pipeline: an
// explicit conversation id must belong to the sender and its peer must
// match the addressed recipient (prevents address spoofing); without an
// id the pair's conversation is found or created.
func (s *ChatService) resolveConversation(ctx context.Context, senderId string, req *SendMessageRequest) (*entity.Conversation, error) {
	if req.ConversationId != "" {
		conv, err := s.convStore.GetById(ctx, req.ConversationId)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, errcode.ErrConvNotFound
		}
		if !conv.HasParticipant(senderId) {
			return nil, errcode.ErrNotParticipant
		}
		if conv.OtherParticipant(senderId) != req.RecvId {
			return nil, errcode.ErrPeerMismatch
		}
		return conv, nil
	}

	return s.convStore.GetOrCreate(ctx, senderId, req.RecvId)
}

// SendMessage accepts a message from senderId, persists it idempotently,
// updates the conversation summary and unread counter, and fans events out
// to both participants.
func (s *ChatService) SendMessage(ctx context.Context, senderId string, req *SendMessageRequest) (*entity.Message, error) {
	if err := validateSend(req); err != nil {
		return nil, err
	}
	if req.RecvId == senderId {
		return nil, errcode.ErrSelfConversation
	}

	conv, err := s.resolveConversation(ctx, senderId, req)
	if err != nil {
		if e, ok := err.(*errcode.Error); ok {
			return nil, e
		}
		log.CtxError(ctx, "resolve conversation failed: sender_id=%s, error=%v", senderId, err)
		return nil, errcode.ErrInternalServer
	}

	// Initial delivery status reflects connectivity only: an online
	// receiver may still have the conversation closed.
	now := entity.NowUnixMilli()
	status := int32(constant.MsgStatusSent)
	deliveredAt := int64(0)
	if s.presence != nil && s.presence.IsOnline(ctx, req.RecvId) {
		status = constant.MsgStatusDelivered
		deliveredAt = now
	}

	id, err := idgen.NextID()
	if err != nil {
		log.CtxError(ctx, "id generation failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	msg := &entity.Message{
		Id:             id,
		ConversationId: conv.Id,
		ClientMsgId:    req.ClientMsgId,
		SenderId:       senderId,
		RecvId:         req.RecvId,
		MsgType:        req.MsgType,
		ContentText:    req.Text,
		MediaUrl:       req.MediaUrl,
		Status:         status,
		SendAt:         now,
		DeliveredAt:    deliveredAt,
	}

	stored, created, err := s.msgStore.CreateIdempotent(ctx, msg)
	if err != nil {
		log.CtxError(ctx, "persist message failed: sender_id=%s, error=%v", senderId, err)
		return nil, errcode.ErrSendFailed
	}
	if !created {
		// Retry of an already-accepted message: no counter updates, no
		// re-push, just the original ack payload.
		log.CtxDebug(ctx, "duplicate message: conversation_id=%s, client_msg_id=%s", conv.Id, req.ClientMsgId)
		return stored, nil
	}

	// The increment is skipped when the receiver is actively viewing the
	// conversation's room.
	unreadInc := int64(1)
	incrementFor := req.RecvId
	if s.presence != nil && s.presence.InConversation(conv.Id, req.RecvId) {
		unreadInc = 0
		incrementFor = ""
	}

	last := entity.LastMessage{
		MessageId: stored.Id,
		Text:      stored.SummaryText(),
		Type:      stored.MsgType,
		SenderId:  senderId,
		SendAt:    stored.SendAt,
	}
	if err := s.convStore.ApplyMessage(ctx, conv, last, incrementFor); err != nil {
		log.CtxError(ctx, "apply message to conversation failed: conversation_id=%s, error=%v", conv.Id, err)
		return nil, errcode.ErrSendFailed
	}

	info := stored.ToMessageInfo()
	if s.pusher != nil {
		s.pusher.AsyncPushToUsers([]string{senderId, req.RecvId}, constant.EventNewMessage, info)
		s.pusher.AsyncPushToUsers([]string{senderId}, constant.EventConversationUpdated, &ConversationUpdatedEvent{
			ConversationId: conv.Id,
			OtherUserId:    req.RecvId,
			LastMessage:    last,
			LastMsgAt:      last.SendAt,
			UnreadInc:      0,
		})
		s.pusher.AsyncPushToUsers([]string{req.RecvId}, constant.EventConversationUpdated, &ConversationUpdatedEvent{
			ConversationId: conv.Id,
			OtherUserId:    senderId,
			LastMessage:    last,
			LastMsgAt:      last.SendAt,
			UnreadInc:      unreadInc,
		})
	}

	if s.notifier != nil {
		s.notifier.MessageCreated(ctx, info)
	}

	log.CtxInfo(ctx, "message sent: conversation_id=%s, sender_id=%s, recv_id=%s, status=%s",
		conv.Id, senderId, req.RecvId, stored.StatusName())
	return stored, nil
}

// AuthorizeParticipant fetches a conversation and verifies userId belongs
// to it
func (s *ChatService) AuthorizeParticipant(ctx context.Context, userId, conversationId string) (*entity.Conversation, error) {
	conv, err := s.convStore.GetById(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrInternalServer
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}
	if !conv.HasParticipant(userId) {
		return nil, errcode.ErrNotParticipant
	}
	return conv, nil
}

// DeliverPending bulk-transitions userId's pending inbound messages in the
// conversation from sent to delivered, notifying the other participant
// when anything changed. Called when the receiver joins the conversation.
func (s *ChatService) DeliverPending(ctx context.Context, conv *entity.Conversation, userId string) error {
	now := entity.NowUnixMilli()
	affected, err := s.msgStore.MarkDelivered(ctx, conv.Id, userId, now)
	if err != nil {
		log.CtxError(ctx, "mark delivered failed: conversation_id=%s, user_id=%s, error=%v", conv.Id, userId, err)
		return errcode.ErrInternalServer
	}

	if affected > 0 && s.pusher != nil {
		s.pusher.AsyncPushToUsers([]string{conv.OtherParticipant(userId)}, constant.EventMessageStatus, &MessageStatusEvent{
			ConversationId: conv.Id,
			Status:         constant.StatusName(constant.MsgStatusDelivered),
			At:             now,
		})
	}

	return nil
}

// MarkRead transitions all of userId's unread inbound messages in the
// conversation to read and resets their unread counter. Succeeds even when
// nothing was pending.
func (s *ChatService) MarkRead(ctx context.Context, userId, conversationId string) error {
	conv, err := s.AuthorizeParticipant(ctx, userId, conversationId)
	if err != nil {
		return err
	}

	now := entity.NowUnixMilli()
	affected, err := s.msgStore.MarkRead(ctx, conv.Id, userId, now)
	if err != nil {
		log.CtxError(ctx, "mark read failed: conversation_id=%s, user_id=%s, error=%v", conv.Id, userId, err)
		return errcode.ErrMarkReadFailed
	}

	if err := s.convStore.ResetUnread(ctx, conv, userId); err != nil {
		log.CtxError(ctx, "reset unread failed: conversation_id=%s, user_id=%s, error=%v", conv.Id, userId, err)
		return errcode.ErrMarkReadFailed
	}

	peerId := conv.OtherParticipant(userId)
	if s.pusher != nil {
		s.pusher.AsyncPushToUsers([]string{userId}, constant.EventUnreadReset, &UnreadResetEvent{
			ConversationId: conv.Id,
		})
		s.pusher.AsyncPushToUsers([]string{peerId}, constant.EventReadReceipt, &ReadReceiptEvent{
			ConversationId: conv.Id,
			ReaderId:       userId,
			ReadAt:         now,
		})
		// The reader's own counter changed, the peer's did not.
		s.pusher.AsyncPushToUsers([]string{peerId}, constant.EventConversationUpdated, &ConversationUpdatedEvent{
			ConversationId: conv.Id,
			OtherUserId:    userId,
			LastMessage:    conv.LastMessage(),
			LastMsgAt:      conv.LastMsgAt,
			UnreadInc:      0,
		})
	}

	if s.notifier != nil {
		s.notifier.ConversationRead(ctx, conv.Id, userId, now)
	}

	log.CtxInfo(ctx, "conversation marked read: conversation_id=%s, user_id=%s, affected=%d", conv.Id, userId, affected)
	return nil
}

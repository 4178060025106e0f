package service

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"github.com/workhive/chat-server/internal/entity"
	"github.com/workhive/chat-server/pkg/errcode"
)

// ConversationService serves the read side of the chat subsystem:
// conversation lists with unread counts and message history.
type ConversationService struct {
	convStore ConversationStore
	msgStore  MessageStore
}

// NewConversationService creates a new ConversationService
func NewConversationService(convStore ConversationStore, msgStore MessageStore) *ConversationService {
	return &ConversationService{
		convStore: convStore,
		msgStore:  msgStore,
	}
}

// GetUserConversations gets all conversations for a user, shaped from
// the user's side (peer id and own unread counter)
func (s *ConversationService) GetUserConversations(ctx context.Context, userId string) ([]*entity.ConversationInfo, error) {
	convs, err := s.convStore.ListByUser(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "get user conversations failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}

	result := make([]*entity.ConversationInfo, 0, len(convs))
	for _, conv := range convs {
		result = append(result, conv.ToInfo(userId))
	}
	return result, nil
}

// GetConversation gets a specific conversation for a user
func (s *ConversationService) GetConversation(ctx context.Context, userId, conversationId string) (*entity.ConversationInfo, error) {
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
	return conv.ToInfo(userId), nil
}

// GetOrCreateConversation resolves the conversation between userId and
// peerId, creating it lazily. The explicit get-or-create entry point lets
// clients open a thread before the first message.
func (s *ConversationService) GetOrCreateConversation(ctx context.Context, userId, peerId string) (*entity.ConversationInfo, error) {
	if peerId == "" {
		return nil, errcode.ErrMissingRecvId
	}
	if peerId == userId {
		return nil, errcode.ErrSelfConversation
	}

	conv, err := s.convStore.GetOrCreate(ctx, userId, peerId)
	if err != nil {
		log.CtxError(ctx, "get or create conversation failed: user_id=%s, peer_id=%s, error=%v", userId, peerId, err)
		return nil, errcode.ErrInternalServer
	}
	return conv.ToInfo(userId), nil
}

// GetHistory pulls message history for a participant
func (s *ConversationService) GetHistory(ctx context.Context, userId, conversationId, beforeId string, limit int) ([]*entity.MessageInfo, error) {
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

	messages, err := s.msgStore.ListByConversation(ctx, conversationId, beforeId, limit)
	if err != nil {
		log.CtxError(ctx, "list messages failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrInternalServer
	}

	result := make([]*entity.MessageInfo, 0, len(messages))
	for _, msg := range messages {
		result = append(result, msg.ToMessageInfo())
	}
	return result, nil
}

package service

import (
	"context"

	"github.com/workhive/chat-server/internal/entity"
)

// ConversationStore is the durable conversation mapping consumed by the
// chat pipeline. The production implementation is
// repository.ConversationRepo; tests substitute in-memory fakes.
type ConversationStore interface {
	GetById(ctx context.Context, id string) (*entity.Conversation, error)
	GetByPair(ctx context.Context, userA, userB string) (*entity.Conversation, error)
	// GetOrCreate must be race-safe: concurrent creation attempts for the
	// same pair converge on one conversation.
	GetOrCreate(ctx context.Context, userA, userB string) (*entity.Conversation, error)
	ListByUser(ctx context.Context, userId string) ([]*entity.Conversation, error)
	// ApplyMessage atomically updates the last-message summary and, when
	// incrementFor is a participant, bumps that participant's unread counter.
	ApplyMessage(ctx context.Context, conv *entity.Conversation, last entity.LastMessage, incrementFor string) error
	ResetUnread(ctx context.Context, conv *entity.Conversation, userId string) error
}

// MessageStore is the durable append-only message log
type MessageStore interface {
	// CreateIdempotent returns the stored message and whether this call
	// created it. A duplicate (conversationId, clientMsgId) returns the
	// original row with created=false.
	CreateIdempotent(ctx context.Context, msg *entity.Message) (*entity.Message, bool, error)
	MarkDelivered(ctx context.Context, conversationId, recvId string, at int64) (int64, error)
	MarkRead(ctx context.Context, conversationId, recvId string, at int64) (int64, error)
	ListByConversation(ctx context.Context, conversationId, beforeId string, limit int) ([]*entity.Message, error)
}

// PresenceView is the gateway-owned connectivity state the pipeline
// consults when choosing the initial delivery status and deciding whether
// an unread increment applies.
type PresenceView interface {
	IsOnline(ctx context.Context, userId string) bool
	// InConversation reports whether any of userId's connections is
	// currently subscribed to the conversation's room.
	InConversation(conversationId, userId string) bool
}

// EventPusher fans committed state changes out to a user's private channel
// across all of their connections
type EventPusher interface {
	AsyncPushToUsers(userIds []string, event string, payload interface{})
}

// Notifier receives fire-and-forget copies of committed chat events for the
// marketplace notification service. Implementations must never fail a send.
type Notifier interface {
	MessageCreated(ctx context.Context, msg *entity.MessageInfo)
	ConversationRead(ctx context.Context, conversationId, readerId string, readAt int64)
}

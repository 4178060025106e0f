package repository

import (
	"context"
	"errors"

	"github.com/workhive/chat-server/internal/entity"
	"github.com/workhive/chat-server/pkg/constant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepo is the repository for message operations
type MessageRepo struct {
	db *gorm.DB
}

// NewMessageRepo creates a new MessageRepo
func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateIdempotent persists msg unless a message with the same
// (conversation_id, client_msg_id) already exists, in which case the
// original row is returned unchanged. The unique index closes the
// retry-after-timeout race the same way the conversation pair index does.
func (r *MessageRepo) CreateIdempotent(ctx context.Context, msg *entity.Message) (*entity.Message, bool, error) {
	now := entity.NowUnixMilli()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "client_msg_id"}},
		DoNothing: true,
	}).Create(msg)
	if result.Error != nil {
		return nil, false, result.Error
	}

	if result.RowsAffected == 0 {
		existing, err := r.GetByClientMsgId(ctx, msg.ConversationId, msg.ClientMsgId)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, gorm.ErrRecordNotFound
		}
		return existing, false, nil
	}

	return msg, true, nil
}

// GetByClientMsgId gets a message by its conversation-scoped idempotency token
func (r *MessageRepo) GetByClientMsgId(ctx context.Context, conversationId, clientMsgId string) (*entity.Message, error) {
	var msg entity.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND client_msg_id = ?", conversationId, clientMsgId).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// GetById gets a message by id
func (r *MessageRepo) GetById(ctx context.Context, id string) (*entity.Message, error) {
	var msg entity.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// MarkDelivered bulk-transitions recvId's pending inbound messages from
// sent to delivered. The status guard in the WHERE clause keeps the
// transition forward-only under concurrent updates.
func (r *MessageRepo) MarkDelivered(ctx context.Context, conversationId, recvId string, at int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("conversation_id = ? AND recv_id = ? AND status = ?",
			conversationId, recvId, constant.MsgStatusSent).
		Updates(map[string]interface{}{
			"status":       constant.MsgStatusDelivered,
			"delivered_at": at,
			"updated_at":   at,
		})
	return result.RowsAffected, result.Error
}

// MarkRead bulk-transitions all of recvId's unread inbound messages to read
func (r *MessageRepo) MarkRead(ctx context.Context, conversationId, recvId string, at int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("conversation_id = ? AND recv_id = ? AND status < ?",
			conversationId, recvId, constant.MsgStatusRead).
		Updates(map[string]interface{}{
			"status":     constant.MsgStatusRead,
			"read_at":    at,
			"updated_at": at,
		})
	return result.RowsAffected, result.Error
}

// ListByConversation pulls message history, newest page first, returned in
// ascending send order. beforeId pages backwards through history.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationId, beforeId string, limit int) ([]*entity.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Where("conversation_id = ?", conversationId)
	if beforeId != "" {
		query = query.Where("id < ?", beforeId)
	}

	var messages []*entity.Message
	err := query.Order("id DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Reverse to ascending order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

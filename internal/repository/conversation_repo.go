package repository

import (
	"context"
	"errors"

	"github.com/workhive/chat-server/internal/entity"
	"github.com/workhive/chat-server/pkg/idgen"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepo is the repository for conversation operations
type ConversationRepo struct {
	db *gorm.DB
}

// NewConversationRepo creates a new ConversationRepo
func NewConversationRepo(db *gorm.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// GetById gets a conversation by its id
func (r *ConversationRepo) GetById(ctx context.Context, id string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetByPair gets the conversation for an unordered participant pair
func (r *ConversationRepo) GetByPair(ctx context.Context, userA, userB string) (*entity.Conversation, error) {
	low, high := entity.SortPair(userA, userB)

	var conv entity.Conversation
	err := r.db.WithContext(ctx).
		Where("user_low = ? AND user_high = ?", low, high).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetOrCreate returns the conversation for the pair, creating it with zero
// unread counters if absent. The unique index on (user_low, user_high) makes
// concurrent creation attempts converge on one row: the losing insert is a
// no-op and the winner's row is fetched.
func (r *ConversationRepo) GetOrCreate(ctx context.Context, userA, userB string) (*entity.Conversation, error) {
	low, high := entity.SortPair(userA, userB)

	id, err := idgen.NextID()
	if err != nil {
		return nil, err
	}

	now := entity.NowUnixMilli()
	conv := &entity.Conversation{
		Id:        id,
		UserLow:   low,
		UserHigh:  high,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_low"}, {Name: "user_high"}},
		DoNothing: true,
	}).Create(conv)
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		// Lost the race (or the row already existed), fetch the canonical row
		return r.GetByPair(ctx, low, high)
	}

	return conv, nil
}

// ListByUser gets all conversations for a user, most recent first
func (r *ConversationRepo) ListByUser(ctx context.Context, userId string) ([]*entity.Conversation, error) {
	var convs []*entity.Conversation
	err := r.db.WithContext(ctx).
		Where("user_low = ? OR user_high = ?", userId, userId).
		Order("last_msg_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// ApplyMessage applies a newly accepted message to the conversation in a
// single UPDATE: last-message summary fields unconditionally, plus an
// unread increment for incrementFor when it is a participant. The counter
// increment is a relative expression, never read-modify-write.
func (r *ConversationRepo) ApplyMessage(ctx context.Context, conv *entity.Conversation, last entity.LastMessage, incrementFor string) error {
	updates := map[string]interface{}{
		"last_msg_id":        last.MessageId,
		"last_msg_text":      last.Text,
		"last_msg_type":      last.Type,
		"last_msg_sender_id": last.SenderId,
		"last_msg_at":        last.SendAt,
		"updated_at":         entity.NowUnixMilli(),
	}

	switch incrementFor {
	case conv.UserLow:
		updates["unread_low"] = gorm.Expr("unread_low + 1")
	case conv.UserHigh:
		updates["unread_high"] = gorm.Expr("unread_high + 1")
	}

	return r.db.WithContext(ctx).
		Model(&entity.Conversation{}).
		Where("id = ?", conv.Id).
		Updates(updates).Error
}

// ResetUnread resets userId's unread counter to zero
func (r *ConversationRepo) ResetUnread(ctx context.Context, conv *entity.Conversation, userId string) error {
	var column string
	switch userId {
	case conv.UserLow:
		column = "unread_low"
	case conv.UserHigh:
		column = "unread_high"
	default:
		return nil
	}

	return r.db.WithContext(ctx).
		Model(&entity.Conversation{}).
		Where("id = ?", conv.Id).
		Updates(map[string]interface{}{
			column:       0,
			"updated_at": entity.NowUnixMilli(),
		}).Error
}

package entity

// Conversation represents a two-party conversation.
// Exactly one row exists per unordered participant pair, enforced by the
// unique index on (user_low, user_high).
type Conversation struct {
	Id              string `json:"id" gorm:"column:id;primaryKey"`
	UserLow         string `json:"user_low" gorm:"column:user_low;uniqueIndex:uq_participants,priority:1"`
	UserHigh        string `json:"user_high" gorm:"column:user_high;uniqueIndex:uq_participants,priority:2"`
	LastMsgId       string `json:"last_msg_id" gorm:"column:last_msg_id"`
	LastMsgText     string `json:"last_msg_text" gorm:"column:last_msg_text"`
	LastMsgType     string `json:"last_msg_type" gorm:"column:last_msg_type"`
	LastMsgSenderId string `json:"last_msg_sender_id" gorm:"column:last_msg_sender_id"`
	LastMsgAt       int64  `json:"last_msg_at" gorm:"column:last_msg_at"`
	UnreadLow       int64  `json:"unread_low" gorm:"column:unread_low"`
	UnreadHigh      int64  `json:"unread_high" gorm:"column:unread_high"`
	CreatedAt       int64  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt       int64  `json:"updated_at" gorm:"column:updated_at"`
}

// TableName returns the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// HasParticipant reports whether userId is one of the two participants
func (c *Conversation) HasParticipant(userId string) bool {
	return c.UserLow == userId || c.UserHigh == userId
}

// OtherParticipant returns the peer of userId, or "" if userId is not a participant
func (c *Conversation) OtherParticipant(userId string) string {
	switch userId {
	case c.UserLow:
		return c.UserHigh
	case c.UserHigh:
		return c.UserLow
	}
	return ""
}

// UnreadFor returns the unread counter belonging to userId
func (c *Conversation) UnreadFor(userId string) int64 {
	switch userId {
	case c.UserLow:
		return c.UnreadLow
	case c.UserHigh:
		return c.UnreadHigh
	}
	return 0
}

// LastMessage is the denormalized last-message summary carried on
// conversation_updated events and list responses
type LastMessage struct {
	MessageId string `json:"message_id"`
	Text      string `json:"text"`
	Type      string `json:"type"`
	SenderId  string `json:"sender_id"`
	SendAt    int64  `json:"send_at"`
}

// LastMessage returns the conversation's last-message summary
func (c *Conversation) LastMessage() LastMessage {
	return LastMessage{
		MessageId: c.LastMsgId,
		Text:      c.LastMsgText,
		Type:      c.LastMsgType,
		SenderId:  c.LastMsgSenderId,
		SendAt:    c.LastMsgAt,
	}
}

// ConversationInfo represents conversation info for API responses,
// shaped for one of the two participants
type ConversationInfo struct {
	ConversationId string      `json:"conversation_id"`
	PeerUserId     string      `json:"peer_user_id"`
	LastMessage    LastMessage `json:"last_message"`
	LastMsgAt      int64       `json:"last_msg_at"`
	UnreadCount    int64       `json:"unread_count"`
	UpdatedAt      int64       `json:"updated_at"`
}

// ToInfo converts the conversation to the view seen by userId
func (c *Conversation) ToInfo(userId string) *ConversationInfo {
	return &ConversationInfo{
		ConversationId: c.Id,
		PeerUserId:     c.OtherParticipant(userId),
		LastMessage:    c.LastMessage(),
		LastMsgAt:      c.LastMsgAt,
		UnreadCount:    c.UnreadFor(userId),
		UpdatedAt:      c.UpdatedAt,
	}
}

package entity

import "github.com/workhive/chat-server/pkg/constant"

// Message represents a message. Rows are append-only; only the delivery
// status columns are ever updated, and only forward
// (sent -> delivered -> read).
type Message struct {
	Id             string `json:"id" gorm:"column:id;primaryKey"`
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;uniqueIndex:uq_client_msg,priority:1"`
	ClientMsgId    string `json:"client_msg_id" gorm:"column:client_msg_id;uniqueIndex:uq_client_msg,priority:2"`
	SenderId       string `json:"sender_id" gorm:"column:sender_id"`
	RecvId         string `json:"recv_id" gorm:"column:recv_id;index"`
	MsgType        string `json:"msg_type" gorm:"column:msg_type"`
	ContentText    string `json:"content_text" gorm:"column:content_text"`
	MediaUrl       string `json:"media_url" gorm:"column:media_url"`
	Status         int32  `json:"status" gorm:"column:status"`
	SendAt         int64  `json:"send_at" gorm:"column:send_at"`
	DeliveredAt    int64  `json:"delivered_at" gorm:"column:delivered_at"`
	ReadAt         int64  `json:"read_at" gorm:"column:read_at"`
	CreatedAt      int64  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      int64  `json:"updated_at" gorm:"column:updated_at"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// StatusName returns the wire name of the message's delivery status
func (m *Message) StatusName() string {
	return constant.StatusName(m.Status)
}

// SummaryText returns the text shown in conversation lists. Media messages
// get a placeholder instead of a URL.
func (m *Message) SummaryText() string {
	if m.MsgType == constant.MsgTypeText {
		return m.ContentText
	}
	return "[" + m.MsgType + "]"
}

// MessageInfo represents message info for API and push payloads
type MessageInfo struct {
	Id             string `json:"id"`
	ConversationId string `json:"conversation_id"`
	SenderId       string `json:"sender_id"`
	RecvId         string `json:"recv_id"`
	MsgType        string `json:"msg_type"`
	Text           string `json:"text,omitempty"`
	MediaUrl       string `json:"media_url,omitempty"`
	ClientMsgId    string `json:"client_msg_id"`
	Status         string `json:"status"`
	SendAt         int64  `json:"send_at"`
	DeliveredAt    int64  `json:"delivered_at,omitempty"`
	ReadAt         int64  `json:"read_at,omitempty"`
}

// ToMessageInfo converts Message to MessageInfo
func (m *Message) ToMessageInfo() *MessageInfo {
	return &MessageInfo{
		Id:             m.Id,
		ConversationId: m.ConversationId,
		SenderId:       m.SenderId,
		RecvId:         m.RecvId,
		MsgType:        m.MsgType,
		Text:           m.ContentText,
		MediaUrl:       m.MediaUrl,
		ClientMsgId:    m.ClientMsgId,
		Status:         m.StatusName(),
		SendAt:         m.SendAt,
		DeliveredAt:    m.DeliveredAt,
		ReadAt:         m.ReadAt,
	}
}

package gateway

import "encoding/json"

// WSRequest is the envelope of every client event
type WSRequest struct {
	Event string          `json:"event"`  // Event name
	OpId  string          `json:"op_id"`  // Client-chosen operation id, echoed in the ack
	Data  json.RawMessage `json:"data"`   // Event payload
}

// WSResponse is the envelope of every ack and server push. Acks echo the
// event and op id; pushes carry their own event name and no op id.
type WSResponse struct {
	Event   string      `json:"event"`
	OpId    string      `json:"op_id,omitempty"`
	OK      bool        `json:"ok"`
	ErrCode int         `json:"err_code,omitempty"`
	ErrMsg  string      `json:"err_msg,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// JoinConversationReq is the payload of join_conversation
type JoinConversationReq struct {
	ConversationId string `json:"conversation_id"`
}

// LeaveConversationReq is the payload of leave_conversation
type LeaveConversationReq struct {
	ConversationId string `json:"conversation_id"`
}

// TypingReq is the payload of typing
type TypingReq struct {
	ConversationId string `json:"conversation_id"`
	ToUserId       string `json:"to_user_id"`
	IsTyping       bool   `json:"is_typing"`
}

// TypingEvent is the ephemeral typing push forwarded to the target
type TypingEvent struct {
	ConversationId string `json:"conversation_id"`
	FromUserId     string `json:"from_user_id"`
	IsTyping       bool   `json:"is_typing"`
}

// MarkReadReq is the payload of mark_read
type MarkReadReq struct {
	ConversationId string `json:"conversation_id"`
}

// RelayReq is the common shape of call/webrtc relay payloads; only the
// target is interpreted, the rest is forwarded verbatim
type RelayReq struct {
	ToUserId string `json:"to_user_id"`
}

// RelayEvent wraps a relayed payload with the sender's identity
type RelayEvent struct {
	From string          `json:"from"`
	Data json.RawMessage `json:"data"`
}

// ConnectedEvent is sent once after a successful handshake
type ConnectedEvent struct {
	UserId string `json:"user_id"`
}

// PresenceEvent announces an offline->online or online->offline edge
type PresenceEvent struct {
	UserId string `json:"user_id"`
	Online bool   `json:"online"`
}

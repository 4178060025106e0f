package constant

// Client -> server events
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventTyping            = "typing"
	EventSendMessage       = "send_message"
	EventMarkRead          = "mark_read"
)

// Call signaling and WebRTC negotiation events, relayed verbatim between
// two identified peers
const (
	EventCallInvite         = "call_invite"
	EventCallAccept         = "call_accept"
	EventCallReject         = "call_reject"
	EventCallEnd            = "call_end"
	EventWebrtcOffer        = "webrtc_offer"
	EventWebrtcAnswer       = "webrtc_answer"
	EventWebrtcIceCandidate = "webrtc_ice_candidate"
)

// Server -> client events
const (
	EventConnected           = "connected"
	EventPresence            = "presence"
	EventNewMessage          = "new_message"
	EventConversationUpdated = "conversation_updated"
	EventMessageStatus       = "message_status"
	EventReadReceipt         = "read_receipt"
	EventUnreadReset         = "unread_reset"
)

// IsRelayEvent reports whether event is a pure peer-to-peer relay
func IsRelayEvent(event string) bool {
	switch event {
	case EventCallInvite, EventCallAccept, EventCallReject, EventCallEnd,
		EventWebrtcOffer, EventWebrtcAnswer, EventWebrtcIceCandidate:
		return true
	}
	return false
}

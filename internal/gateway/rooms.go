package gateway

import "sync"

// RoomHub manages conversation room membership. A room is the subscription
// group of connections currently viewing a conversation; membership is
// explicit so the unread-suppression check is a map lookup, not a scan of
// live socket state.
type RoomHub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{} // conversationId -> clients
	joined  map[*Client]map[string]struct{} // client -> conversationIds
}

// NewRoomHub creates a new RoomHub
func NewRoomHub() *RoomHub {
	return &RoomHub{
		rooms:  make(map[string]map[*Client]struct{}),
		joined: make(map[*Client]map[string]struct{}),
	}
}

// Join subscribes the client to the conversation's room. Joining twice is
// a no-op.
func (h *RoomHub) Join(conversationId string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[conversationId]; !ok {
		h.rooms[conversationId] = make(map[*Client]struct{})
	}
	h.rooms[conversationId][c] = struct{}{}

	if _, ok := h.joined[c]; !ok {
		h.joined[c] = make(map[string]struct{})
	}
	h.joined[c][conversationId] = struct{}{}
}

// Leave unsubscribes the client from the room. Leaving a room the client
// never joined is a no-op.
func (h *RoomHub) Leave(conversationId string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(conversationId, c)
}

// LeaveAll unsubscribes the client from every room it joined. Called on
// disconnect.
func (h *RoomHub) LeaveAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conversationId := range h.joined[c] {
		h.leaveLocked(conversationId, c)
	}
	delete(h.joined, c)
}

func (h *RoomHub) leaveLocked(conversationId string, c *Client) {
	if set, ok := h.rooms[conversationId]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, conversationId)
		}
	}
	if set, ok := h.joined[c]; ok {
		delete(set, conversationId)
	}
}

// UserInRoom reports whether any of userId's connections is subscribed to
// the conversation's room
func (h *RoomHub) UserInRoom(conversationId, userId string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[conversationId] {
		if c.UserId == userId {
			return true
		}
	}
	return false
}

// Clients returns a copy of the room's current members
func (h *RoomHub) Clients(conversationId string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set, ok := h.rooms[conversationId]
	if !ok {
		return nil
	}
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// RoomCount returns the number of active rooms
func (h *RoomHub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/workhive/chat-server/pkg/constant"
)

// PresenceRegistry tracks which users have active connections. A user may
// hold several simultaneous connections (multiple devices); the user is
// online iff at least one connection remains. Register/Unregister report
// the edge transitions so callers broadcast presence exactly once per
// offline->online and online->offline flip.
//
// The registry is process-local and rebuilt empty on restart; the redis
// mirror gives other instances a TTL-guarded online view.
type PresenceRegistry struct {
	mu    sync.RWMutex
	users map[string][]*Client // userId -> active connections
	rdb   *redis.Client
}

// NewPresenceRegistry creates a new PresenceRegistry
func NewPresenceRegistry(rdb *redis.Client) *PresenceRegistry {
	return &PresenceRegistry{
		users: make(map[string][]*Client),
		rdb:   rdb,
	}
}

// Register adds a connection and reports whether the user just came online
// (first connection)
func (m *PresenceRegistry) Register(ctx context.Context, client *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	clients, exists := m.users[client.UserId]
	m.users[client.UserId] = append(clients, client)

	cameOnline := !exists || len(clients) == 0
	if cameOnline {
		m.setOnline(ctx, client.UserId)
	}
	return cameOnline
}

// Unregister removes a connection and reports whether the user just went
// offline (last connection gone). Removing an unknown connection is a no-op.
func (m *PresenceRegistry) Unregister(ctx context.Context, client *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	clients, exists := m.users[client.UserId]
	if !exists {
		return false
	}

	remaining := make([]*Client, 0, len(clients))
	for _, c := range clients {
		if c.ConnId != client.ConnId {
			remaining = append(remaining, c)
		}
	}

	if len(remaining) == 0 {
		delete(m.users, client.UserId)
		m.setOffline(ctx, client.UserId)
		return true
	}

	m.users[client.UserId] = remaining
	return false
}

// GetAll gets all clients for a user
func (m *PresenceRegistry) GetAll(userId string) ([]*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients, exists := m.users[userId]
	if !exists || len(clients) == 0 {
		return nil, false
	}

	// Return a copy to avoid race conditions
	out := make([]*Client, len(clients))
	copy(out, clients)
	return out, true
}

// AllClients returns every active connection across all users
func (m *PresenceRegistry) AllClients() []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Client
	for _, clients := range m.users {
		out = append(out, clients...)
	}
	return out
}

// HasConnection checks if user has any local connection
func (m *PresenceRegistry) HasConnection(userId string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients, exists := m.users[userId]
	return exists && len(clients) > 0
}

// IsOnline checks if user is online (checks redis for other instances)
func (m *PresenceRegistry) IsOnline(ctx context.Context, userId string) bool {
	if m.HasConnection(userId) {
		return true
	}

	if m.rdb != nil {
		key := fmt.Sprintf(constant.RedisKeyOnline(), userId)
		exists, _ := m.rdb.Exists(ctx, key).Result()
		return exists > 0
	}

	return false
}

// OnlineUserCount returns the number of online users
func (m *PresenceRegistry) OnlineUserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// OnlineConnCount returns the total number of connections
func (m *PresenceRegistry) OnlineConnCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, clients := range m.users {
		count += len(clients)
	}
	return count
}

// RefreshOnlineStatus refreshes the online status TTL
func (m *PresenceRegistry) RefreshOnlineStatus(ctx context.Context, userId string) {
	if m.rdb == nil {
		return
	}

	if m.HasConnection(userId) {
		key := fmt.Sprintf(constant.RedisKeyOnline(), userId)
		m.rdb.Expire(ctx, key, 60*time.Second)
	}
}

// setOnline marks user as online in redis
func (m *PresenceRegistry) setOnline(ctx context.Context, userId string) {
	if m.rdb == nil {
		return
	}

	key := fmt.Sprintf(constant.RedisKeyOnline(), userId)
	m.rdb.Set(ctx, key, "1", 60*time.Second)
}

// setOffline marks user as offline in redis
func (m *PresenceRegistry) setOffline(ctx context.Context, userId string) {
	if m.rdb == nil {
		return
	}

	key := fmt.Sprintf(constant.RedisKeyOnline(), userId)
	m.rdb.Del(ctx, key)
}

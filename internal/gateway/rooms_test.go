package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomJoinLeave(t *testing.T) {
	hub := NewRoomHub()
	c := newTestClient("alice", "conn-1")

	assert.False(t, hub.UserInRoom("conv-1", "alice"))

	hub.Join("conv-1", c)
	assert.True(t, hub.UserInRoom("conv-1", "alice"))
	assert.False(t, hub.UserInRoom("conv-1", "bob"))
	assert.Equal(t, 1, hub.RoomCount())

	// Double join is a no-op
	hub.Join("conv-1", c)
	assert.Len(t, hub.Clients("conv-1"), 1)

	hub.Leave("conv-1", c)
	assert.False(t, hub.UserInRoom("conv-1", "alice"))
	assert.Equal(t, 0, hub.RoomCount())

	// Leaving an unjoined room is a no-op
	hub.Leave("conv-2", c)
}

func TestRoomMultipleConnections(t *testing.T) {
	hub := NewRoomHub()
	c1 := newTestClient("alice", "conn-1")
	c2 := newTestClient("alice", "conn-2")

	hub.Join("conv-1", c1)
	hub.Join("conv-1", c2)
	assert.True(t, hub.UserInRoom("conv-1", "alice"))

	// One device leaving keeps the user in the room via the other
	hub.Leave("conv-1", c1)
	assert.True(t, hub.UserInRoom("conv-1", "alice"))

	hub.Leave("conv-1", c2)
	assert.False(t, hub.UserInRoom("conv-1", "alice"))
}

func TestRoomLeaveAll(t *testing.T) {
	hub := NewRoomHub()
	c := newTestClient("alice", "conn-1")
	other := newTestClient("bob", "conn-2")

	hub.Join("conv-1", c)
	hub.Join("conv-2", c)
	hub.Join("conv-1", other)

	hub.LeaveAll(c)
	assert.False(t, hub.UserInRoom("conv-1", "alice"))
	assert.False(t, hub.UserInRoom("conv-2", "alice"))
	assert.True(t, hub.UserInRoom("conv-1", "bob"))
	assert.Equal(t, 1, hub.RoomCount())
}

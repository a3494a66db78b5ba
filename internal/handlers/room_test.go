// internal/handlers/room_test.go
package handlers

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoom(t *testing.T) *Room {
	t.Helper()
	return NewRoomStore(logrus.New()).Room(uuid.New())
}

func joinTestConn(t *testing.T, r *Room, userID int64) *RoomConnection {
	t.Helper()
	rc := &RoomConnection{
		ConnID:  uuid.New(),
		UserID:  userID,
		OutChan: make(chan []byte, 16),
	}
	r.Join(rc)
	return rc
}

func drainEventNames(t *testing.T, rc *RoomConnection) []string {
	t.Helper()
	var names []string
	for {
		select {
		case data := <-rc.OutChan:
			var msg wireMessage
			require.NoError(t, json.Unmarshal(data, &msg))
			names = append(names, msg.EventName)
		default:
			return names
		}
	}
}

func TestRoomEmitPreservesOrder(t *testing.T) {
	r := testRoom(t)
	rc1 := joinTestConn(t, r, 1)
	rc2 := joinTestConn(t, r, 2)

	r.Emit("scoreChanged", map[string]int{"score": 1})
	r.Emit("gameStateChanged", nil)
	r.Emit("scoreChanged", map[string]int{"score": 2})

	want := []string{"scoreChanged", "gameStateChanged", "scoreChanged"}
	assert.Equal(t, want, drainEventNames(t, rc1))
	assert.Equal(t, want, drainEventNames(t, rc2))
}

func TestRoomRejoinReplacesConnection(t *testing.T) {
	r := testRoom(t)
	connID := uuid.New()
	old := &RoomConnection{ConnID: connID, UserID: 1, OutChan: make(chan []byte, 1)}
	r.Join(old)
	replacement := &RoomConnection{ConnID: connID, UserID: 1, OutChan: make(chan []byte, 1)}
	r.Join(replacement)

	assert.Equal(t, 1, r.Size())
	_, open := <-old.OutChan
	assert.False(t, open, "replaced connection's writer channel must be closed")
}

func TestRoomDropsFramesForSlowConsumer(t *testing.T) {
	r := testRoom(t)
	rc := &RoomConnection{ConnID: uuid.New(), UserID: 1, OutChan: make(chan []byte, 1)}
	r.Join(rc)

	r.Emit("scoreChanged", nil)
	r.Emit("scoreChanged", nil) // buffer full, dropped rather than blocking

	assert.Len(t, drainEventNames(t, rc), 1)
}

func TestRoomLeaveClosesWriter(t *testing.T) {
	r := testRoom(t)
	rc := joinTestConn(t, r, 1)
	r.Leave(rc.ConnID)
	assert.Zero(t, r.Size())
	_, open := <-rc.OutChan
	assert.False(t, open)

	r.Leave(rc.ConnID) // second leave is a no-op
}

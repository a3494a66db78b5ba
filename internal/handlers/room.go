// internal/handlers/room.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// wireMessage is the envelope every event crosses the transport in.
type wireMessage struct {
	EventName string      `json:"eventName"`
	Payload   interface{} `json:"payload,omitempty"`
}

// RoomConnection is one client's presence in a session room. Outbound
// messages go through OutChan so each connection has a single writer and
// per-session event order is preserved on the wire.
type RoomConnection struct {
	ConnID  uuid.UUID
	UserID  int64
	OutChan chan []byte
	Cancel  func()
}

// send pushes a frame non-blockingly. A full or closed channel drops the
// frame and reports false; a client that slow is on its way out anyway.
func (rc *RoomConnection) send(data []byte) bool {
	select {
	case rc.OutChan <- data:
		return true
	default:
		return false
	}
}

// Room is the per-session broadcast channel, identified by game id.
// Membership is keyed by transient connection id.
type Room struct {
	GameID uuid.UUID

	mu    sync.Mutex
	conns map[uuid.UUID]*RoomConnection
	log   *logrus.Logger
}

// Join registers a connection in the room.
func (r *Room) Join(rc *RoomConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.conns[rc.ConnID]; ok && old != rc {
		close(old.OutChan)
		if old.Cancel != nil {
			old.Cancel()
		}
	}
	r.conns[rc.ConnID] = rc
}

// Leave removes a connection and shuts down its writer.
func (r *Room) Leave(connID uuid.UUID) {
	r.mu.Lock()
	rc, ok := r.conns[connID]
	if ok {
		delete(r.conns, connID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	close(rc.OutChan)
	if rc.Cancel != nil {
		rc.Cancel()
	}
}

// Emit marshals one event and fans it out to every member's outbound
// channel in place, keeping the FIFO order events were flushed in.
func (r *Room) Emit(eventName string, payload interface{}) {
	data, err := json.Marshal(wireMessage{EventName: eventName, Payload: payload})
	if err != nil {
		r.log.Errorf("room %s: failed to marshal %s event: %v", r.GameID, eventName, err)
		return
	}
	r.mu.Lock()
	conns := make([]*RoomConnection, 0, len(r.conns))
	for _, rc := range r.conns {
		conns = append(conns, rc)
	}
	r.mu.Unlock()
	for _, rc := range conns {
		if !rc.send(data) {
			r.log.Warnf("room %s: dropped %s frame for connection %s", r.GameID, eventName, rc.ConnID)
		}
	}
}

// Size reports current membership.
func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// writePump drains a connection's outbound channel onto the websocket.
// Runs until the channel closes or a write fails.
func writePump(ctx context.Context, c *websocket.Conn, rc *RoomConnection, log *logrus.Logger) {
	for data := range rc.OutChan {
		writeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := c.Write(writeCtx, websocket.MessageText, data)
		cancel()
		if err != nil {
			log.Warnf("write to connection %s failed: %v", rc.ConnID, err)
			return
		}
	}
}

// RoomStore manages the per-session rooms.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*Room
	log   *logrus.Logger
}

// NewRoomStore returns an empty room store.
func NewRoomStore(log *logrus.Logger) *RoomStore {
	return &RoomStore{
		rooms: make(map[uuid.UUID]*Room),
		log:   log,
	}
}

// Room returns the room for a game id, creating it on first use.
func (rs *RoomStore) Room(gameID uuid.UUID) *Room {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r, ok := rs.rooms[gameID]
	if !ok {
		r = &Room{GameID: gameID, conns: make(map[uuid.UUID]*RoomConnection), log: rs.log}
		rs.rooms[gameID] = r
	}
	return r
}

// Delete drops a room, closing any writers still attached.
func (rs *RoomStore) Delete(gameID uuid.UUID) {
	rs.mu.Lock()
	r, ok := rs.rooms[gameID]
	if ok {
		delete(rs.rooms, gameID)
	}
	rs.mu.Unlock()
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rc := range r.conns {
		close(rc.OutChan)
		if rc.Cancel != nil {
			rc.Cancel()
		}
		delete(r.conns, id)
	}
}

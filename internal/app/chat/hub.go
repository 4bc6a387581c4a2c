/*
Package chat contains the live WebSocket layer: the Hub tracking connections
and room memberships, and the Conn read/write pumps speaking the event protocol.

This file defines the Hub, the process-wide registry of live connections and
the rooms they joined. The Hub is the single emitter every other component
delivers events through.
*/
package chat

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"circlechat/internal/pkg/logx"
)

// Hub tracks every live connection and its room memberships.
type Hub struct {
	// mu protects conns, rooms, and memberships.
	mu sync.RWMutex

	// conns maps connection id to the live connection.
	conns map[string]*Conn

	// rooms maps room id to the set of joined connection ids.
	rooms map[string]map[string]struct{}

	// memberships is the reverse index, connection id to joined room ids, used
	// to clean up all memberships when a connection goes away.
	memberships map[string]map[string]struct{}

	logger zerolog.Logger
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		conns:       make(map[string]*Conn),
		rooms:       make(map[string]map[string]struct{}),
		memberships: make(map[string]map[string]struct{}),
		logger:      logx.Logger().With().Str("component", "Hub").Logger(),
	}
}

// AddConn registers a live connection with the hub.
func (h *Hub) AddConn(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c.id] = c
}

// RemoveConn drops the connection and every room membership it held.
func (h *Hub) RemoveConn(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID := range h.memberships[connID] {
		h.removeFromRoomLocked(roomID, connID)
	}
	delete(h.memberships, connID)
	delete(h.conns, connID)
}

// JoinRoom adds the connection to the room. Joining a room twice is a no-op;
// rooms are created on first join.
func (h *Hub) JoinRoom(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return
	}

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]struct{})
	}
	h.rooms[roomID][connID] = struct{}{}

	if h.memberships[connID] == nil {
		h.memberships[connID] = make(map[string]struct{})
	}
	h.memberships[connID][roomID] = struct{}{}
}

// LeaveRoom removes the connection from the room. Leaving a room the
// connection never joined is a no-op; an emptied room is deleted.
func (h *Hub) LeaveRoom(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoomLocked(roomID, connID)
	if m := h.memberships[connID]; m != nil {
		delete(m, roomID)
	}
}

func (h *Hub) removeFromRoomLocked(roomID, connID string) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// RoomMembers returns the connection ids currently joined to the room.
func (h *Hub) RoomMembers(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]string, 0, len(h.rooms[roomID]))
	for connID := range h.rooms[roomID] {
		members = append(members, connID)
	}
	return members
}

// EmitToConn delivers an event to one connection. Returns false if the
// connection is unknown or its send queue rejected the frame.
func (h *Hub) EmitToConn(connID, event string, payload any) bool {
	frame, err := h.encode(event, payload)
	if err != nil {
		return false
	}

	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()

	if !ok {
		return false
	}

	return c.enqueue(frame)
}

// EmitToRoom fans the event out to every connection joined to the room.
func (h *Hub) EmitToRoom(roomID, event string, payload any) {
	frame, err := h.encode(event, payload)
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.rooms[roomID]))
	for connID := range h.rooms[roomID] {
		if c, ok := h.conns[connID]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(frame)
	}
}

// EmitAll delivers the event to every live connection except the one named by
// exceptConnID; the empty string excludes nobody.
func (h *Hub) EmitAll(event string, payload any, exceptConnID string) {
	frame, err := h.encode(event, payload)
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for connID, c := range h.conns {
		if connID == exceptConnID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(frame)
	}
}

func (h *Hub) encode(event string, payload any) ([]byte, error) {
	frame, err := json.Marshal(OutboundEnvelope{Event: event, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).
			Str("event", event).
			Msg("Failed to marshal outbound frame.")
		return nil, err
	}
	return frame, nil
}

// Shutdown closes the send queue of every live connection, which unwinds
// their write pumps with a close frame.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*Conn)
	h.rooms = make(map[string]map[string]struct{})
	h.memberships = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, c := range conns {
		c.closeSend()
	}

	h.logger.Info().Int("connections", len(conns)).Msg("Hub shutdown complete.")
}

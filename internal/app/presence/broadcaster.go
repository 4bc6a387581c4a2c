/*
Package presence tracks which users are currently reachable over a live connection.

This file defines the Broadcaster, which pairs registry mutations with the
process-wide online/offline announcements and routes ephemeral typing
indicators point-to-point.
*/
package presence

import (
	"github.com/rs/zerolog"

	"circlechat/internal/pkg/logx"
)

// Presence event names shared with connected clients.
const (
	EventUserOnline       = "user-online"
	EventUserOffline      = "user-offline"
	EventUserOnlineStatus = "user-online-status"
	EventOnlineUsers      = "onlineUsers"
	EventTyping           = "typing"
	EventStopTyping       = "stop-typing"
)

// Emitter is the transport surface the Broadcaster announces through.
// The chat hub implements it; tests substitute a fake.
type Emitter interface {
	// EmitToConn delivers an event to one connection. Returns false if the
	// connection is gone.
	EmitToConn(connID, event string, payload any) bool

	// EmitAll delivers an event to every live connection except the one named
	// by exceptConnID (empty string excludes nobody).
	EmitAll(event string, payload any, exceptConnID string)
}

// OnlineStatus is the payload answering a check-online query.
type OnlineStatus struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// Broadcaster coordinates the Registry with presence announcements.
type Broadcaster struct {
	registry *Registry
	emitter  Emitter
	logger   zerolog.Logger
}

// NewBroadcaster constructs a Broadcaster over the given registry and emitter.
func NewBroadcaster(registry *Registry, emitter Emitter) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		emitter:  emitter,
		logger:   logx.Logger().With().Str("component", "Broadcaster").Logger(),
	}
}

// Registry exposes the underlying directory for read-side collaborators.
func (b *Broadcaster) Registry() *Registry {
	return b.registry
}

// HandleRegister records the user as online and announces it process-wide.
// The announcement skips the registering connection itself; that client learns
// its own state from the onlineUsers snapshot sent separately. Returns the
// superseded connection id, if any.
func (b *Broadcaster) HandleRegister(userID, connID string) (string, bool) {
	prev, had := b.registry.Register(userID, connID)

	b.emitter.EmitAll(EventUserOnline, userID, connID)

	return prev, had
}

// HandleDisconnect removes the entry via compare-and-delete and announces
// "offline" only if the removal actually happened. A stale connection's
// teardown therefore never reports a still-online user as offline.
func (b *Broadcaster) HandleDisconnect(userID, connID string) bool {
	if userID == "" {
		return false
	}

	removed := b.registry.Unregister(userID, connID)
	if removed {
		b.emitter.EmitAll(EventUserOffline, userID, connID)
	} else {
		b.logger.Debug().
			Str("user_id", userID).
			Str("conn_id", connID).
			Msg("Ignoring disconnect of stale connection; user re-registered elsewhere.")
	}

	return removed
}

// HandleJoin records the user as online and rebroadcasts the full online list
// to every connection. Older clients maintain their presence view from that
// list instead of the incremental user-online events. Returns the superseded
// connection id, if any.
func (b *Broadcaster) HandleJoin(userID, connID string) (string, bool) {
	prev, had := b.registry.Register(userID, connID)

	b.emitter.EmitAll(EventOnlineUsers, b.registry.Snapshot(), "")

	return prev, had
}

// HandleLeave removes the entry via compare-and-delete and rebroadcasts the
// online list only if the removal actually happened.
func (b *Broadcaster) HandleLeave(userID, connID string) bool {
	if userID == "" {
		return false
	}

	removed := b.registry.Unregister(userID, connID)
	if removed {
		b.emitter.EmitAll(EventOnlineUsers, b.registry.Snapshot(), "")
	}

	return removed
}

// QueryOnline answers a check-online request directly to the asking connection.
func (b *Broadcaster) QueryOnline(askerConnID, userID string) {
	status := OnlineStatus{
		UserID:   userID,
		IsOnline: b.registry.IsOnline(userID),
	}

	b.emitter.EmitToConn(askerConnID, EventUserOnlineStatus, status)
}

// SendSnapshot delivers the current online-user list to one connection.
func (b *Broadcaster) SendSnapshot(connID string) {
	b.emitter.EmitToConn(connID, EventOnlineUsers, b.registry.Snapshot())
}

// RouteTyping forwards a typing or stop-typing indicator to the target user's
// connection. Best-effort: silently dropped when the target is not registered.
func (b *Broadcaster) RouteTyping(event, to, from string) {
	connID, ok := b.registry.Lookup(to)
	if !ok {
		return
	}

	b.emitter.EmitToConn(connID, event, from)
}

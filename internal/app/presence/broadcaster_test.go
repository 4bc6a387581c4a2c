package presence

import (
	"sync"
	"testing"
)

// fakeEmitter records emitted events for assertions.
type fakeEmitter struct {
	mu     sync.Mutex
	toConn []emittedEvent
	toAll  []emittedEvent
}

type emittedEvent struct {
	target  string
	event   string
	payload any
}

func (f *fakeEmitter) EmitToConn(connID, event string, payload any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toConn = append(f.toConn, emittedEvent{target: connID, event: event, payload: payload})
	return true
}

func (f *fakeEmitter) EmitAll(event string, payload any, exceptConnID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toAll = append(f.toAll, emittedEvent{target: exceptConnID, event: event, payload: payload})
}

func (f *fakeEmitter) allEvents(name string) []emittedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emittedEvent
	for _, e := range f.toAll {
		if e.event == name {
			out = append(out, e)
		}
	}
	return out
}

func newTestBroadcaster() (*Broadcaster, *fakeEmitter) {
	emitter := &fakeEmitter{}
	return NewBroadcaster(NewRegistry(), emitter), emitter
}

func TestBroadcaster_RegisterAnnouncesOnline(t *testing.T) {
	b, emitter := newTestBroadcaster()

	b.HandleRegister("alice", "c1")

	events := emitter.allEvents(EventUserOnline)
	if len(events) != 1 {
		t.Fatalf("Expected 1 user-online event, got %d", len(events))
	}
	if events[0].payload != "alice" || events[0].target != "c1" {
		t.Errorf("user-online payload/except = (%v, %s), want (alice, c1)", events[0].payload, events[0].target)
	}
}

func TestBroadcaster_DisconnectAnnouncesOfflineOnce(t *testing.T) {
	b, emitter := newTestBroadcaster()

	b.HandleRegister("alice", "c1")
	if !b.HandleDisconnect("alice", "c1") {
		t.Fatal("Disconnect of the registered connection did not remove the entry")
	}

	if got := len(emitter.allEvents(EventUserOffline)); got != 1 {
		t.Errorf("Expected 1 user-offline event, got %d", got)
	}
}

// A stale connection's teardown must not fire an offline broadcast while the
// user is still online through a newer connection.
func TestBroadcaster_StaleDisconnectStaysSilent(t *testing.T) {
	b, emitter := newTestBroadcaster()

	b.HandleRegister("alice", "c1")
	b.HandleRegister("alice", "c2")

	if b.HandleDisconnect("alice", "c1") {
		t.Error("Stale disconnect reported removal")
	}
	if got := len(emitter.allEvents(EventUserOffline)); got != 0 {
		t.Errorf("Stale disconnect fired %d user-offline events, want 0", got)
	}
	if !b.Registry().IsOnline("alice") {
		t.Error("User went offline after stale disconnect")
	}
}

func TestBroadcaster_DisconnectWithoutRegistration(t *testing.T) {
	b, emitter := newTestBroadcaster()

	// A connection that never completed register-user carries no user id.
	if b.HandleDisconnect("", "c9") {
		t.Error("Disconnect of an anonymous connection reported removal")
	}
	if len(emitter.toAll) != 0 {
		t.Errorf("Anonymous disconnect emitted %d events, want 0", len(emitter.toAll))
	}
}

func TestBroadcaster_JoinBroadcastsOnlineList(t *testing.T) {
	b, emitter := newTestBroadcaster()

	b.HandleJoin("alice", "c1")
	b.HandleJoin("bob", "c2")

	events := emitter.allEvents(EventOnlineUsers)
	if len(events) != 2 {
		t.Fatalf("Expected 2 onlineUsers broadcasts, got %d", len(events))
	}
	if events[0].target != "" {
		t.Errorf("onlineUsers broadcast excluded %q, want nobody excluded", events[0].target)
	}

	list, ok := events[1].payload.([]string)
	if !ok || len(list) != 2 {
		t.Fatalf("Second broadcast payload = %v, want both users", events[1].payload)
	}
	if !b.Registry().IsOnline("alice") || !b.Registry().IsOnline("bob") {
		t.Error("Joined users not registered as online")
	}
}

func TestBroadcaster_LeaveRebroadcastsOnlyOnRemoval(t *testing.T) {
	b, emitter := newTestBroadcaster()

	b.HandleJoin("alice", "c1")
	b.HandleJoin("alice", "c2")

	// Stale leave: the user re-joined through a newer connection.
	if b.HandleLeave("alice", "c1") {
		t.Error("Stale leave reported removal")
	}
	if got := len(emitter.allEvents(EventOnlineUsers)); got != 2 {
		t.Errorf("Stale leave fired a broadcast: %d onlineUsers events, want 2", got)
	}

	if !b.HandleLeave("alice", "c2") {
		t.Fatal("Leave of the current connection did not remove the entry")
	}
	events := emitter.allEvents(EventOnlineUsers)
	if len(events) != 3 {
		t.Fatalf("Expected 3 onlineUsers broadcasts after removal, got %d", len(events))
	}
	if list := events[2].payload.([]string); len(list) != 0 {
		t.Errorf("Final online list = %v, want empty", list)
	}
}

func TestBroadcaster_QueryOnline(t *testing.T) {
	b, emitter := newTestBroadcaster()
	b.HandleRegister("bob", "c2")

	b.QueryOnline("c1", "bob")
	b.QueryOnline("c1", "carol")

	if len(emitter.toConn) != 2 {
		t.Fatalf("Expected 2 direct replies, got %d", len(emitter.toConn))
	}

	first, ok := emitter.toConn[0].payload.(OnlineStatus)
	if !ok || !first.IsOnline || first.UserID != "bob" {
		t.Errorf("First reply = %+v, want bob online", emitter.toConn[0].payload)
	}

	second := emitter.toConn[1].payload.(OnlineStatus)
	if second.IsOnline || second.UserID != "carol" {
		t.Errorf("Second reply = %+v, want carol offline", second)
	}
}

func TestBroadcaster_TypingRouting(t *testing.T) {
	b, emitter := newTestBroadcaster()
	b.HandleRegister("bob", "c2")

	b.RouteTyping(EventTyping, "bob", "alice")
	b.RouteTyping(EventTyping, "offline-user", "alice")
	b.RouteTyping(EventStopTyping, "bob", "alice")

	if len(emitter.toConn) != 2 {
		t.Fatalf("Expected 2 routed indicators (offline target dropped), got %d", len(emitter.toConn))
	}
	if emitter.toConn[0].target != "c2" || emitter.toConn[0].event != EventTyping {
		t.Errorf("First indicator routed to (%s, %s), want (c2, typing)", emitter.toConn[0].target, emitter.toConn[0].event)
	}
	if emitter.toConn[1].event != EventStopTyping {
		t.Errorf("Second indicator event = %s, want stop-typing", emitter.toConn[1].event)
	}
}

// Re-registration before a presence query must answer with the new connection.
func TestBroadcaster_RequeryAfterReconnect(t *testing.T) {
	b, emitter := newTestBroadcaster()

	b.HandleRegister("alice", "c1")
	b.HandleDisconnect("alice", "c1")

	b.QueryOnline("asker", "alice")
	if status := emitter.toConn[0].payload.(OnlineStatus); status.IsOnline {
		t.Error("Query after disconnect reported online")
	}

	b.HandleRegister("alice", "c2")
	b.QueryOnline("asker", "alice")
	if status := emitter.toConn[1].payload.(OnlineStatus); !status.IsOnline {
		t.Error("Query after re-registration reported offline")
	}

	connID, _ := b.Registry().Lookup("alice")
	if connID != "c2" {
		t.Errorf("Registry points at %s, want c2", connID)
	}
}

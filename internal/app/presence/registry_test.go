package presence

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry()

	prev, had := reg.Register("alice", "conn-1")
	if had {
		t.Errorf("First registration reported a previous connection: %q", prev)
	}

	connID, ok := reg.Lookup("alice")
	if !ok || connID != "conn-1" {
		t.Errorf("Lookup after register = (%q, %v), want (conn-1, true)", connID, ok)
	}

	if !reg.IsOnline("alice") {
		t.Error("IsOnline returned false for a registered user")
	}
	if reg.IsOnline("bob") {
		t.Error("IsOnline returned true for an unknown user")
	}
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	reg := NewRegistry()

	reg.Register("alice", "conn-1")
	prev, had := reg.Register("alice", "conn-2")

	if !had || prev != "conn-1" {
		t.Errorf("Supersession returned (%q, %v), want (conn-1, true)", prev, had)
	}

	connID, _ := reg.Lookup("alice")
	if connID != "conn-2" {
		t.Errorf("Lookup after supersession = %q, want conn-2", connID)
	}
}

func TestRegistry_CompareAndDelete(t *testing.T) {
	tests := []struct {
		name        string
		registered  string
		unregister  string
		wantRemoved bool
		wantOnline  bool
	}{
		{"matching connection removes entry", "conn-1", "conn-1", true, false},
		{"stale connection leaves entry intact", "conn-2", "conn-1", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			reg.Register("alice", tt.registered)

			removed := reg.Unregister("alice", tt.unregister)
			if removed != tt.wantRemoved {
				t.Errorf("Unregister = %v, want %v", removed, tt.wantRemoved)
			}
			if reg.IsOnline("alice") != tt.wantOnline {
				t.Errorf("IsOnline = %v, want %v", reg.IsOnline("alice"), tt.wantOnline)
			}
		})
	}
}

func TestRegistry_UnregisterUnknownUser(t *testing.T) {
	reg := NewRegistry()

	if reg.Unregister("ghost", "conn-1") {
		t.Error("Unregister of unknown user reported removal")
	}
}

// A register/supersede/disconnect sequence must keep the user online through
// the stale teardown: C1 registers, C2 supersedes, C1 disconnects.
func TestRegistry_StaleDisconnectAfterSupersession(t *testing.T) {
	reg := NewRegistry()

	reg.Register("alice", "c1")
	reg.Register("alice", "c2")

	if reg.Unregister("alice", "c1") {
		t.Error("Stale unregister succeeded after supersession")
	}

	connID, ok := reg.Lookup("alice")
	if !ok || connID != "c2" {
		t.Errorf("User lost after stale disconnect: Lookup = (%q, %v)", connID, ok)
	}
}

func TestRegistry_Snapshot(t *testing.T) {
	reg := NewRegistry()
	reg.Register("alice", "c1")
	reg.Register("bob", "c2")
	reg.Register("carol", "c3")
	reg.Unregister("bob", "c2")

	snapshot := reg.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("Snapshot size = %d, want 2", len(snapshot))
	}

	online := make(map[string]bool, len(snapshot))
	for _, id := range snapshot {
		online[id] = true
	}
	if !online["alice"] || !online["carol"] || online["bob"] {
		t.Errorf("Snapshot contents wrong: %v", snapshot)
	}
}

// Concurrent register/unregister churn must never corrupt the map or report a
// user online after its last matching unregister.
func TestRegistry_ConcurrentChurn(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", n%10)
			connID := fmt.Sprintf("conn-%d", n)

			reg.Register(userID, connID)
			reg.Lookup(userID)
			reg.Unregister(userID, connID)
		}(i)
	}
	wg.Wait()

	// Every goroutine unregistered its own connection; only entries superseded
	// before their owner's unregister may survive, and each must point at a
	// connection whose unregister lost the compare-and-delete race.
	for _, userID := range reg.Snapshot() {
		if _, ok := reg.Lookup(userID); !ok {
			t.Errorf("Snapshot lists %s but Lookup misses it", userID)
		}
	}
}

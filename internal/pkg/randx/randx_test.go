package randx

import (
	"strings"
	"testing"
)

func TestPairRoomIDIsOrderIndependent(t *testing.T) {
	if got, want := PairRoomID("bob", "alice"), "alice_bob"; got != want {
		t.Errorf("PairRoomID(bob, alice) = %s, want %s", got, want)
	}
	if PairRoomID("alice", "bob") != PairRoomID("bob", "alice") {
		t.Error("PairRoomID is not symmetric")
	}
}

func TestIsValidRoomID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"alice_bob", true},
		{PairRoomID(strings.Repeat("a", MaxIDLength), strings.Repeat("b", MaxIDLength)), true},
		{strings.Repeat("r", MaxRoomIDLength+1), false},
		{"", false},
		{"has space", false},
	}

	for _, tt := range tests {
		if got := IsValidRoomID(tt.id); got != tt.want {
			t.Errorf("IsValidRoomID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestPairRoomIDFromValidUsersIsValid(t *testing.T) {
	a := strings.Repeat("a", 36)
	b := strings.Repeat("b", 36)
	if !IsValidID(a) || !IsValidID(b) {
		t.Fatal("user ids unexpectedly invalid")
	}

	room := PairRoomID(a, b)
	if !IsValidRoomID(room) {
		t.Errorf("derived room id %q (len %d) rejected", room, len(room))
	}
}

func TestIsValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"alice", true},
		{"user-123_x.y", true},
		{"", false},
		{"has space", false},
		{"tab\tchar", false},
		{"new\nline", false},
		{`back\slash`, false},
		{`quo"te`, false},
		{string(make([]byte, MaxIDLength+1)), false},
	}

	for _, tt := range tests {
		if got := IsValidID(tt.id); got != tt.want {
			t.Errorf("IsValidID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestMessageIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := MessageID()
		if !IsValidID(id) {
			t.Fatalf("generated id %q failed validation", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

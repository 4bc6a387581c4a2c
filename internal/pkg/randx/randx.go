/*
Package randx provides identifier generation and validation helpers.

It generates UUID-based message and connection identifiers and derives the
canonical room identifier for a pair of users.
*/
package randx

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxIDLength is the upper bound accepted for client-supplied user and
	// message identifiers (opaque strings owned by the profile store).
	MaxIDLength = 64

	// MaxRoomIDLength is the upper bound for room identifiers. A canonical
	// pair room joins two maximum-length user ids with the separator, so the
	// room bound must admit that concatenation.
	MaxRoomIDLength = 2*MaxIDLength + 1

	// pairRoomSeparator joins the two participant ids of a canonical room id.
	pairRoomSeparator = "_"
)

// MessageID generates a UUID v4 string used as a message identifier.
func MessageID() string {
	return uuid.New().String()
}

// ConnectionID generates a UUID v4 string identifying one live connection.
func ConnectionID() string {
	return uuid.New().String()
}

// PairRoomID derives the canonical room identifier for two users. The two ids
// are ordered lexicographically so both participants derive the same room.
func PairRoomID(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + pairRoomSeparator + userB
}

// IsValidID reports whether a client-supplied identifier is usable: non-empty,
// within the length bound, and free of whitespace and control characters.
func IsValidID(id string) bool {
	return len(id) <= MaxIDLength && hasValidIDChars(id)
}

// IsValidRoomID reports whether a room identifier is usable. Rooms carry a
// wider length bound than user ids so that every id PairRoomID can derive from
// two valid user ids is itself valid.
func IsValidRoomID(id string) bool {
	return len(id) <= MaxRoomIDLength && hasValidIDChars(id)
}

func hasValidIDChars(id string) bool {
	if id == "" {
		return false
	}

	for _, char := range id {
		if char <= ' ' || char == 0x7f {
			return false
		}
	}

	return !strings.ContainsAny(id, "\\\"")
}

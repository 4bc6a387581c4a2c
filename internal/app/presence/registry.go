/*
Package presence tracks which users are currently reachable over a live connection.

This file defines the Registry, the single source of truth mapping a user id to
its active connection id. It is the only structure in the server mutated from
arbitrarily many concurrent goroutines; all operations run under one mutex and
complete in bounded time.
*/
package presence

import (
	"sync"

	"github.com/rs/zerolog"

	"circlechat/internal/pkg/logx"
)

// Registry is the authoritative in-memory online-user directory.
// A user has at most one entry; a newer registration supersedes an older one
// without closing the superseded connection.
type Registry struct {
	// mu guards the entries map. Every operation is a plain map access, so a
	// single mutex domain gives linearizable read-after-write visibility.
	mu sync.RWMutex

	// entries maps user id to the id of its active connection.
	entries map[string]string

	// structured logger with registry context.
	logger zerolog.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]string),
		logger:  logx.Logger().With().Str("component", "Registry").Logger(),
	}
}

// Register inserts or overwrites the directory entry for userID and returns
// the previously registered connection id, if any. Last registration wins.
func (r *Registry) Register(userID, connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, had := r.entries[userID]
	r.entries[userID] = connID

	if had && prev != connID {
		r.logger.Info().
			Str("user_id", userID).
			Str("old_conn_id", prev).
			Str("new_conn_id", connID).
			Msg("Registration superseded an existing connection.")
	}

	return prev, had
}

// Unregister removes the entry for userID only if it still points at connID
// (compare-and-delete). A disconnect from a stale connection must not evict a
// newer registration of the same user. Returns whether removal happened.
func (r *Registry) Unregister(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.entries[userID]
	if !ok || current != connID {
		return false
	}

	delete(r.entries, userID)
	return true
}

// Lookup returns the connection id currently registered for userID.
func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connID, ok := r.entries[userID]
	return connID, ok
}

// IsOnline reports whether userID has a registered connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.entries[userID]
	return ok
}

// Snapshot returns the ids of all currently online users.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.entries))
	for userID := range r.entries {
		users = append(users, userID)
	}
	return users
}

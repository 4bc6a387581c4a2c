/*
Package social covers the relationship features around messaging: blocking,
reporting, and paid conversation unlocks.

Blocks are directional rows; a conversation is closed when either direction
exists. Unlocks are stored per normalized user pair, so either participant's
purchase opens the conversation for both.
*/
package social

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors mapped to API error codes by the handlers.
var (
	ErrAlreadyBlocked      = errors.New("user already blocked")
	ErrNotBlocked          = errors.New("user is not blocked")
	ErrInsufficientBalance = errors.New("wallet balance too low")
	ErrProfileMissing      = errors.New("payer profile not found")
)

// UnlockCost is the wallet price, in minor currency units, of opening a
// conversation with a locked user.
const UnlockCost int64 = 100

// BlockedUser is one entry of a user's block list.
type BlockedUser struct {
	UserID    string    `json:"userId"`
	BlockedAt time.Time `json:"blockedAt"`
}

// UnlockResult reports the outcome of a purchase attempt.
type UnlockResult struct {
	// Unlocked is true once the pair is open, whether this call paid for it
	// or a previous one did.
	Unlocked bool `json:"unlocked"`

	// AlreadyUnlocked marks a repeat purchase that charged nothing.
	AlreadyUnlocked bool `json:"alreadyUnlocked"`

	// RemainingBalance is the payer's wallet balance after the call.
	RemainingBalance int64 `json:"remainingBalance"`
}

// Store is the persistence surface for blocks, reports, and unlocks.
type Store interface {
	// Block records blocker blocking blocked and revokes any unlock between
	// the two. Blocking an already blocked user returns ErrAlreadyBlocked.
	Block(ctx context.Context, blockerID, blockedID string) error

	// Unblock removes the block. Returns ErrNotBlocked when none exists.
	Unblock(ctx context.Context, blockerID, blockedID string) error

	// ListBlocked returns the users blocked by blockerID, most recent first.
	ListBlocked(ctx context.Context, blockerID string) ([]BlockedUser, error)

	// EitherBlocked reports whether a block exists in either direction.
	EitherBlocked(ctx context.Context, userA, userB string) (bool, error)

	// Report files an abuse report against reportedID.
	Report(ctx context.Context, reporterID, reportedID, reason string) error

	// HasUnlock reports whether the pair's conversation is open.
	HasUnlock(ctx context.Context, userA, userB string) (bool, error)

	// PurchaseUnlock opens the pair's conversation, deducting UnlockCost from
	// payerID's wallet. Repeat purchases are free no-ops. Returns
	// ErrInsufficientBalance when the wallet cannot cover the cost.
	PurchaseUnlock(ctx context.Context, payerID, targetID string) (*UnlockResult, error)
}

// normalizePair orders two user ids so a pair is stored in one canonical form.
func normalizePair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

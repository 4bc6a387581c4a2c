/*
Package user contains the user-profile data structures and the store accessing them.

Profiles are owned by the persistent store; this package exposes the narrow
read/write surface the messaging core needs: display names, push tokens,
wallet balances, and the visible-user listing.
*/
package user

import "context"

// Push token kinds accepted by device registration.
const (
	// TokenKindNative is a platform-native (APNs) device token.
	TokenKindNative = "apns"

	// TokenKindCrossPlatform is a cross-platform (Expo) push token.
	TokenKindCrossPlatform = "expo"
)

// Profile is the subset of a user record relevant to messaging and push fallback.
type Profile struct {
	// UserID is the stable opaque identifier of the user.
	UserID string `json:"userId"`

	// DisplayName is shown in push notification titles.
	DisplayName string `json:"displayName"`

	// APNSToken is the platform-native push token, if registered.
	APNSToken string `json:"-"`

	// ExpoPushToken is the cross-platform push token, if registered.
	ExpoPushToken string `json:"-"`

	// WalletBalance is the user's balance in minor currency units.
	WalletBalance int64 `json:"walletBalance"`

	// UnlockedCount caps how many other users this user may list.
	UnlockedCount int `json:"unlockedCount"`
}

// ListedUser is one entry of the visible-users listing, annotated with live presence.
type ListedUser struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	IsOnline    bool   `json:"isOnline"`
}

// Store is the profile persistence surface consumed by the core.
type Store interface {
	// FindProfile returns the profile for userID, or a not-found error.
	FindProfile(ctx context.Context, userID string) (*Profile, error)

	// RegisterDevice upserts the push token of the given kind for userID,
	// creating the profile row if it does not exist yet. A non-empty
	// displayName also refreshes the stored name.
	RegisterDevice(ctx context.Context, userID, displayName, kind, token string) error

	// ListVisible returns one page of users other than userID, capped by the
	// requesting user's unlocked count. hasMore reports whether another page
	// exists within the cap.
	ListVisible(ctx context.Context, userID string, page, limit int) (users []ListedUser, hasMore bool, err error)
}

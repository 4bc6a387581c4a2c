/*
Package message implements the chat message model and its delivery state machine.

A message moves through sent → delivered → read. Transitions are monotonic and
enforced by guarded store updates, never by mutating an in-process copy.
*/
package message

import "time"

// Status is the delivery state attached to a message.
type Status string

const (
	// StatusSent is the initial state, set at creation.
	StatusSent Status = "sent"

	// StatusDelivered means the message reached the recipient's device, either
	// live at send time, through a history fetch, or via an explicit ack.
	StatusDelivered Status = "delivered"

	// StatusRead is the terminal state, set by an explicit read receipt.
	StatusRead Status = "read"
)

// rank orders the states for monotonicity checks.
func (s Status) rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	}
	return -1
}

// CanAdvanceTo reports whether moving from s to next respects the
// sent → delivered → read ordering. Re-applying the current state or a lower
// one is a no-op, never a downgrade.
func (s Status) CanAdvanceTo(next Status) bool {
	return next.rank() > s.rank()
}

const (
	// MaxBodyBytes caps the text content of one message.
	MaxBodyBytes = 5000

	// PushMediaPlaceholder is the push notification body for non-text content.
	PushMediaPlaceholder = "[Media Message]"
)

// Message is one chat payload exchanged between exactly two users.
type Message struct {
	// ID is the UUID assigned at creation.
	ID string `json:"id"`

	// RoomID is the routing label shared by the two participants.
	RoomID string `json:"roomId"`

	// SenderID and ReceiverID identify the two parties.
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`

	// Body is the text content, possibly empty when media is attached.
	Body string `json:"text"`

	// Media references; at most one of these is expected to be set.
	ImageURL string `json:"imageUrl,omitempty"`
	GifURL   string `json:"gifUrl,omitempty"`
	VideoURL string `json:"videoUrl,omitempty"`

	// Status is the current delivery state.
	Status Status `json:"status"`

	// CreatedAt is the creation timestamp set by the server.
	CreatedAt time.Time `json:"timestamp"`

	// DeliveredAt and ReadAt record the transition times. ReadAt set with a
	// nil DeliveredAt still implies delivery happened logically.
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}

// HasContent reports whether the message carries text or a media reference.
func (m *Message) HasContent() bool {
	return m.Body != "" || m.ImageURL != "" || m.GifURL != "" || m.VideoURL != ""
}

// PushBody returns the body used for a push notification: the text content,
// or a fixed placeholder for media-only messages.
func (m *Message) PushBody() string {
	if m.Body != "" {
		return m.Body
	}
	return PushMediaPlaceholder
}

// DeliveredNotice is the payload of a message-delivered event sent to the
// original sender's connection.
type DeliveredNotice struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId"`
}

// ReadNotice is the payload of the room-scoped messages-read broadcast.
type ReadNotice struct {
	RoomID     string   `json:"roomId"`
	UserID     string   `json:"userId"`
	MessageIDs []string `json:"messageIds"`
}

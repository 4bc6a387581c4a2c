/*
Package chat contains the live WebSocket layer: the Hub tracking connections
and room memberships, and the Conn read/write pumps speaking the event protocol.

This file defines the wire envelope and the inbound event payloads. Every frame
in either direction is {"event": <name>, "payload": <value>}; several inbound
events historically carry a bare JSON string as payload and both forms are
accepted.
*/
package chat

import (
	"encoding/json"
	"fmt"
)

// Inbound event names accepted from clients. userJoin and userLeave are the
// older presence events; clients sending them maintain their view from the
// broadcast onlineUsers list rather than the incremental announcements.
const (
	EventRegisterUser    = "register-user"
	EventUserJoin        = "userJoin"
	EventUserLeave       = "userLeave"
	EventJoinRoom        = "joinRoom"
	EventLeaveRoom       = "leaveRoom"
	EventSendMessage     = "sendMessage"
	EventMarkAsRead      = "mark-as-read"
	EventMarkAsDelivered = "mark-as-delivered"
	EventCheckOnline     = "check-online"
	EventLogoutUser      = "logout-user"
)

// EventError is the outbound event carrying a structured error to one client.
const EventError = "error"

// Envelope is the frame exchanged over the WebSocket in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutboundEnvelope is the send-side counterpart carrying an arbitrary payload.
type OutboundEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// SendMessagePayload is the body of a sendMessage event.
type SendMessagePayload struct {
	RoomID string `json:"roomId"`
	Msg    struct {
		SenderID   string `json:"senderId"`
		ReceiverID string `json:"receiverId"`
		Text       string `json:"text"`
		ImageURL   string `json:"imageUrl"`
		GifURL     string `json:"gifUrl"`
		VideoURL   string `json:"videoUrl"`
	} `json:"msg"`
}

// MarkReadPayload is the body of a mark-as-read event.
type MarkReadPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// MarkDeliveredPayload is the body of a mark-as-delivered acknowledgement.
type MarkDeliveredPayload struct {
	MessageID string `json:"messageId"`
}

// TypingPayload is the body of a typing or stop-typing indicator.
type TypingPayload struct {
	To   string `json:"to"`
	From string `json:"from"`
}

// ErrorPayload is the body of an outbound error event.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// decodeStringPayload extracts a string from a payload that is either a bare
// JSON string or an object wrapping it under one of the given keys. Clients
// predating the enveloped form send the bare variant.
func decodeStringPayload(raw json.RawMessage, keys ...string) (string, error) {
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("payload is neither a string nor an object")
	}

	for _, key := range keys {
		if v, ok := obj[key]; ok {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return "", fmt.Errorf("payload field %q is not a string", key)
			}
			return s, nil
		}
	}

	return "", fmt.Errorf("payload object has none of the expected fields %v", keys)
}

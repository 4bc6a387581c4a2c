/*
Package chat contains the live WebSocket layer: the Hub tracking connections
and room memberships, and the Conn read/write pumps speaking the event protocol.

This file defines the Conn, one accepted WebSocket connection. It runs the
read and write pumps, dispatches inbound events to the presence broadcaster
and the message service, and tears itself down on disconnect.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"circlechat/internal/app/message"
	"circlechat/internal/app/presence"
	"circlechat/internal/pkg/errs"
	"circlechat/internal/pkg/logx"
	"circlechat/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 8192
)

// Conn represents one active WebSocket connection.
type Conn struct {
	hub         *Hub
	broadcaster *presence.Broadcaster
	messages    *message.Service

	// roomScopedPresence makes leaveRoom also drop the user from the online
	// directory. Off by default; presence then survives room changes.
	roomScopedPresence bool

	// underlying WebSocket connection object.
	ws *websocket.Conn

	// id is the connection id, unique per accepted socket.
	id string

	// userID is set by register-user and cleared by logout-user. Written and
	// read only by the read pump.
	userID string

	// a buffered channel queuing frames waiting to be written to the client.
	send chan []byte

	// closeOnce guards the send channel against a double close.
	closeOnce sync.Once

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewConn constructs a Conn for an accepted WebSocket and registers it with
// the hub. The caller starts the pumps.
func NewConn(hub *Hub, broadcaster *presence.Broadcaster, messages *message.Service, ws *websocket.Conn, roomScopedPresence bool) *Conn {
	connID := randx.ConnectionID()

	c := &Conn{
		hub:                hub,
		broadcaster:        broadcaster,
		messages:           messages,
		roomScopedPresence: roomScopedPresence,
		ws:                 ws,
		id:                 connID,
		send:               make(chan []byte, 256),
		logger:             logx.Logger().With().Str("conn_id", connID).Logger(),
	}

	hub.AddConn(c)

	return c
}

// ID returns the connection id.
func (c *Conn) ID() string {
	return c.id
}

// enqueue appends a frame to the send queue without blocking. A full queue
// drops the frame; a slow client must not stall the emitter.
func (c *Conn) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Send queue full, dropping frame.")
		return false
	}
}

func (c *Conn) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// ReadPump reads frames from the WebSocket until the connection dies,
// dispatching each event. It owns the disconnect cleanup.
func (c *Conn) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.ws.SetReadLimit(maxMessageSize)

	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			break
		}

		c.dispatch(frame)
	}
}

// cleanupOnDisconnect unwinds the connection's presence and hub state. The
// offline announcement is conditional: a stale connection superseded by a
// newer registration of the same user stays silent.
func (c *Conn) cleanupOnDisconnect() {
	c.logger.Info().Str("user_id", c.userID).Msg("Connection cleanup starting.")

	c.broadcaster.HandleDisconnect(c.userID, c.id)
	c.hub.RemoveConn(c.id)
	c.closeSend()

	if err := c.ws.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Connection close error")
	}
}

// dispatch routes one inbound frame to its handler.
func (c *Conn) dispatch(frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		return
	}

	switch env.Event {
	case EventRegisterUser:
		c.handleRegister(env.Payload)

	case EventUserJoin:
		c.handleUserJoin(env.Payload)

	case EventUserLeave:
		c.handleUserLeave(env.Payload)

	case EventJoinRoom:
		c.handleJoinRoom(env.Payload)

	case EventLeaveRoom:
		c.handleLeaveRoom(env.Payload)

	case EventSendMessage:
		c.handleSendMessage(env.Payload)

	case EventMarkAsRead:
		c.handleMarkRead(env.Payload)

	case EventMarkAsDelivered:
		c.handleMarkDelivered(env.Payload)

	case EventCheckOnline:
		c.handleCheckOnline(env.Payload)

	case presence.EventTyping, presence.EventStopTyping:
		c.handleTyping(env.Event, env.Payload)

	case EventLogoutUser:
		c.handleLogout()

	default:
		c.logger.Warn().Str("event", env.Event).Msg("Client sent unsupported event")
	}
}

// handleRegister binds the connection to a user id and announces the user
// online. A newer registration for the same user supersedes an older one; the
// superseded connection is left open and simply stops receiving targeted
// events.
func (c *Conn) handleRegister(raw json.RawMessage) {
	userID, err := decodeStringPayload(raw, "userId")
	if err != nil || !randx.IsValidID(userID) {
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	c.userID = userID
	c.broadcaster.HandleRegister(userID, c.id)
	c.broadcaster.SendSnapshot(c.id)

	c.logger.Info().Str("user_id", userID).Msg("User registered on connection.")
}

// handleUserJoin is the older registration path. It binds the user like
// register-user but announces presence by rebroadcasting the full online list
// to everyone, which is what userJoin clients consume.
func (c *Conn) handleUserJoin(raw json.RawMessage) {
	userID, err := decodeStringPayload(raw, "userId")
	if err != nil || !randx.IsValidID(userID) {
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	c.userID = userID
	c.broadcaster.HandleJoin(userID, c.id)

	c.logger.Info().Str("user_id", userID).Msg("User joined on connection.")
}

// handleUserLeave is the older logout path, unbinding the user and
// rebroadcasting the online list when the entry was actually removed.
func (c *Conn) handleUserLeave(raw json.RawMessage) {
	userID, err := decodeStringPayload(raw, "userId")
	if err != nil || !randx.IsValidID(userID) {
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	c.broadcaster.HandleLeave(userID, c.id)
	if c.userID == userID {
		c.userID = ""
	}
}

func (c *Conn) handleJoinRoom(raw json.RawMessage) {
	roomID, err := decodeStringPayload(raw, "roomId")
	if err != nil || !randx.IsValidRoomID(roomID) {
		c.SendError(errs.NewError(errs.ErrRoomIDInvalid))
		return
	}

	c.hub.JoinRoom(c.id, roomID)
}

func (c *Conn) handleLeaveRoom(raw json.RawMessage) {
	roomID, err := decodeStringPayload(raw, "roomId")
	if err != nil || !randx.IsValidRoomID(roomID) {
		c.SendError(errs.NewError(errs.ErrRoomIDInvalid))
		return
	}

	c.hub.LeaveRoom(c.id, roomID)

	if c.roomScopedPresence {
		c.broadcaster.HandleDisconnect(c.userID, c.id)
	}
}

func (c *Conn) handleSendMessage(raw json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	senderID := payload.Msg.SenderID
	if senderID == "" {
		senderID = c.userID
	}

	_, cerr := c.messages.Create(context.Background(), message.CreateInput{
		RoomID:     payload.RoomID,
		SenderID:   senderID,
		ReceiverID: payload.Msg.ReceiverID,
		Text:       payload.Msg.Text,
		ImageURL:   payload.Msg.ImageURL,
		GifURL:     payload.Msg.GifURL,
		VideoURL:   payload.Msg.VideoURL,
	})
	if cerr != nil {
		c.SendError(cerr)
	}
}

func (c *Conn) handleMarkRead(raw json.RawMessage) {
	var payload MarkReadPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	if cerr := c.messages.MarkRead(context.Background(), payload.RoomID, payload.UserID); cerr != nil {
		c.SendError(cerr)
	}
}

func (c *Conn) handleMarkDelivered(raw json.RawMessage) {
	var payload MarkDeliveredPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	if cerr := c.messages.MarkDelivered(context.Background(), payload.MessageID); cerr != nil {
		c.SendError(cerr)
	}
}

func (c *Conn) handleCheckOnline(raw json.RawMessage) {
	userID, err := decodeStringPayload(raw, "userId")
	if err != nil || !randx.IsValidID(userID) {
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	c.broadcaster.QueryOnline(c.id, userID)
}

func (c *Conn) handleTyping(event string, raw json.RawMessage) {
	var payload TypingPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}

	from := payload.From
	if from == "" {
		from = c.userID
	}

	c.broadcaster.RouteTyping(event, payload.To, from)
}

// handleLogout announces the user offline and unbinds the connection without
// closing it. The socket may register a different user afterwards.
func (c *Conn) handleLogout() {
	c.broadcaster.HandleDisconnect(c.userID, c.id)
	c.userID = ""
}

// WritePump writes queued frames and heartbeat pings to the WebSocket.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedFrame writes one frame pulled from the send channel. Returns
// false when the write pump should terminate.
func (c *Conn) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.ws.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Error().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

// writePingMessage sends a heartbeat ping. Returns false on write failure.
func (c *Conn) writePingMessage() bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Debug().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// SendError queues a structured error event to this client.
func (c *Conn) SendError(err error) {
	var code int
	var msg string

	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		code = customErr.Code
		msg = customErr.Message
	} else {
		code = errs.ErrUnknown
		msg = fmt.Sprintf("Internal server error: %v", err)
	}

	frame, marshalErr := json.Marshal(OutboundEnvelope{
		Event:   EventError,
		Payload: ErrorPayload{Code: code, Message: msg},
	})
	if marshalErr != nil {
		c.logger.Error().Err(marshalErr).Msg("Failed to build error frame")
		return
	}

	c.enqueue(frame)
}

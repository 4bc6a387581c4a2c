/*
Package message implements the chat message model and its delivery state machine.

This file defines the Service coordinating persistence, room broadcast, live
delivery to the recipient's connection, and the push fallback when the
recipient is unreachable.
*/
package message

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"circlechat/internal/app/presence"
	"circlechat/internal/app/user"
	"circlechat/internal/pkg/errs"
	"circlechat/internal/pkg/logx"
	"circlechat/internal/pkg/randx"
)

// Wire event names emitted by the delivery state machine.
const (
	EventNewMessage       = "newMessage"
	EventMessageReceived  = "message-received"
	EventMessageDelivered = "message-delivered"
	EventMessagesRead     = "messages-read"
)

const (
	// historyDefaultLimit and historyMaxLimit bound one history page.
	historyDefaultLimit = 50
	historyMaxLimit     = 200

	// pushDispatchTimeout bounds the profile lookups and provider calls of one
	// push fallback so a hanging collaborator cannot pin the goroutine forever.
	pushDispatchTimeout = 15 * time.Second

	// fallbackSenderName titles a push when the sender has no profile record.
	fallbackSenderName = "Someone"
)

// Emitter is the live-transport surface the Service delivers events through.
type Emitter interface {
	// EmitToRoom fans the event out to every connection joined to the room,
	// including the sender's own.
	EmitToRoom(roomID, event string, payload any)

	// EmitToConn delivers an event to one connection. Returns false if the
	// connection is gone.
	EmitToConn(connID, event string, payload any) bool
}

// PushDispatcher is the push-fallback surface. Dispatch never returns an
// error: provider failures are logged and swallowed, they must not fail the
// send that triggered them.
type PushDispatcher interface {
	Dispatch(ctx context.Context, recipient *user.Profile, senderName, body string)
}

// BlockChecker answers whether messaging between two users is blocked. The
// social store satisfies it; a nil checker disables enforcement.
type BlockChecker interface {
	EitherBlocked(ctx context.Context, userA, userB string) (bool, error)
}

// CreateInput is a message submission from a client.
type CreateInput struct {
	RoomID     string
	SenderID   string
	ReceiverID string
	Text       string
	ImageURL   string
	GifURL     string
	VideoURL   string
}

// HistoryQuery selects one page of room history.
type HistoryQuery struct {
	RoomID string

	// Before bounds the page to messages created strictly earlier; zero means
	// from the latest.
	Before time.Time

	Limit int

	// RequestingUserID identifies the reader. Messages addressed to it that
	// are still in sent are advanced to delivered as a side effect.
	RequestingUserID string
}

// Service is the delivery state machine. It owns every transition a message
// goes through and the events each transition emits.
type Service struct {
	store    Store
	profiles user.Store
	push     PushDispatcher
	blocks   BlockChecker
	registry *presence.Registry
	emitter  Emitter
	logger   zerolog.Logger
}

// NewService wires the delivery state machine to its collaborators. blocks may
// be nil to skip block enforcement.
func NewService(store Store, profiles user.Store, push PushDispatcher, blocks BlockChecker, registry *presence.Registry, emitter Emitter) *Service {
	return &Service{
		store:    store,
		profiles: profiles,
		push:     push,
		blocks:   blocks,
		registry: registry,
		emitter:  emitter,
		logger:   logx.Logger().With().Str("component", "MessageService").Logger(),
	}
}

// Create persists a new message in state sent and broadcasts it to the room
// before any delivery or push resolution, so both live participants see it
// with minimal latency. If the recipient has a registered connection the
// message is handed to it and advanced to delivered through a guarded update;
// otherwise a push fallback is dispatched asynchronously. A persistence
// failure emits nothing: clients never observe an unpersisted message.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Message, *errs.CustomError) {
	if !randx.IsValidID(in.SenderID) || !randx.IsValidID(in.ReceiverID) {
		return nil, errs.NewError(errs.ErrInvalidParams)
	}

	// Clients that do not compute the pair room themselves get the canonical one.
	if in.RoomID == "" {
		in.RoomID = randx.PairRoomID(in.SenderID, in.ReceiverID)
	}
	if !randx.IsValidRoomID(in.RoomID) {
		return nil, errs.NewError(errs.ErrRoomIDInvalid)
	}
	if len(in.Text) > MaxBodyBytes {
		return nil, errs.NewError(errs.ErrMessageContentTooLong)
	}

	if s.blocks != nil {
		blocked, err := s.blocks.EitherBlocked(ctx, in.SenderID, in.ReceiverID)
		if err != nil {
			// Enforcement is best effort; an unavailable social store must not
			// take messaging down with it.
			s.logger.Warn().Err(err).
				Str("sender_id", in.SenderID).
				Msg("Block check failed; allowing send.")
		} else if blocked {
			return nil, errs.NewError(errs.ErrUserBlocked)
		}
	}

	m := &Message{
		ID:         randx.MessageID(),
		RoomID:     in.RoomID,
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Body:       in.Text,
		ImageURL:   in.ImageURL,
		GifURL:     in.GifURL,
		VideoURL:   in.VideoURL,
		Status:     StatusSent,
		CreatedAt:  time.Now().UTC(),
	}

	if !m.HasContent() {
		return nil, errs.NewError(errs.ErrMessageContentMissing)
	}

	if err := s.store.CreateMessage(ctx, m); err != nil {
		s.logger.Error().Err(err).
			Str("room_id", in.RoomID).
			Str("sender_id", in.SenderID).
			Msg("Failed to persist message.")
		return nil, errs.NewError(errs.ErrMessagePersistFailed)
	}

	s.emitter.EmitToRoom(m.RoomID, EventNewMessage, m)

	if connID, online := s.registry.Lookup(m.ReceiverID); online {
		s.deliverLive(ctx, m, connID)
	} else {
		// Push resolution happens off the submitting goroutine, detached from
		// the connection's lifetime: a teardown mid-dispatch must not cancel it.
		go s.dispatchPush(context.WithoutCancel(ctx), m)
	}

	return m, nil
}

// deliverLive hands the freshly created message to the recipient's connection
// and advances it to delivered via the guarded store update.
func (s *Service) deliverLive(ctx context.Context, m *Message, recipientConnID string) {
	s.emitter.EmitToConn(recipientConnID, EventMessageReceived, m)

	updated, transitioned, err := s.store.MarkDelivered(ctx, m.ID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("message_id", m.ID).
			Msg("Failed to record live delivery.")
		return
	}

	if transitioned {
		*m = *updated
		s.notifySenderDelivered(updated)
	}
}

// MarkDelivered applies an explicit delivery acknowledgement from the
// recipient's client. Only a message still in sent transitions; anything else
// is a race-induced no-op, not an error.
func (s *Service) MarkDelivered(ctx context.Context, messageID string) *errs.CustomError {
	if !randx.IsValidID(messageID) {
		return errs.NewError(errs.ErrInvalidParams)
	}

	updated, transitioned, err := s.store.MarkDelivered(ctx, messageID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("message_id", messageID).
			Msg("Delivery acknowledgement failed against the store.")
		return errs.NewError(errs.ErrMessagePersistFailed)
	}

	if transitioned {
		s.notifySenderDelivered(updated)
	}

	return nil
}

// MarkRead bulk-transitions every message in the room addressed to readerID
// that is not yet read directly to read, then broadcasts a room-scoped read
// notice naming the reader. Calling it again transitions nothing and stays
// silent, so the operation is idempotent.
func (s *Service) MarkRead(ctx context.Context, roomID, readerID string) *errs.CustomError {
	if !randx.IsValidRoomID(roomID) {
		return errs.NewError(errs.ErrRoomIDInvalid)
	}
	if !randx.IsValidID(readerID) {
		return errs.NewError(errs.ErrInvalidParams)
	}

	ids, err := s.store.MarkRoomRead(ctx, roomID, readerID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("room_id", roomID).
			Str("reader_id", readerID).
			Msg("Read transition failed against the store.")
		return errs.NewError(errs.ErrMessagePersistFailed)
	}

	if len(ids) > 0 {
		s.emitter.EmitToRoom(roomID, EventMessagesRead, ReadNotice{
			RoomID:     roomID,
			UserID:     readerID,
			MessageIDs: ids,
		})
	}

	return nil
}

// ListHistory returns one page of room history, oldest to newest.
//
// Side effect, by design and relied upon by clients: every returned message
// addressed to the requesting user that is still in sent is bulk-transitioned
// to delivered, and each affected sender is notified if reachable. The guarded
// bulk update makes the transition happen at most once even under concurrent
// duplicate fetches.
func (s *Service) ListHistory(ctx context.Context, q HistoryQuery) ([]Message, *errs.CustomError) {
	if !randx.IsValidRoomID(q.RoomID) {
		return nil, errs.NewError(errs.ErrRoomIDInvalid)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = historyDefaultLimit
	}
	if limit > historyMaxLimit {
		limit = historyMaxLimit
	}

	messages, err := s.store.ListRoomMessages(ctx, q.RoomID, q.Before, limit)
	if err != nil {
		s.logger.Error().Err(err).
			Str("room_id", q.RoomID).
			Msg("History fetch failed against the store.")
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	if q.RequestingUserID != "" {
		s.deliverOnFetch(ctx, q.RoomID, q.RequestingUserID, messages)
	}

	// The store returns newest first; clients render oldest to newest.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// deliverOnFetch advances the reader's pending messages and patches the page
// in place so the response reflects the state the fetch itself caused.
func (s *Service) deliverOnFetch(ctx context.Context, roomID, readerID string, page []Message) {
	var pending []string
	for i := range page {
		if page[i].ReceiverID == readerID && page[i].Status == StatusSent {
			pending = append(pending, page[i].ID)
		}
	}
	if len(pending) == 0 {
		return
	}

	updated, err := s.store.MarkDeliveredBulk(ctx, roomID, pending)
	if err != nil {
		s.logger.Error().Err(err).
			Str("room_id", roomID).
			Str("reader_id", readerID).
			Msg("Deliver-on-fetch transition failed; history served unchanged.")
		return
	}

	byID := make(map[string]*Message, len(updated))
	for i := range updated {
		byID[updated[i].ID] = &updated[i]
	}

	for i := range page {
		if u, ok := byID[page[i].ID]; ok {
			page[i] = *u
			s.notifySenderDelivered(u)
		}
	}
}

// ListStatusUpdates serves the sender-side polling endpoint: the room's
// messages from senderID that have advanced past sent.
func (s *Service) ListStatusUpdates(ctx context.Context, roomID, senderID string) ([]Message, *errs.CustomError) {
	if !randx.IsValidRoomID(roomID) {
		return nil, errs.NewError(errs.ErrRoomIDInvalid)
	}
	if !randx.IsValidID(senderID) {
		return nil, errs.NewError(errs.ErrInvalidParams)
	}

	messages, err := s.store.ListStatusUpdates(ctx, roomID, senderID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("room_id", roomID).
			Str("sender_id", senderID).
			Msg("Status poll failed against the store.")
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return messages, nil
}

// notifySenderDelivered tells the original sender's connection, if registered,
// that the message reached its recipient.
func (s *Service) notifySenderDelivered(m *Message) {
	connID, online := s.registry.Lookup(m.SenderID)
	if !online {
		return
	}

	s.emitter.EmitToConn(connID, EventMessageDelivered, DeliveredNotice{
		MessageID: m.ID,
		RoomID:    m.RoomID,
	})
}

// dispatchPush resolves the recipient's profile and hands the notification to
// the push dispatcher. Every failure here is logged and swallowed: push
// fallback never fails the send that triggered it.
func (s *Service) dispatchPush(ctx context.Context, m *Message) {
	ctx, cancel := context.WithTimeout(ctx, pushDispatchTimeout)
	defer cancel()

	recipient, err := s.profiles.FindProfile(ctx, m.ReceiverID)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("receiver_id", m.ReceiverID).
			Msg("No recipient profile for push fallback; skipping.")
		return
	}

	senderName := fallbackSenderName
	if sender, err := s.profiles.FindProfile(ctx, m.SenderID); err == nil && sender.DisplayName != "" {
		senderName = sender.DisplayName
	}

	s.push.Dispatch(ctx, recipient, senderName, m.PushBody())
}

package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"circlechat/internal/app/db"
)

// Store is the message persistence surface. Every state transition is a
// guarded atomic update scoped by message id or by (room, recipient) filter;
// a transition whose precondition no longer holds simply affects zero rows.
type Store interface {
	// CreateMessage persists a new record in state sent.
	CreateMessage(ctx context.Context, m *Message) error

	// MarkDelivered transitions one message from sent to delivered. Returns
	// the updated record and true when the transition happened; (nil, false)
	// when the message is missing or already past sent.
	MarkDelivered(ctx context.Context, messageID string) (*Message, bool, error)

	// MarkDeliveredBulk transitions the given room's messages from sent to
	// delivered and returns only the records actually transitioned.
	MarkDeliveredBulk(ctx context.Context, roomID string, messageIDs []string) ([]Message, error)

	// MarkRoomRead transitions every message in the room addressed to readerID
	// that is not yet read directly to read, stamping delivered_at if absent.
	// Returns the ids of the transitioned messages.
	MarkRoomRead(ctx context.Context, roomID, readerID string) ([]string, error)

	// ListRoomMessages returns up to limit messages of the room, newest first,
	// bounded above by before when non-zero.
	ListRoomMessages(ctx context.Context, roomID string, before time.Time, limit int) ([]Message, error)

	// ListStatusUpdates returns the room's messages from senderID that have
	// advanced past sent, oldest first. Backs the sender-side status poll.
	ListStatusUpdates(ctx context.Context, roomID, senderID string) ([]Message, error)
}

const messageColumns = `id, room_id, sender_id, receiver_id, body, image_url, gif_url, video_url, status, created_at, delivered_at, read_at`

// pgStore implements Store on top of PostgreSQL.
type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs the PostgreSQL-backed message store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func scanMessage(row pgx.Row) (*Message, error) {
	m := &Message{}
	err := row.Scan(
		&m.ID,
		&m.RoomID,
		&m.SenderID,
		&m.ReceiverID,
		&m.Body,
		&m.ImageURL,
		&m.GifURL,
		&m.VideoURL,
		&m.Status,
		&m.CreatedAt,
		&m.DeliveredAt,
		&m.ReadAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *pgStore) CreateMessage(ctx context.Context, m *Message) error {
	const query = `
		INSERT INTO messages (id, room_id, sender_id, receiver_id, body, image_url, gif_url, video_url, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.RoomID, m.SenderID, m.ReceiverID,
		m.Body, m.ImageURL, m.GifURL, m.VideoURL,
		m.Status, m.CreatedAt,
	)
	if err != nil {
		// A retried insert of the same id already persisted the message.
		if db.IsUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("create message %s: %w", m.ID, err)
	}

	return nil
}

func (s *pgStore) MarkDelivered(ctx context.Context, messageID string) (*Message, bool, error) {
	const query = `
		UPDATE messages
		SET status = 'delivered', delivered_at = now()
		WHERE id = $1 AND status = 'sent'
		RETURNING ` + messageColumns

	m, err := scanMessage(s.pool.QueryRow(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Missing message or one already past sent: a correct no-op.
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("mark delivered %s: %w", messageID, err)
	}

	return m, true, nil
}

func (s *pgStore) MarkDeliveredBulk(ctx context.Context, roomID string, messageIDs []string) ([]Message, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	const query = `
		UPDATE messages
		SET status = 'delivered', delivered_at = now()
		WHERE room_id = $1 AND id = ANY($2) AND status = 'sent'
		RETURNING ` + messageColumns

	rows, err := s.pool.Query(ctx, query, roomID, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("bulk mark delivered in room %s: %w", roomID, err)
	}
	defer rows.Close()

	var updated []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivered message: %w", err)
		}
		updated = append(updated, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bulk mark delivered in room %s: %w", roomID, err)
	}

	return updated, nil
}

func (s *pgStore) MarkRoomRead(ctx context.Context, roomID, readerID string) ([]string, error) {
	const query = `
		UPDATE messages
		SET status = 'read',
		    read_at = now(),
		    delivered_at = COALESCE(delivered_at, now())
		WHERE room_id = $1 AND receiver_id = $2 AND status <> 'read'
		RETURNING id`

	rows, err := s.pool.Query(ctx, query, roomID, readerID)
	if err != nil {
		return nil, fmt.Errorf("mark room %s read for %s: %w", roomID, readerID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan read message id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mark room %s read for %s: %w", roomID, readerID, err)
	}

	return ids, nil
}

func (s *pgStore) ListRoomMessages(ctx context.Context, roomID string, before time.Time, limit int) ([]Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room_id = $1`

	args := []any{roomID}

	if !before.IsZero() {
		query += ` AND created_at < $2`
		args = append(args, before)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages in room %s: %w", roomID, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages in room %s: %w", roomID, err)
	}

	return messages, nil
}

func (s *pgStore) ListStatusUpdates(ctx context.Context, roomID, senderID string) ([]Message, error) {
	const query = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room_id = $1 AND sender_id = $2 AND status IN ('delivered', 'read')
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, roomID, senderID)
	if err != nil {
		return nil, fmt.Errorf("list status updates in room %s: %w", roomID, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan status update: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list status updates in room %s: %w", roomID, err)
	}

	return messages, nil
}

package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrProfileNotFound is returned when no profile row exists for a user id.
var ErrProfileNotFound = errors.New("user profile not found")

// pgStore implements Store on top of PostgreSQL.
type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs the PostgreSQL-backed profile store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) FindProfile(ctx context.Context, userID string) (*Profile, error) {
	const query = `
		SELECT user_id, display_name, apns_token, expo_push_token, wallet_balance, unlocked_count
		FROM user_profiles
		WHERE user_id = $1`

	p := &Profile{}
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.DisplayName,
		&p.APNSToken,
		&p.ExpoPushToken,
		&p.WalletBalance,
		&p.UnlockedCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("find profile %s: %w", userID, err)
	}

	return p, nil
}

func (s *pgStore) RegisterDevice(ctx context.Context, userID, displayName, kind, token string) error {
	var column string
	switch kind {
	case TokenKindNative:
		column = "apns_token"
	case TokenKindCrossPlatform:
		column = "expo_push_token"
	default:
		return fmt.Errorf("unknown push token kind %q", kind)
	}

	// column is one of two fixed names; all values are always bound.
	query := fmt.Sprintf(`
		INSERT INTO user_profiles (user_id, display_name, %s, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id)
		DO UPDATE SET
			%s = EXCLUDED.%s,
			display_name = CASE
				WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name
				ELSE user_profiles.display_name
			END,
			updated_at = now()`, column, column, column)

	if _, err := s.pool.Exec(ctx, query, userID, displayName, token); err != nil {
		return fmt.Errorf("register device for %s: %w", userID, err)
	}

	return nil
}

func (s *pgStore) ListVisible(ctx context.Context, userID string, page, limit int) ([]ListedUser, bool, error) {
	requester, err := s.FindProfile(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	offset := (page - 1) * limit

	// Never page past the requester's unlocked count.
	effectiveLimit := requester.UnlockedCount - offset
	if effectiveLimit <= 0 {
		return []ListedUser{}, false, nil
	}
	if effectiveLimit > limit {
		effectiveLimit = limit
	}

	const query = `
		SELECT user_id, display_name
		FROM user_profiles
		WHERE user_id <> $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3`

	rows, err := s.pool.Query(ctx, query, userID, offset, effectiveLimit)
	if err != nil {
		return nil, false, fmt.Errorf("list visible users for %s: %w", userID, err)
	}
	defer rows.Close()

	users := make([]ListedUser, 0, effectiveLimit)
	for rows.Next() {
		var u ListedUser
		if err := rows.Scan(&u.UserID, &u.DisplayName); err != nil {
			return nil, false, fmt.Errorf("scan visible user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("list visible users for %s: %w", userID, err)
	}

	hasMore := page*limit < requester.UnlockedCount

	return users, hasMore, nil
}

package social

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgStore implements Store on top of PostgreSQL.
type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs the PostgreSQL-backed social store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) Block(ctx context.Context, blockerID, blockedID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin block tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO blocked_users (blocker, blocked)
		VALUES ($1, $2)
		ON CONFLICT (blocker, blocked) DO NOTHING`,
		blockerID, blockedID,
	)
	if err != nil {
		return fmt.Errorf("block %s by %s: %w", blockedID, blockerID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyBlocked
	}

	// Blocking also revokes the pair's unlock; a later unblock requires a
	// fresh purchase to reopen the conversation.
	userA, userB := normalizePair(blockerID, blockedID)
	if _, err := tx.Exec(ctx, `
		DELETE FROM unlock_access
		WHERE user_a = $1 AND user_b = $2`,
		userA, userB,
	); err != nil {
		return fmt.Errorf("revoke unlock between %s and %s: %w", userA, userB, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit block tx: %w", err)
	}

	return nil
}

func (s *pgStore) Unblock(ctx context.Context, blockerID, blockedID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM blocked_users
		WHERE blocker = $1 AND blocked = $2`,
		blockerID, blockedID,
	)
	if err != nil {
		return fmt.Errorf("unblock %s by %s: %w", blockedID, blockerID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotBlocked
	}

	return nil
}

func (s *pgStore) ListBlocked(ctx context.Context, blockerID string) ([]BlockedUser, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT blocked, blocked_at
		FROM blocked_users
		WHERE blocker = $1
		ORDER BY blocked_at DESC`,
		blockerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list blocked for %s: %w", blockerID, err)
	}
	defer rows.Close()

	var blocked []BlockedUser
	for rows.Next() {
		var b BlockedUser
		if err := rows.Scan(&b.UserID, &b.BlockedAt); err != nil {
			return nil, fmt.Errorf("scan blocked user: %w", err)
		}
		blocked = append(blocked, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list blocked for %s: %w", blockerID, err)
	}

	return blocked, nil
}

func (s *pgStore) EitherBlocked(ctx context.Context, userA, userB string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM blocked_users
			WHERE (blocker = $1 AND blocked = $2)
			   OR (blocker = $2 AND blocked = $1)
		)`,
		userA, userB,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check block between %s and %s: %w", userA, userB, err)
	}

	return exists, nil
}

func (s *pgStore) Report(ctx context.Context, reporterID, reportedID, reason string) error {
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO user_reports (reporter, reported, reason)
		VALUES ($1, $2, $3)`,
		reporterID, reportedID, reason,
	); err != nil {
		return fmt.Errorf("report %s by %s: %w", reportedID, reporterID, err)
	}

	return nil
}

func (s *pgStore) HasUnlock(ctx context.Context, userA, userB string) (bool, error) {
	a, b := normalizePair(userA, userB)

	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM unlock_access
			WHERE user_a = $1 AND user_b = $2
		)`,
		a, b,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check unlock between %s and %s: %w", a, b, err)
	}

	return exists, nil
}

func (s *pgStore) PurchaseUnlock(ctx context.Context, payerID, targetID string) (*UnlockResult, error) {
	userA, userB := normalizePair(payerID, targetID)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin unlock tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Repeat purchases charge nothing.
	var alreadyUnlocked bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM unlock_access
			WHERE user_a = $1 AND user_b = $2
		)`,
		userA, userB,
	).Scan(&alreadyUnlocked); err != nil {
		return nil, fmt.Errorf("check existing unlock: %w", err)
	}

	if alreadyUnlocked {
		var balance int64
		if err := tx.QueryRow(ctx, `
			SELECT wallet_balance FROM user_profiles WHERE user_id = $1`,
			payerID,
		).Scan(&balance); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrProfileMissing
			}
			return nil, fmt.Errorf("read payer balance: %w", err)
		}

		return &UnlockResult{Unlocked: true, AlreadyUnlocked: true, RemainingBalance: balance}, nil
	}

	// Guarded deduction: the row only updates while the balance covers the
	// cost, so a concurrent purchase can never drive the wallet negative.
	var remaining int64
	err = tx.QueryRow(ctx, `
		UPDATE user_profiles
		SET wallet_balance = wallet_balance - $2, updated_at = now()
		WHERE user_id = $1 AND wallet_balance >= $2
		RETURNING wallet_balance`,
		payerID, UnlockCost,
	).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Missing profile and short balance both land here; tell them apart.
			var exists bool
			if checkErr := tx.QueryRow(ctx, `
				SELECT EXISTS (SELECT 1 FROM user_profiles WHERE user_id = $1)`,
				payerID,
			).Scan(&exists); checkErr != nil {
				return nil, fmt.Errorf("check payer profile: %w", checkErr)
			}
			if !exists {
				return nil, ErrProfileMissing
			}
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("deduct unlock cost from %s: %w", payerID, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO unlock_access (user_a, user_b, unlocked_by, cost)
		VALUES ($1, $2, $3, $4)`,
		userA, userB, payerID, UnlockCost,
	); err != nil {
		return nil, fmt.Errorf("record unlock between %s and %s: %w", userA, userB, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO purchase_logs (user_id, cost, kind)
		VALUES ($1, $2, 'unlock_access')`,
		payerID, UnlockCost,
	); err != nil {
		return nil, fmt.Errorf("log unlock purchase by %s: %w", payerID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit unlock tx: %w", err)
	}

	return &UnlockResult{Unlocked: true, RemainingBalance: remaining}, nil
}

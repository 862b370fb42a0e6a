package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/HabitGo/internal/domain"
	"github.com/utafrali/HabitGo/pkg/database"
)

// TokenStore implements repository.TokenStore on the outstanding_tokens and
// blacklisted_tokens tables.
type TokenStore struct {
	db database.DBTX
}

// NewTokenStore creates a new PostgreSQL-backed token store.
func NewTokenStore(db database.DBTX) *TokenStore {
	return &TokenStore{db: db}
}

// SaveOutstanding records an issued refresh token.
func (s *TokenStore) SaveOutstanding(ctx context.Context, t *domain.OutstandingToken) error {
	query := `
		INSERT INTO outstanding_tokens (jti, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (jti) DO NOTHING`

	if _, err := s.db.Exec(ctx, query, t.JTI, t.UserID, t.ExpiresAt, t.CreatedAt); err != nil {
		return fmt.Errorf("insert outstanding token: %w", err)
	}
	return nil
}

// Blacklist marks jti as revoked. A token missing from outstanding_tokens is
// recorded first so the blacklist entry always has a parent row.
func (s *TokenStore) Blacklist(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO outstanding_tokens (jti, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (jti) DO NOTHING`,
		jti, userID, expiresAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("ensure outstanding token: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO blacklisted_tokens (jti, blacklisted_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING`,
		jti, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// IsBlacklisted reports whether jti has been revoked.
func (s *TokenStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM blacklisted_tokens WHERE jti = $1)`, jti).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check blacklisted token: %w", err)
	}
	return exists, nil
}

// BlacklistAllForUser revokes every unexpired outstanding token of userID and
// returns how many were newly blacklisted.
func (s *TokenStore) BlacklistAllForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		INSERT INTO blacklisted_tokens (jti, blacklisted_at)
		SELECT jti, $2 FROM outstanding_tokens
		WHERE user_id = $1 AND expires_at > $2
		ON CONFLICT (jti) DO NOTHING`

	ct, err := s.db.Exec(ctx, query, userID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("blacklist user tokens: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

// PurgeExpired deletes outstanding tokens (and their blacklist rows) that
// expired before cutoff.
func (s *TokenStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int, error) {
	ct, err := s.db.Exec(ctx, `DELETE FROM outstanding_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/HabitGo/internal/domain"
	"github.com/utafrali/HabitGo/pkg/database"
	apperrors "github.com/utafrali/HabitGo/pkg/errors"
)

// ProfileRepository implements repository.ProfileRepository using PostgreSQL.
type ProfileRepository struct {
	db database.DBTX
}

// NewProfileRepository creates a new PostgreSQL-backed profile repository.
func NewProfileRepository(db database.DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create inserts the profile of a user. A second profile for the same user
// yields ErrAlreadyExists.
func (r *ProfileRepository) Create(ctx context.Context, p *domain.Profile) error {
	query := `
		INSERT INTO profiles (user_id, name, avatar_key, language, color_theme, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		p.UserID,
		p.Name,
		p.AvatarKey,
		p.Language,
		p.ColorTheme,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("profile", "user_id", p.UserID.String())
		}
		if isForeignKeyViolation(err) {
			return apperrors.NotFound("user", p.UserID.String())
		}
		return fmt.Errorf("insert profile: %w", err)
	}

	return nil
}

// GetByUserID retrieves the profile of a user.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	query := `
		SELECT user_id, name, avatar_key, language, color_theme, created_at, updated_at
		FROM profiles
		WHERE user_id = $1`

	var p domain.Profile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.Name,
		&p.AvatarKey,
		&p.Language,
		&p.ColorTheme,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	return &p, nil
}

// Update modifies an existing profile.
func (r *ProfileRepository) Update(ctx context.Context, p *domain.Profile) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE profiles
		SET name = $1, avatar_key = $2, language = $3, color_theme = $4, updated_at = $5
		WHERE user_id = $6`

	ct, err := r.db.Exec(ctx, query,
		p.Name,
		p.AvatarKey,
		p.Language,
		p.ColorTheme,
		p.UpdatedAt,
		p.UserID,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes the profile of a user.
func (r *ProfileRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

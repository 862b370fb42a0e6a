package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/HabitGo/internal/domain"
	"github.com/utafrali/HabitGo/pkg/pagination"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user. A duplicate email yields ErrAlreadyExists.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by normalized email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update modifies an existing user, password hash included.
	Update(ctx context.Context, user *domain.User) error

	// Delete removes a user together with everything that references it.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProfileRepository defines the interface for profile persistence operations.
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	Update(ctx context.Context, profile *domain.Profile) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

// HabitRepository defines the interface for habit persistence operations.
// Every lookup is scoped to the owning user.
type HabitRepository interface {
	Create(ctx context.Context, habit *domain.Habit) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Habit, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]domain.Habit, int, error)
	Update(ctx context.Context, habit *domain.Habit) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// TrackingRepository defines the interface for tracking persistence operations.
type TrackingRepository interface {
	Create(ctx context.Context, tracking *domain.Tracking) error
	ListByHabit(ctx context.Context, habitID uuid.UUID) ([]domain.Tracking, error)
}

// TokenStore keeps issued refresh tokens and the blacklist.
type TokenStore interface {
	// SaveOutstanding records an issued refresh token.
	SaveOutstanding(ctx context.Context, token *domain.OutstandingToken) error

	// Blacklist marks jti as revoked. Blacklisting twice is not an error.
	Blacklist(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error

	// IsBlacklisted reports whether jti has been revoked.
	IsBlacklisted(ctx context.Context, jti string) (bool, error)

	// BlacklistAllForUser revokes every outstanding refresh token of a user.
	BlacklistAllForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/HabitGo/internal/auth"
	"github.com/utafrali/HabitGo/internal/domain"
	"github.com/utafrali/HabitGo/internal/repository"
	"github.com/utafrali/HabitGo/internal/storage"
	apperrors "github.com/utafrali/HabitGo/pkg/errors"
)

// UserService implements account lookup, deletion and superuser creation.
type UserService struct {
	users    repository.UserRepository
	profiles repository.ProfileRepository
	storage  storage.Storage
	hasher   *auth.PasswordHasher
	events   EventPublisher
	logger   *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	store storage.Storage,
	hasher *auth.PasswordHasher,
	events EventPublisher,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		profiles: profiles,
		storage:  store,
		hasher:   hasher,
		events:   events,
		logger:   logger,
	}
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Delete removes a user. The database cascades to the profile, habits,
// trackings and tokens; the avatar object is removed here.
func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	var avatarKey string
	if p, err := s.profiles.GetByUserID(ctx, id); err == nil {
		avatarKey = p.AvatarKey
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("get profile for user deletion: %w", err)
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if avatarKey != "" {
		if err := s.storage.Delete(ctx, avatarKey); err != nil {
			s.logger.ErrorContext(ctx, "failed to delete avatar of deleted user",
				slog.String("user_id", id.String()),
				slog.String("key", avatarKey),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.events.PublishUserDeleted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.deleted event",
			slog.String("user_id", id.String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user deleted", slog.String("user_id", id.String()))
	return nil
}

// CreateSuperuser creates an active staff superuser.
func (s *UserService) CreateSuperuser(ctx context.Context, email, password string) (*domain.User, error) {
	if domain.NormalizeEmail(email) == "" {
		return nil, apperrors.FieldError("email", msgFieldBlank)
	}
	if len(password) < 6 {
		return nil, apperrors.FieldError("password", "Ensure this field has at least 6 characters.")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := domain.NewUser(email, hash)
	u.IsStaff = true
	u.IsSuperuser = true
	u.IsVerified = true
	u.UpdatedAt = time.Now().UTC()

	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create superuser: %w", err)
	}

	s.logger.InfoContext(ctx, "superuser created",
		slog.String("user_id", u.ID.String()),
		slog.String("email", u.Email),
	)
	return u, nil
}

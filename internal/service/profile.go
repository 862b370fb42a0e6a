package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/HabitGo/internal/domain"
	"github.com/utafrali/HabitGo/internal/repository"
	"github.com/utafrali/HabitGo/internal/storage"
	apperrors "github.com/utafrali/HabitGo/pkg/errors"
)

// ProfileService implements the one-to-one profile of a user.
type ProfileService struct {
	profiles       repository.ProfileRepository
	storage        storage.Storage
	avatarMaxBytes int64
	logger         *slog.Logger
}

// NewProfileService creates a new profile service.
func NewProfileService(profiles repository.ProfileRepository, store storage.Storage, avatarMaxBytes int64, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		profiles:       profiles,
		storage:        store,
		avatarMaxBytes: avatarMaxBytes,
		logger:         logger,
	}
}

// Avatar is an uploaded image.
type Avatar struct {
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// CreateProfileInput holds the parameters for creating a profile.
type CreateProfileInput struct {
	Name       string
	Language   string
	ColorTheme string
	Avatar     *Avatar
}

// UpdateProfileInput holds the parameters for a partial profile update.
type UpdateProfileInput struct {
	Name       *string
	Language   *string
	ColorTheme *string
	Avatar     *Avatar
}

// Get returns the profile of a user.
func (s *ProfileService) Get(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	p, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, profileErr(err, "get profile")
	}
	return p, nil
}

// Create stores the avatar and creates the profile. A second profile for the
// same user fails with ErrAlreadyExists.
func (s *ProfileService) Create(ctx context.Context, userID uuid.UUID, input CreateProfileInput) (*domain.Profile, error) {
	if input.Avatar == nil {
		return nil, apperrors.FieldError("avatar", "No file was submitted.")
	}
	if err := s.checkAvatar(input.Avatar); err != nil {
		return nil, err
	}
	if err := checkChoices(&input.Language, &input.ColorTheme); err != nil {
		return nil, err
	}

	key, err := s.upload(ctx, userID, input.Avatar)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &domain.Profile{
		UserID:     userID,
		Name:       input.Name,
		AvatarKey:  key,
		Language:   input.Language,
		ColorTheme: input.ColorTheme,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.profiles.Create(ctx, p); err != nil {
		s.removeAvatar(ctx, key)
		return nil, fmt.Errorf("create profile: %w", err)
	}

	s.logger.InfoContext(ctx, "profile created", slog.String("user_id", userID.String()))
	return p, nil
}

// Update applies the provided fields. A new avatar replaces the old object.
func (s *ProfileService) Update(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*domain.Profile, error) {
	p, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, profileErr(err, "get profile for update")
	}

	if err := checkChoices(input.Language, input.ColorTheme); err != nil {
		return nil, err
	}
	if input.Name != nil {
		p.Name = *input.Name
	}
	if input.Language != nil {
		p.Language = *input.Language
	}
	if input.ColorTheme != nil {
		p.ColorTheme = *input.ColorTheme
	}

	oldKey := ""
	if input.Avatar != nil {
		if err := s.checkAvatar(input.Avatar); err != nil {
			return nil, err
		}
		key, err := s.upload(ctx, userID, input.Avatar)
		if err != nil {
			return nil, err
		}
		oldKey, p.AvatarKey = p.AvatarKey, key
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.profiles.Update(ctx, p); err != nil {
		if input.Avatar != nil {
			s.removeAvatar(ctx, p.AvatarKey)
		}
		return nil, profileErr(err, "update profile")
	}
	if oldKey != "" {
		s.removeAvatar(ctx, oldKey)
	}

	s.logger.InfoContext(ctx, "profile updated", slog.String("user_id", userID.String()))
	return p, nil
}

// Delete removes the profile and its avatar.
func (s *ProfileService) Delete(ctx context.Context, userID uuid.UUID) error {
	p, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return profileErr(err, "get profile for deletion")
	}
	if err := s.profiles.Delete(ctx, userID); err != nil {
		return profileErr(err, "delete profile")
	}
	s.removeAvatar(ctx, p.AvatarKey)

	s.logger.InfoContext(ctx, "profile deleted", slog.String("user_id", userID.String()))
	return nil
}

// AvatarURL returns the public URL of an avatar, or "" when it is missing.
func (s *ProfileService) AvatarURL(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}
	url, err := s.storage.GetURL(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "avatar url unavailable",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return url
}

func (s *ProfileService) checkAvatar(a *Avatar) error {
	if _, ok := storage.AvatarExtensions[a.ContentType]; !ok {
		return apperrors.FieldError("avatar", "Upload a valid image.")
	}
	if a.Size <= 0 {
		return apperrors.FieldError("avatar", "The submitted file is empty.")
	}
	if a.Size > s.avatarMaxBytes {
		return apperrors.FieldError("avatar", fmt.Sprintf("The file may not exceed %d bytes.", s.avatarMaxBytes))
	}
	return nil
}

func (s *ProfileService) upload(ctx context.Context, userID uuid.UUID, a *Avatar) (string, error) {
	res, err := s.storage.Upload(ctx, &storage.UploadInput{
		Key:         storage.AvatarKey(userID, a.Filename, a.ContentType),
		ContentType: a.ContentType,
		Size:        a.Size,
		Data:        a.Data,
	})
	if err != nil {
		return "", apperrors.Unavailable("avatar storage is unavailable", err)
	}
	return res.Key, nil
}

func (s *ProfileService) removeAvatar(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete avatar",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func checkChoices(language, colorTheme *string) error {
	fields := map[string]string{}
	if language != nil && !domain.IsValidLanguage(*language) {
		fields["language"] = fmt.Sprintf("%q is not a valid choice.", *language)
	}
	if colorTheme != nil && !domain.IsValidColorTheme(*colorTheme) {
		fields["color_theme"] = fmt.Sprintf("%q is not a valid choice.", *colorTheme)
	}
	if len(fields) > 0 {
		return apperrors.Validation(fields)
	}
	return nil
}

func profileErr(err error, op string) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NotFoundMessage(msgProfileNotExists)
	}
	return fmt.Errorf("%s: %w", op, err)
}

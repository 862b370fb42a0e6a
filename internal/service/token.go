package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/utafrali/HabitGo/internal/auth"
	"github.com/utafrali/HabitGo/internal/domain"
	"github.com/utafrali/HabitGo/internal/repository"
	apperrors "github.com/utafrali/HabitGo/pkg/errors"
	"github.com/utafrali/HabitGo/pkg/middleware"
)

// TokenService issues, validates and revokes credentials: the JWT pair and
// password reset tickets.
type TokenService struct {
	manager *auth.TokenManager
	tickets *auth.ResetTicketer
	store   repository.TokenStore
	users   repository.UserRepository
	logger  *slog.Logger
}

// NewTokenService creates a new token service.
func NewTokenService(
	manager *auth.TokenManager,
	tickets *auth.ResetTicketer,
	store repository.TokenStore,
	users repository.UserRepository,
	logger *slog.Logger,
) *TokenService {
	return &TokenService{
		manager: manager,
		tickets: tickets,
		store:   store,
		users:   users,
		logger:  logger,
	}
}

// IssuePair signs an access/refresh pair for u and records the refresh jti
// as outstanding.
func (s *TokenService) IssuePair(ctx context.Context, u *domain.User) (*domain.TokenPair, error) {
	access, _, err := s.manager.GenerateAccessToken(u.ID)
	if err != nil {
		return nil, err
	}
	refresh, claims, err := s.manager.GenerateRefreshToken(u.ID)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveOutstanding(ctx, &domain.OutstandingToken{
		JTI:       claims.ID,
		UserID:    u.ID,
		ExpiresAt: claims.ExpiresAt.Time,
		CreatedAt: claims.IssuedAt.Time,
	}); err != nil {
		return nil, fmt.Errorf("save outstanding token: %w", err)
	}

	return &domain.TokenPair{Access: access, Refresh: refresh}, nil
}

// Authenticate resolves an access token to the identity of an active user.
// It is the authenticator behind the HTTP auth middleware: credential
// failures wrap middleware.ErrInvalidCredentials.
func (s *TokenService) Authenticate(ctx context.Context, token string) (*middleware.Identity, error) {
	claims, err := s.manager.ValidateAccessToken(token)
	if err != nil {
		return nil, errors.Join(middleware.ErrInvalidCredentials, err)
	}
	u, err := s.activeUser(ctx, claims)
	if isTokenError(err) {
		return nil, errors.Join(middleware.ErrInvalidCredentials, err)
	}
	if err != nil {
		return nil, err
	}
	return &middleware.Identity{
		UserID:      u.ID,
		Email:       u.Email,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
	}, nil
}

// Refresh returns a new access token for a valid, non-blacklisted refresh
// token of an active user.
func (s *TokenService) Refresh(ctx context.Context, refresh string) (string, error) {
	claims, err := s.manager.ValidateRefreshToken(refresh)
	if err != nil {
		return "", err
	}

	revoked, err := s.store.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return "", fmt.Errorf("check blacklist: %w", err)
	}
	if revoked {
		return "", auth.ErrTokenBlacklisted
	}

	u, err := s.activeUser(ctx, claims)
	if err != nil {
		return "", err
	}

	access, _, err := s.manager.GenerateAccessToken(u.ID)
	return access, err
}

// Blacklist revokes a refresh token owned by owner. Revoking an already
// blacklisted token succeeds.
func (s *TokenService) Blacklist(ctx context.Context, refresh string, owner uuid.UUID) error {
	claims, err := s.manager.ValidateRefreshToken(refresh)
	if err != nil {
		return err
	}
	userID, err := claims.UserUUID()
	if err != nil {
		return err
	}
	if userID != owner {
		return auth.ErrTokenInvalid
	}

	if err := s.store.Blacklist(ctx, claims.ID, userID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// RevokeAll blacklists every outstanding refresh token of a user.
func (s *TokenService) RevokeAll(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.store.BlacklistAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke user tokens: %w", err)
	}
	return n, nil
}

// MakeResetTicket returns the (uidb64, token) pair for a password reset link.
func (s *TokenService) MakeResetTicket(u *domain.User) (string, string) {
	return auth.EncodeUID(u.ID), s.tickets.Make(u)
}

// CheckResetTicket returns the user a reset ticket was issued for. It fails
// with auth.ErrMalformedUID, apperrors.ErrNotFound or auth.ErrTicketInvalid.
func (s *TokenService) CheckResetTicket(ctx context.Context, uidb64, token string) (*domain.User, error) {
	id, err := auth.DecodeUID(uidb64)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.tickets.Check(u, token); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *TokenService) activeUser(ctx context.Context, claims *auth.Claims) (*domain.User, error) {
	id, err := claims.UserUUID()
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, auth.ErrTokenInvalid
		}
		return nil, fmt.Errorf("load token user: %w", err)
	}
	if !u.IsActive {
		return nil, auth.ErrTokenInvalid
	}
	return u, nil
}

// isTokenError reports whether err means the presented credential is bad,
// as opposed to a failure of the store behind it.
func isTokenError(err error) bool {
	return errors.Is(err, auth.ErrTokenInvalid) ||
		errors.Is(err, auth.ErrTokenExpired) ||
		errors.Is(err, auth.ErrTokenBlacklisted)
}

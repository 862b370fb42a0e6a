package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/HabitGo/internal/auth"
	"github.com/utafrali/HabitGo/internal/domain"
	"github.com/utafrali/HabitGo/internal/notify"
	"github.com/utafrali/HabitGo/internal/repository"
	apperrors "github.com/utafrali/HabitGo/pkg/errors"
)

// EventPublisher publishes account events. *event.Producer implements it.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, u *domain.User) error
	PublishUserDeleted(ctx context.Context, id uuid.UUID) error
	PublishPasswordResetRequested(ctx context.Context, u *domain.User) error
}

// ResetConfig controls how password reset links are built.
type ResetConfig struct {
	// SiteURL is the link base when the client sends no redirect_url.
	SiteURL string
	// AllowedRedirectHosts lists hosts a client supplied redirect_url may
	// point at, in addition to the SiteURL host.
	AllowedRedirectHosts []string
	// ConcealUnknownEmail answers a reset request for an unknown email like a
	// known one instead of with 404.
	ConcealUnknownEmail bool
}

// AuthService implements registration, login, logout, refresh and the
// password reset flow.
type AuthService struct {
	users   repository.UserRepository
	hasher  *auth.PasswordHasher
	tokens  *TokenService
	sender  notify.Sender
	events  EventPublisher
	metrics *Metrics
	reset   ResetConfig
	logger  *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	hasher *auth.PasswordHasher,
	tokens *TokenService,
	sender notify.Sender,
	events EventPublisher,
	metrics *Metrics,
	reset ResetConfig,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		sender:  sender,
		events:  events,
		metrics: metrics,
		reset:   reset,
		logger:  logger,
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Email    string
	Password string
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Email    string
	Password string
}

// ResetRequestInput holds the parameters for requesting a password reset.
type ResetRequestInput struct {
	Email       string
	RedirectURL string
	// Host is the request host, the last resort for the link base.
	Host string
}

// SetPasswordInput holds the parameters for completing a password reset.
type SetPasswordInput struct {
	Password string
	Token    string
	UIDB64   string
}

// Register creates a user and returns it with a fresh token pair.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (u *domain.User, tokens *domain.TokenPair, err error) {
	defer func() { s.metrics.observe("register", err) }()

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	u = domain.NewUser(input.Email, hash)
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, nil, apperrors.FieldError("email", msgEmailTaken)
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	tokens, err = s.tokens.IssuePair(ctx, u)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	if err := s.events.PublishUserRegistered(ctx, u); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", u.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", u.ID.String()),
		slog.String("email", u.Email),
	)
	return u, tokens, nil
}

// Login checks credentials and returns the user with a fresh token pair.
// Unknown email and wrong password fail alike. The inactive account message
// is only given once the password is known to be right.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (u *domain.User, tokens *domain.TokenPair, err error) {
	defer func() { s.metrics.observe("login", err) }()

	u, err = s.users.GetByEmail(ctx, domain.NormalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.AuthenticationFailed(msgInvalidCredentials)
		}
		return nil, nil, fmt.Errorf("get user by email: %w", err)
	}

	ok, err := s.hasher.Verify(input.Password, u.PasswordHash)
	if err != nil {
		return nil, nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, nil, apperrors.AuthenticationFailed(msgInvalidCredentials)
	}

	if !u.IsActive {
		return nil, nil, apperrors.AuthenticationFailed(msgAccountDisabled)
	}

	tokens, err = s.tokens.IssuePair(ctx, u)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", u.ID.String()),
	)
	return u, tokens, nil
}

// Logout blacklists a refresh token of the calling user.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, refresh string) (err error) {
	defer func() { s.metrics.observe("logout", err) }()

	if strings.TrimSpace(refresh) == "" {
		return apperrors.FieldError("refresh", msgFieldBlank)
	}

	if err := s.tokens.Blacklist(ctx, refresh, userID); err != nil {
		if isTokenError(err) {
			return apperrors.AuthenticationFailed(msgTokenInvalid)
		}
		return err
	}

	s.logger.InfoContext(ctx, "user logged out",
		slog.String("user_id", userID.String()),
	)
	return nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (access string, err error) {
	defer func() { s.metrics.observe("refresh", err) }()

	if strings.TrimSpace(refresh) == "" {
		return "", apperrors.FieldError("refresh", msgFieldBlank)
	}

	access, err = s.tokens.Refresh(ctx, refresh)
	if err != nil {
		if isTokenError(err) {
			return "", apperrors.AuthenticationFailed(msgTokenInvalid)
		}
		return "", err
	}
	return access, nil
}

// RequestPasswordReset mails a reset link to a known user and returns the
// message shown to the caller.
func (s *AuthService) RequestPasswordReset(ctx context.Context, input ResetRequestInput) (msg string, err error) {
	defer func() { s.metrics.observe("password_reset_request", err) }()

	base, err := s.linkBase(input.RedirectURL, input.Host)
	if err != nil {
		return "", err
	}

	u, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(input.Email))
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return "", fmt.Errorf("get user by email: %w", err)
		}
		if s.reset.ConcealUnknownEmail {
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return msgResetLinkSent, nil
		}
		return "", apperrors.NotFoundMessage(msgUserNotExists)
	}

	uidb64, token := s.tokens.MakeResetTicket(u)
	link := resetLink(base, uidb64, token)

	if err := s.sender.Send(ctx, u.Email, resetMailSubject, link); err != nil {
		s.logger.ErrorContext(ctx, "failed to send password reset email",
			slog.String("user_id", u.ID.String()),
			slog.String("sender", s.sender.Name()),
			slog.String("error", err.Error()),
		)
		return "", apperrors.Unavailable(msgResetMailFailed, err)
	}

	if err := s.events.PublishPasswordResetRequested(ctx, u); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_reset_requested event",
			slog.String("user_id", u.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset requested",
		slog.String("user_id", u.ID.String()),
	)
	return msgResetLinkSent, nil
}

// CheckResetTicket validates a reset link without changing anything and
// returns the message shown to the caller.
func (s *AuthService) CheckResetTicket(ctx context.Context, uidb64, token string) (string, error) {
	_, err := s.tokens.CheckResetTicket(ctx, uidb64, token)
	switch {
	case err == nil:
		return msgTicketValid, nil
	case errors.Is(err, auth.ErrMalformedUID), errors.Is(err, apperrors.ErrNotFound):
		return "", apperrors.FieldError("uid", msgTicketInvalid)
	case errors.Is(err, auth.ErrTicketInvalid):
		return "", apperrors.FieldError("token", msgTicketInvalid)
	default:
		return "", fmt.Errorf("check reset ticket: %w", err)
	}
}

// SetNewPassword completes a reset: it stores the new password and revokes
// every outstanding refresh token of the user. The ticket becomes invalid
// because it is bound to the old password hash.
func (s *AuthService) SetNewPassword(ctx context.Context, input SetPasswordInput) (msg string, err error) {
	defer func() { s.metrics.observe("password_reset_complete", err) }()

	u, err := s.tokens.CheckResetTicket(ctx, input.UIDB64, input.Token)
	if err != nil {
		if errors.Is(err, auth.ErrMalformedUID) || errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, auth.ErrTicketInvalid) {
			return "", apperrors.AuthenticationFailed(msgResetLinkInvalid)
		}
		return "", fmt.Errorf("check reset ticket: %w", err)
	}

	// The ticket stays valid until the hash changes, so a failed revocation
	// can be retried with the same link.
	revoked, err := s.tokens.RevokeAll(ctx, u.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke refresh tokens for password reset",
			slog.String("user_id", u.ID.String()),
			slog.String("error", err.Error()),
		)
		return "", apperrors.Unavailable(msgResetUnavailable, err)
	}

	if err := s.setPassword(ctx, u, input.Password); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("user_id", u.ID.String()),
		slog.Int("revoked_tokens", revoked),
	)
	return msgPasswordResetDone, nil
}

func (s *AuthService) setPassword(ctx context.Context, u *domain.User, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, u); err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	return nil
}

// linkBase picks the reset link base: an allowed redirect_url, then the
// site URL, then the request host.
func (s *AuthService) linkBase(redirectURL, host string) (string, error) {
	if redirectURL != "" {
		u, err := url.Parse(redirectURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", apperrors.FieldError("redirect_url", "Enter a valid URL.")
		}
		if !s.redirectAllowed(u.Hostname()) {
			return "", apperrors.FieldError("redirect_url", msgRedirectNotAllowed)
		}
		return redirectURL, nil
	}
	if s.reset.SiteURL != "" {
		return s.reset.SiteURL, nil
	}
	return "http://" + host, nil
}

func (s *AuthService) redirectAllowed(host string) bool {
	host = strings.ToLower(host)
	if site, err := url.Parse(s.reset.SiteURL); err == nil && s.reset.SiteURL != "" && strings.EqualFold(site.Hostname(), host) {
		return true
	}
	return slices.ContainsFunc(s.reset.AllowedRedirectHosts, func(h string) bool {
		return strings.EqualFold(strings.TrimSpace(h), host)
	})
}

// resetLink appends uid and token to base, keeping any query it carries.
func resetLink(base, uidb64, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?uid=" + url.QueryEscape(uidb64) + "&token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("uid", uidb64)
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

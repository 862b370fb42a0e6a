package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/HabitGo/internal/auth"
	"github.com/utafrali/HabitGo/internal/domain"
	apperrors "github.com/utafrali/HabitGo/pkg/errors"
	"github.com/utafrali/HabitGo/pkg/logger"
	"github.com/utafrali/HabitGo/pkg/pagination"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Profile Repository ---

type mockProfileRepository struct {
	mock.Mock
}

func (m *mockProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *mockProfileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *mockProfileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *mockProfileRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- Mock Habit and Tracking Repositories ---

type mockHabitRepository struct {
	mock.Mock
}

func (m *mockHabitRepository) Create(ctx context.Context, habit *domain.Habit) error {
	args := m.Called(ctx, habit)
	return args.Error(0)
}

func (m *mockHabitRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Habit, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Habit), args.Error(1)
}

func (m *mockHabitRepository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]domain.Habit, int, error) {
	args := m.Called(ctx, userID, params)
	return args.Get(0).([]domain.Habit), args.Int(1), args.Error(2)
}

func (m *mockHabitRepository) Update(ctx context.Context, habit *domain.Habit) error {
	args := m.Called(ctx, habit)
	return args.Error(0)
}

func (m *mockHabitRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

type mockTrackingRepository struct {
	mock.Mock
}

func (m *mockTrackingRepository) Create(ctx context.Context, tracking *domain.Tracking) error {
	args := m.Called(ctx, tracking)
	return args.Error(0)
}

func (m *mockTrackingRepository) ListByHabit(ctx context.Context, habitID uuid.UUID) ([]domain.Tracking, error) {
	args := m.Called(ctx, habitID)
	return args.Get(0).([]domain.Tracking), args.Error(1)
}

// --- Mock Collaborators ---

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Name() string { return "mock" }

func (m *mockSender) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishUserRegistered(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockEvents) PublishUserDeleted(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockEvents) PublishPasswordResetRequested(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

// memTokenStore is a stateful TokenStore, so that flows spanning several
// calls (logout then refresh) can be checked end to end.
type memTokenStore struct {
	mu          sync.Mutex
	outstanding map[string]domain.OutstandingToken
	blacklist   map[string]bool
	revokeErr   error
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{
		outstanding: make(map[string]domain.OutstandingToken),
		blacklist:   make(map[string]bool),
	}
}

func (s *memTokenStore) SaveOutstanding(_ context.Context, t *domain.OutstandingToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outstanding[t.JTI] = *t
	return nil
}

func (s *memTokenStore) Blacklist(_ context.Context, jti string, _ uuid.UUID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[jti] = true
	return nil
}

func (s *memTokenStore) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blacklist[jti], nil
}

func (s *memTokenStore) BlacklistAllForUser(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revokeErr != nil {
		return 0, s.revokeErr
	}
	n := 0
	for jti, t := range s.outstanding {
		if t.UserID == userID && !s.blacklist[jti] {
			s.blacklist[jti] = true
			n++
		}
	}
	return n, nil
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return logger.Discard()
}

const testSecret = "test-secret-key-for-testing-only-0123456789"

func newTestHasher(t *testing.T) *auth.PasswordHasher {
	t.Helper()
	h, err := auth.NewPasswordHasher(auth.Argon2Params{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	require.NoError(t, err)
	return h
}

func newTestTokenManager() *auth.TokenManager {
	return auth.NewTokenManager(testSecret, 5*time.Minute, 24*time.Hour)
}

func newTestTokenService(users *mockUserRepository, store *memTokenStore) *TokenService {
	return NewTokenService(
		newTestTokenManager(),
		auth.NewResetTicketer(testSecret, 72*time.Hour),
		store,
		users,
		newTestLogger(),
	)
}

func requireAppError(t *testing.T, err error, status int) *apperrors.AppError {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, status, appErr.Status, appErr.Message)
	return appErr
}

func newUserWithPassword(t *testing.T, h *auth.PasswordHasher, email, password string) *domain.User {
	t.Helper()
	hash, err := h.Hash(password)
	require.NoError(t, err)
	return domain.NewUser(email, hash)
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/HabitGo/internal/auth"
	"github.com/utafrali/HabitGo/internal/domain"
	"github.com/utafrali/HabitGo/internal/event"
	"github.com/utafrali/HabitGo/internal/service"
	"github.com/utafrali/HabitGo/internal/storage/memory"
	apperrors "github.com/utafrali/HabitGo/pkg/errors"
	"github.com/utafrali/HabitGo/pkg/health"
	"github.com/utafrali/HabitGo/pkg/httputil"
	"github.com/utafrali/HabitGo/pkg/logger"
	"github.com/utafrali/HabitGo/pkg/middleware"
	"github.com/utafrali/HabitGo/pkg/pagination"
)

// ============================================================================
// In-memory repositories
// ============================================================================

type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]domain.User
}

func (f *fakeUsers) Create(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return apperrors.ErrAlreadyExists
		}
	}
	f.users[u.ID] = *u
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == domain.NormalizeEmail(email) {
			return &u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeUsers) Update(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return apperrors.ErrNotFound
	}
	f.users[u.ID] = *u
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]domain.Profile
}

func (f *fakeProfiles) Create(_ context.Context, p *domain.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.profiles[p.UserID]; ok {
		return apperrors.ErrAlreadyExists
	}
	f.profiles[p.UserID] = *p
	return nil
}

func (f *fakeProfiles) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProfiles) Update(_ context.Context, p *domain.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.profiles[p.UserID]; !ok {
		return apperrors.ErrNotFound
	}
	f.profiles[p.UserID] = *p
	return nil
}

func (f *fakeProfiles) Delete(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.profiles[userID]; !ok {
		return apperrors.ErrNotFound
	}
	delete(f.profiles, userID)
	return nil
}

type fakeHabits struct {
	mu        sync.Mutex
	habits    map[uuid.UUID]domain.Habit
	trackings []domain.Tracking
}

func (f *fakeHabits) Create(_ context.Context, h *domain.Habit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.habits[h.ID] = *h
	return nil
}

func (f *fakeHabits) GetByID(_ context.Context, userID, id uuid.UUID) (*domain.Habit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.habits[id]
	if !ok || h.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return &h, nil
}

func (f *fakeHabits) ListByUser(_ context.Context, userID uuid.UUID, params pagination.Params) ([]domain.Habit, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var owned []domain.Habit
	for _, h := range f.habits {
		if h.UserID == userID {
			owned = append(owned, h)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].CreatedAt.After(owned[j].CreatedAt) })

	total := len(owned)
	start := min(params.Offset(), total)
	end := min(start+params.PerPage, total)
	return owned[start:end], total, nil
}

func (f *fakeHabits) Update(_ context.Context, h *domain.Habit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.habits[h.ID] = *h
	return nil
}

func (f *fakeHabits) Delete(_ context.Context, userID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.habits[id]
	if !ok || h.UserID != userID {
		return apperrors.ErrNotFound
	}
	delete(f.habits, id)
	return nil
}

type fakeTrackings struct {
	habits *fakeHabits
}

func (f fakeTrackings) Create(_ context.Context, t *domain.Tracking) error {
	f.habits.mu.Lock()
	defer f.habits.mu.Unlock()
	f.habits.trackings = append(f.habits.trackings, *t)
	return nil
}

func (f fakeTrackings) ListByHabit(_ context.Context, habitID uuid.UUID) ([]domain.Tracking, error) {
	f.habits.mu.Lock()
	defer f.habits.mu.Unlock()
	var out []domain.Tracking
	for _, t := range f.habits.trackings {
		if t.HabitID == habitID {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeTokens struct {
	mu          sync.Mutex
	outstanding map[string]domain.OutstandingToken
	blacklist   map[string]bool
}

func (f *fakeTokens) SaveOutstanding(_ context.Context, t *domain.OutstandingToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outstanding[t.JTI] = *t
	return nil
}

func (f *fakeTokens) Blacklist(_ context.Context, jti string, _ uuid.UUID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blacklist[jti] = true
	return nil
}

func (f *fakeTokens) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blacklist[jti], nil
}

func (f *fakeTokens) BlacklistAllForUser(_ context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for jti, t := range f.outstanding {
		if t.UserID == userID && !f.blacklist[jti] {
			f.blacklist[jti] = true
			n++
		}
	}
	return n, nil
}

// outbox records every mail instead of sending it.
type outbox struct {
	mu   sync.Mutex
	sent []mail
}

type mail struct {
	to, subject, body string
}

func (o *outbox) Name() string { return "outbox" }

func (o *outbox) Send(_ context.Context, to, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, mail{to: to, subject: subject, body: body})
	return nil
}

func (o *outbox) last(t *testing.T) mail {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent, "no mail was sent")
	return o.sent[len(o.sent)-1]
}

// ============================================================================
// Test server
// ============================================================================

const testSecret = "handler-test-secret-0123456789abcdef"

type testServer struct {
	handler  http.Handler
	users    *fakeUsers
	profiles *fakeProfiles
	habits   *fakeHabits
	tokens   *fakeTokens
	storage  *memory.Storage
	outbox   *outbox
	registry *prometheus.Registry
}

type serverOption func(*RouterConfig)

func withRateLimiter(rl *middleware.RateLimiter) serverOption {
	return func(c *RouterConfig) { c.RateLimiter = rl }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	log := logger.Discard()

	ts := &testServer{
		users:    &fakeUsers{users: make(map[uuid.UUID]domain.User)},
		profiles: &fakeProfiles{profiles: make(map[uuid.UUID]domain.Profile)},
		habits:   &fakeHabits{habits: make(map[uuid.UUID]domain.Habit)},
		tokens:   &fakeTokens{outstanding: make(map[string]domain.OutstandingToken), blacklist: make(map[string]bool)},
		storage:  memory.New("/media"),
		outbox:   &outbox{},
		registry: prometheus.NewRegistry(),
	}

	hasher, err := auth.NewPasswordHasher(auth.Argon2Params{
		Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	require.NoError(t, err)

	events := event.NewProducer(nil, log)
	tokens := service.NewTokenService(
		auth.NewTokenManager(testSecret, 5*time.Minute, 24*time.Hour),
		auth.NewResetTicketer(testSecret, time.Hour),
		ts.tokens,
		ts.users,
		log,
	)

	svc := Services{
		Auth: service.NewAuthService(ts.users, hasher, tokens, ts.outbox, events,
			service.NewMetrics(ts.registry),
			service.ResetConfig{SiteURL: "https://app.example.com/reset"}, log),
		Tokens:   tokens,
		Users:    service.NewUserService(ts.users, ts.profiles, ts.storage, hasher, events, log),
		Profiles: service.NewProfileService(ts.profiles, ts.storage, 1<<20, log),
		Habits:   service.NewHabitService(ts.habits, fakeTrackings{habits: ts.habits}, log),
	}

	cfg := RouterConfig{
		Health:         health.NewHandler(time.Second),
		Registry:       ts.registry,
		CORS:           middleware.CORSConfig{AllowedOrigins: []string{"*"}},
		AvatarMaxBytes: 1 << 20,
		Media:          MediaHandler(ts.storage),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ts.handler = NewRouter(svc, cfg, log)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// register creates an account through the API and returns its token pair.
func (ts *testServer) register(t *testing.T, email, password string) domain.TokenPair {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/register/", map[string]string{"email": email, "password": password}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return *resp.Tokens
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	return decodeBody[httputil.ErrorResponse](t, rec)
}

// resetParams extracts uid and token from the link in a reset mail.
func resetParams(t *testing.T, m mail) (string, string) {
	t.Helper()
	u, err := url.Parse(m.body)
	require.NoError(t, err)
	return u.Query().Get("uid"), u.Query().Get("token")
}

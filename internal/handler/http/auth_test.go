package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/HabitGo/pkg/logger"
	"github.com/utafrali/HabitGo/pkg/middleware"
)

func TestRegister_Success(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/register/", map[string]string{
		"email": "  Alice@Example.com ", "password": "secret-pass",
	}, "")

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeBody[AuthResponse](t, rec)
	assert.Equal(t, "alice@example.com", resp.Email)
	require.NotNil(t, resp.Tokens)
	assert.NotEmpty(t, resp.Tokens.Access)
	assert.NotEmpty(t, resp.Tokens.Refresh)
	assert.Len(t, ts.tokens.outstanding, 1, "refresh token is recorded as outstanding")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice@example.com", "secret-pass")

	rec := ts.do(t, http.MethodPost, "/register/", map[string]string{
		"email": "ALICE@example.com", "password": "another-pass",
	}, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeErr(t, rec).Fields, "email")
}

func TestRegister_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  map[string]string
		field string
	}{
		{"missing email", map[string]string{"password": "secret-pass"}, "email"},
		{"bad email", map[string]string{"email": "nope", "password": "secret-pass"}, "email"},
		{"short password", map[string]string{"email": "a@example.com", "password": "123"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do(t, http.MethodPost, "/register/", tt.body, "")

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeErr(t, rec)
			assert.Equal(t, "VALIDATION_ERROR", resp.Code)
			assert.Contains(t, resp.Fields, tt.field)
		})
	}
}

func TestRegister_RejectsNonJSON(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/register/", strings.NewReader("email=a@example.com"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "bob@example.com", "secret-pass")

	t.Run("valid credentials", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/login/", map[string]string{
			"email": "BOB@example.com", "password": "secret-pass",
		}, "")

		assert.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[AuthResponse](t, rec)
		assert.Equal(t, "bob@example.com", resp.Email)
		assert.NotEmpty(t, resp.Tokens.Access)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/login/", map[string]string{
			"email": "bob@example.com", "password": "wrong-pass",
		}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/login/", map[string]string{
			"email": "nobody@example.com", "password": "secret-pass",
		}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed email", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/login/", map[string]string{
			"email": "not-an-email", "password": "secret-pass",
		}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeErr(t, rec)
		assert.Equal(t, "VALIDATION_ERROR", resp.Code)
		assert.Contains(t, resp.Fields, "email")
	})

	assert.Equal(t, 1.0, authEventCount(t, ts, "login", "success"))
	assert.Equal(t, 2.0, authEventCount(t, ts, "login", "failure"))
}

func authEventCount(t *testing.T, ts *testServer, event, outcome string) float64 {
	t.Helper()
	families, err := ts.registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "habit_auth_events_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["event"] == event && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestLogin_RateLimited(t *testing.T) {
	ts := newTestServer(t, withRateLimiter(middleware.NewRateLimiter(1, 1, time.Minute, logger.Discard())))
	body := map[string]string{"email": "nobody@example.com", "password": "secret-pass"}

	first := ts.do(t, http.MethodPost, "/login/", body, "")
	assert.Equal(t, http.StatusUnauthorized, first.Code)

	second := ts.do(t, http.MethodPost, "/login/", body, "")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// Registration is not throttled.
	rec := ts.do(t, http.MethodPost, "/register/", map[string]string{"email": "c@example.com", "password": "secret-pass"}, "")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRefresh(t *testing.T) {
	ts := newTestServer(t)
	pair := ts.register(t, "carol@example.com", "secret-pass")

	rec := ts.do(t, http.MethodPost, "/token/refresh/", map[string]string{"refresh": pair.Refresh}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[AccessResponse](t, rec)
	assert.NotEmpty(t, resp.Access)

	// The new access token authenticates.
	rec = ts.do(t, http.MethodGet, "/user_detail/", nil, resp.Access)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	ts := newTestServer(t)
	pair := ts.register(t, "carol@example.com", "secret-pass")

	rec := ts.do(t, http.MethodPost, "/token/refresh/", map[string]string{"refresh": pair.Access}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefresh_BlankToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/token/refresh/", map[string]string{"refresh": ""}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "This field may not be blank.", decodeErr(t, rec).Fields["refresh"])
}

func TestLogout_BlacklistsRefreshToken(t *testing.T) {
	ts := newTestServer(t)
	pair := ts.register(t, "dave@example.com", "secret-pass")

	rec := ts.do(t, http.MethodPost, "/logout/", map[string]string{"refresh": pair.Refresh}, pair.Access)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodPost, "/token/refresh/", map[string]string{"refresh": pair.Refresh}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logging out again with the same token is not an error.
	rec = ts.do(t, http.MethodPost, "/logout/", map[string]string{"refresh": pair.Refresh}, pair.Access)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLogout_Errors(t *testing.T) {
	ts := newTestServer(t)
	dave := ts.register(t, "dave@example.com", "secret-pass")
	erin := ts.register(t, "erin@example.com", "secret-pass")

	t.Run("no credentials", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/logout/", map[string]string{"refresh": dave.Refresh}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage bearer", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/logout/", map[string]string{"refresh": dave.Refresh}, "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Given token not valid for any token type", decodeErr(t, rec).Message)
	})

	t.Run("blank refresh", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/logout/", map[string]string{"refresh": ""}, dave.Access)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty body", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/logout/", nil, dave.Access)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeErr(t, rec).Fields, "refresh")
	})

	t.Run("someone else's refresh token", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/logout/", map[string]string{"refresh": erin.Refresh}, dave.Access)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		// Erin's token survives.
		rec = ts.do(t, http.MethodPost, "/token/refresh/", map[string]string{"refresh": erin.Refresh}, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestPasswordReset_FullFlow(t *testing.T) {
	ts := newTestServer(t)
	pair := ts.register(t, "frank@example.com", "old-password")

	rec := ts.do(t, http.MethodPost, "/request_reset_password/", map[string]string{"email": "frank@example.com"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decodeBody[map[string]string](t, rec)["success"])

	m := ts.outbox.last(t)
	assert.Equal(t, "frank@example.com", m.to)
	assert.True(t, strings.HasPrefix(m.body, "https://app.example.com/reset?"), m.body)
	uid, token := resetParams(t, m)

	rec = ts.do(t, http.MethodGet, "/password_reset_confirm/"+uid+"/"+token+"/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	confirm := decodeBody[ResetTicketResponse](t, rec)
	assert.Equal(t, "Credentials valid", confirm.Message)
	assert.Equal(t, uid, confirm.UIDB64)
	assert.Equal(t, token, confirm.Token)

	rec = ts.do(t, http.MethodPatch, "/password_reset_complete/", map[string]string{
		"password": "new-password", "token": token, "uidb64": uid,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decodeBody[map[string]string](t, rec)["message"])

	// Old password is gone, new one works.
	rec = ts.do(t, http.MethodPost, "/login/", map[string]string{"email": "frank@example.com", "password": "old-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = ts.do(t, http.MethodPost, "/login/", map[string]string{"email": "frank@example.com", "password": "new-password"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Refresh tokens issued before the reset are revoked.
	rec = ts.do(t, http.MethodPost, "/token/refresh/", map[string]string{"refresh": pair.Refresh}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The link is single use.
	rec = ts.do(t, http.MethodPatch, "/password_reset_complete/", map[string]string{
		"password": "third-password", "token": token, "uidb64": uid,
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Reset link is invalid", decodeErr(t, rec).Message)
}

func TestRequestPasswordReset_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "gina@example.com", "secret-pass")

	t.Run("unknown email", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/request_reset_password/", map[string]string{"email": "nobody@example.com"}, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "User does not exist", decodeErr(t, rec).Message)
	})

	t.Run("redirect to foreign host", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/request_reset_password/", map[string]string{
			"email": "gina@example.com", "redirect_url": "https://evil.example.net/steal",
		}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeErr(t, rec).Fields, "redirect_url")
	})

	t.Run("redirect to site host", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/request_reset_password/", map[string]string{
			"email": "gina@example.com", "redirect_url": "https://app.example.com/custom?lang=en",
		}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, ts.outbox.last(t).body, "lang=en")
	})
}

func TestPasswordResetConfirm_InvalidLink(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "hank@example.com", "secret-pass")
	rec := ts.do(t, http.MethodPost, "/request_reset_password/", map[string]string{"email": "hank@example.com"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	uid, _ := resetParams(t, ts.outbox.last(t))

	t.Run("bad token", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/password_reset_confirm/"+uid+"/abc-123/", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeErr(t, rec).Fields, "token")
	})

	t.Run("bad uid", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/password_reset_confirm/%21%21/abc-123/", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeErr(t, rec).Fields, "uid")
	})

	t.Run("complete with bad token", func(t *testing.T) {
		rec := ts.do(t, http.MethodPatch, "/password_reset_complete/", map[string]string{
			"password": "new-password", "token": "abc-123", "uidb64": uid,
		}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

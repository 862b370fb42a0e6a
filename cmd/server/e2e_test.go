package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests drive a running habit service over HTTP. Point HABIT_E2E_URL at
// it; the default matches the HTTP_PORT default.

func baseURL() string {
	if u := os.Getenv("HABIT_E2E_URL"); u != "" {
		return u
	}
	return "http://localhost:8000"
}

// uniqueEmail generates a unique email address to avoid test collisions.
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d-%d@test.example.com", prefix, time.Now().UnixNano(), rand.Intn(100000))
}

// skipIfNotRunning skips the test when the service is unreachable.
func skipIfNotRunning(t *testing.T) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL() + "/health/live")
	if err != nil {
		t.Skipf("habit service at %s not reachable: %v", baseURL(), err)
	}
	resp.Body.Close()
}

func doJSON(t *testing.T, method, path string, body any, token string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, baseURL()+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err, "%s %s", method, path)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && json.Unmarshal(raw, &out) != nil {
		out["raw"] = string(raw)
	}
	return resp.StatusCode, out
}

func tokensOf(t *testing.T, data map[string]any) (access, refresh string) {
	t.Helper()
	tokens, ok := data["tokens"].(map[string]any)
	require.True(t, ok, "expected tokens in %v", data)
	access, _ = tokens["access"].(string)
	refresh, _ = tokens["refresh"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	return access, refresh
}

func TestE2E_Health(t *testing.T) {
	skipIfNotRunning(t)

	status, _ := doJSON(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestE2E_AccountFlow(t *testing.T) {
	skipIfNotRunning(t)

	email := uniqueEmail("flow")
	creds := map[string]string{"email": email, "password": "TestPass123!"}

	status, data := doJSON(t, http.MethodPost, "/register/", creds, "")
	require.Equal(t, http.StatusCreated, status, data)
	assert.Equal(t, email, data["email"])

	status, data = doJSON(t, http.MethodPost, "/register/", creds, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, data["fields"], "email")

	status, data = doJSON(t, http.MethodPost, "/login/", creds, "")
	require.Equal(t, http.StatusOK, status, data)
	access, refresh := tokensOf(t, data)

	status, data = doJSON(t, http.MethodGet, "/user_detail/", nil, access)
	require.Equal(t, http.StatusOK, status, data)
	assert.Equal(t, email, data["email"])

	status, data = doJSON(t, http.MethodPost, "/token/refresh/", map[string]string{"refresh": refresh}, "")
	require.Equal(t, http.StatusOK, status, data)
	assert.NotEmpty(t, data["access"])

	status, _ = doJSON(t, http.MethodPost, "/logout/", map[string]string{"refresh": refresh}, access)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = doJSON(t, http.MethodPost, "/token/refresh/", map[string]string{"refresh": refresh}, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doJSON(t, http.MethodDelete, "/delete_user/", nil, access)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = doJSON(t, http.MethodPost, "/login/", creds, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestE2E_HabitFlow(t *testing.T) {
	skipIfNotRunning(t)

	status, data := doJSON(t, http.MethodPost, "/register/", map[string]string{
		"email": uniqueEmail("habits"), "password": "TestPass123!",
	}, "")
	require.Equal(t, http.StatusCreated, status, data)
	access, _ := tokensOf(t, data)

	status, data = doJSON(t, http.MethodPost, "/habits/", map[string]any{
		"title":               "Read",
		"description":         "twenty pages",
		"number_of_repeats":   1,
		"execution_frequency": "day",
		"start_date":          "2024-01-01",
		"end_date":            "2024-12-31",
	}, access)
	require.Equal(t, http.StatusCreated, status, data)
	habitID, _ := data["id"].(string)
	require.NotEmpty(t, habitID)

	status, data = doJSON(t, http.MethodPost, "/trackings/", map[string]any{
		"habit": habitID, "amount_of_days": 1, "done_date": "2024-01-02",
	}, access)
	require.Equal(t, http.StatusCreated, status, data)

	status, data = doJSON(t, http.MethodGet, "/habits/", nil, access)
	require.Equal(t, http.StatusOK, status, data)
	assert.EqualValues(t, 1, data["total_count"])

	status, _ = doJSON(t, http.MethodDelete, "/habits/"+habitID+"/", nil, access)
	assert.Equal(t, http.StatusNoContent, status)
}

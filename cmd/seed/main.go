// Package main populates a running habit service with demo accounts,
// habits and trackings through its public HTTP API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/utafrali/HabitGo/pkg/logger"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type client struct {
	baseURL string
	http    *http.Client
}

func (c *client) do(ctx context.Context, method, path, token string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

type tokens struct {
	Tokens struct {
		Access string `json:"access"`
	} `json:"tokens"`
}

type habitDef struct {
	title       string
	description string
	frequency   string
	repeats     int
}

var habits = []habitDef{
	{"Morning run", "Five kilometres before breakfast", "day", 1},
	{"Read", "Twenty pages of a book", "day", 1},
	{"Meal prep", "Cook lunches for the week", "week", 1},
	{"Call family", "Catch up with parents", "week", 2},
	{"Budget review", "Go through expenses", "month", 1},
}

// account logs in, registering the user first when login fails.
func (c *client) account(ctx context.Context, email, password string) (string, error) {
	creds := map[string]string{"email": email, "password": password}
	var out tokens
	if _, err := c.do(ctx, http.MethodPost, "/login/", "", creds, &out); err == nil {
		return out.Tokens.Access, nil
	}
	if _, err := c.do(ctx, http.MethodPost, "/register/", "", creds, &out); err != nil {
		return "", fmt.Errorf("register %s: %w", email, err)
	}
	return out.Tokens.Access, nil
}

func main() {
	log := logger.NewWithWriter("habit-seed", "info", "text", os.Stderr)

	c := &client{
		baseURL: getEnv("HABIT_URL", "http://localhost:8000"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	users, err := strconv.Atoi(getEnv("SEED_USERS", "3"))
	if err != nil || users < 1 {
		log.Error("SEED_USERS must be a positive integer")
		os.Exit(1)
	}
	password := getEnv("SEED_PASSWORD", "demo-password")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now().UTC().AddDate(0, 0, -14)
	created := 0
	for i := 1; i <= users; i++ {
		email := fmt.Sprintf("demo%d@habits.local", i)
		access, err := c.account(ctx, email, password)
		if err != nil {
			log.Error("failed to obtain account", slog.String("error", err.Error()))
			os.Exit(1)
		}

		for _, h := range habits {
			var habit struct {
				ID string `json:"id"`
			}
			_, err := c.do(ctx, http.MethodPost, "/habits/", access, map[string]any{
				"title":               h.title,
				"description":         h.description,
				"number_of_repeats":   h.repeats,
				"execution_frequency": h.frequency,
				"start_date":          start.Format(time.DateOnly),
				"end_date":            start.AddDate(0, 3, 0).Format(time.DateOnly),
			}, &habit)
			if err != nil {
				log.Warn("failed to create habit",
					slog.String("email", email),
					slog.String("title", h.title),
					slog.String("error", err.Error()),
				)
				continue
			}
			created++

			for day := 0; day < 14; day += 2 {
				_, err := c.do(ctx, http.MethodPost, "/trackings/", access, map[string]any{
					"habit":          habit.ID,
					"amount_of_days": 1,
					"done_date":      start.AddDate(0, 0, day).Format(time.DateOnly),
				}, nil)
				if err != nil {
					log.Warn("failed to create tracking",
						slog.String("habit_id", habit.ID),
						slog.String("error", err.Error()),
					)
				}
			}
		}
		log.Info("seeded account", slog.String("email", email))
	}

	log.Info("seed complete", slog.Int("users", users), slog.Int("habits", created))
}

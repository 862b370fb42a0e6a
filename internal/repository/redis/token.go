package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/HabitGo/internal/domain"
)

const (
	blacklistPrefix = "jwt:bl:"
	userTokensKey   = "jwt:user:"
)

// TokenStore implements repository.TokenStore in Redis.
//
// Outstanding tokens of a user live in a sorted set scored by expiry, so
// expired members can be pruned by score. A blacklisted jti is a plain key
// that expires together with the token it revokes.
type TokenStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewTokenStore creates a new Redis-backed token store.
func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client, now: time.Now}
}

// SaveOutstanding records an issued refresh token under its user.
func (s *TokenStore) SaveOutstanding(ctx context.Context, t *domain.OutstandingToken) error {
	key := userTokensKey + t.UserID.String()
	now := s.now()

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(t.ExpiresAt.Unix()), Member: t.JTI})
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(now.Unix(), 10))
		pipe.ExpireAt(ctx, key, t.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save outstanding token: %w", err)
	}
	return nil
}

// Blacklist marks jti as revoked until expiresAt.
func (s *TokenStore) Blacklist(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error {
	if err := s.client.Set(ctx, blacklistPrefix+jti, userID.String(), s.ttlUntil(expiresAt)).Err(); err != nil {
		return fmt.Errorf("redis blacklist token: %w", err)
	}
	return nil
}

// IsBlacklisted reports whether jti has been revoked.
func (s *TokenStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("redis check blacklisted token: %w", err)
	}
	return n > 0, nil
}

// BlacklistAllForUser revokes every unexpired outstanding token of userID and
// returns how many were newly blacklisted.
func (s *TokenStore) BlacklistAllForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	now := s.now()

	live, err := s.client.ZRangeByScoreWithScores(ctx, userTokensKey+userID.String(), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now.Unix(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis list user tokens: %w", err)
	}
	if len(live) == 0 {
		return 0, nil
	}

	cmds := make([]*redis.BoolCmd, 0, len(live))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, z := range live {
			jti, ok := z.Member.(string)
			if !ok {
				continue
			}
			expiresAt := time.Unix(int64(z.Score), 0)
			cmds = append(cmds, pipe.SetNX(ctx, blacklistPrefix+jti, userID.String(), s.ttlUntil(expiresAt)))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis blacklist user tokens: %w", err)
	}

	revoked := 0
	for _, cmd := range cmds {
		if cmd.Val() {
			revoked++
		}
	}
	return revoked, nil
}

// ttlUntil never returns less than a second so an already-expired token
// still produces a short-lived blacklist entry instead of a persistent key.
func (s *TokenStore) ttlUntil(t time.Time) time.Duration {
	ttl := t.Sub(s.now())
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/HabitGo/internal/domain"
)

var (
	// ErrMalformedUID is returned when a uidb64 does not decode to a user id.
	ErrMalformedUID = errors.New("malformed uid")
	// ErrTicketInvalid is returned for a reset token that does not match the
	// user's current state or is outside the validity window.
	ErrTicketInvalid = errors.New("reset ticket is invalid or expired")
)

const resetKeySalt = "habits.auth.password-reset"

// ResetTicketer makes and checks one-time password reset tokens.
//
// A token is "<base36 unix seconds>-<hex hmac>", where the HMAC covers the
// user's id, password hash, active flag, email and the timestamp. Changing
// any of those (a password reset in particular) invalidates every token
// issued before.
type ResetTicketer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewResetTicketer derives the HMAC key from secret.
func NewResetTicketer(secret string, ttl time.Duration) *ResetTicketer {
	mac := hmac.New(sha256.New, []byte(resetKeySalt))
	mac.Write([]byte(secret))
	return &ResetTicketer{key: mac.Sum(nil), ttl: ttl, now: time.Now}
}

// EncodeUID returns the URL-safe base64 form of a user id.
func EncodeUID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

// DecodeUID reverses EncodeUID. Padded input is accepted.
func DecodeUID(uidb64 string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(uidb64, "="))
	if err != nil {
		return uuid.Nil, ErrMalformedUID
	}
	id, err := uuid.Parse(string(raw))
	if err != nil {
		return uuid.Nil, ErrMalformedUID
	}
	return id, nil
}

// Make returns a token for u valid for the configured window.
func (t *ResetTicketer) Make(u *domain.User) string {
	return t.makeAt(u, t.now().Unix())
}

// Check reports whether token was issued for u in its current state and
// has not expired.
func (t *ResetTicketer) Check(u *domain.User, token string) error {
	tsPart, _, ok := strings.Cut(token, "-")
	if !ok || tsPart == "" {
		return ErrTicketInvalid
	}
	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil || ts <= 0 {
		return ErrTicketInvalid
	}

	if !hmac.Equal([]byte(t.makeAt(u, ts)), []byte(token)) {
		return ErrTicketInvalid
	}

	issued := time.Unix(ts, 0)
	now := t.now()
	if issued.After(now) || now.Sub(issued) > t.ttl {
		return ErrTicketInvalid
	}
	return nil
}

func (t *ResetTicketer) makeAt(u *domain.User, ts int64) string {
	mac := hmac.New(sha256.New, t.key)
	fmt.Fprintf(mac, "%s|%s|%t|%s|%d", u.ID, u.PasswordHash, u.IsActive, u.Email, ts)
	return strconv.FormatInt(ts, 36) + "-" + hex.EncodeToString(mac.Sum(nil))
}

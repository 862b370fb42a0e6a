package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutstandingToken is an issued refresh token, tracked by its jti so that it
// can be blacklisted on logout or revoked with every other token of the user.
type OutstandingToken struct {
	JTI       string
	UserID    uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
}

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/utafrali/HabitGo/pkg/errors"
	"github.com/utafrali/HabitGo/pkg/httputil"
)

type contextKeyType string

const identityKey contextKeyType = "identity"

// ErrInvalidCredentials marks an Authenticator failure caused by the
// presented token rather than by the backing store.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Identity is the authenticated principal attached to a request.
type Identity struct {
	UserID      uuid.UUID
	Email       string
	IsStaff     bool
	IsSuperuser bool
}

// Authenticator resolves a bearer token into an Identity. Bad tokens and
// unknown or inactive users are reported with errors wrapping
// ErrInvalidCredentials; any other error is a lookup failure.
type Authenticator func(ctx context.Context, token string) (*Identity, error)

// Auth rejects requests without a valid bearer token and stores the resolved
// Identity in the request context. Lookup failures answer 503.
func Auth(authenticate Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "NOT_AUTHENTICATED",
					"Authentication credentials were not provided.")
				return
			}

			id, err := authenticate(r.Context(), token)
			switch {
			case errors.Is(err, ErrInvalidCredentials):
				writeJSONError(w, http.StatusUnauthorized, "TOKEN_NOT_VALID",
					"Given token not valid for any token type")
				return
			case err != nil:
				httputil.WriteError(w, r, apperrors.Unavailable("authentication is unavailable", err), logger)
				return
			}

			trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("enduser.id", id.UserID.String()))
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the Identity stored by Auth.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

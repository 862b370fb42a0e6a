package http

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"slices"

	apperrors "github.com/utafrali/HabitGo/pkg/errors"
	"github.com/utafrali/HabitGo/pkg/httputil"
	"github.com/utafrali/HabitGo/pkg/middleware"
	"github.com/utafrali/HabitGo/pkg/validator"
)

const maxJSONBody = 1 << 20

// ContentTypeJSON enforces Content-Type: application/json on requests that
// carry a body.
func ContentTypeJSON(next http.Handler) http.Handler {
	return requireMediaType(next, "application/json")
}

// ContentTypeForm enforces a multipart or urlencoded body on requests that
// carry one.
func ContentTypeForm(next http.Handler) http.Handler {
	return requireMediaType(next, "multipart/form-data", "application/x-www-form-urlencoded")
}

func requireMediaType(next http.Handler, allowed ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hasBody(r) {
			mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || !slices.Contains(allowed, mt) {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.ErrorResponse{
					Code:    "UNSUPPORTED_MEDIA_TYPE",
					Message: "Unsupported media type in request.",
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func hasBody(r *http.Request) bool {
	if r.ContentLength > 0 {
		return true
	}
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return r.ContentLength != 0
	}
	return false
}

// decodeJSON reads and validates a JSON body. An empty body validates as an
// empty object. On failure the 400 response has already been written and
// false is returned.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	err := validator.DecodeAndValidate(r, dst)
	if errors.Is(err, io.EOF) {
		err = validator.Validate(dst)
	}
	if err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}

// identity returns the caller resolved by the Auth middleware.
func identity(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*middleware.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.AuthenticationFailed("Authentication credentials were not provided."), logger)
		return nil, false
	}
	return id, true
}

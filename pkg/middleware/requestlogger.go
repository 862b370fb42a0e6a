package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/HabitGo/pkg/logger"
)

// RequestLogger builds a request-scoped logger enriched with correlation_id,
// user_id, trace_id and span_id and stores it in the context.
//
// Mount it after RequestLogging and Tracing. When mounted inside an Auth group
// the authenticated user id is included as well.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if id, ok := IdentityFromContext(ctx); ok {
				ctx = logger.WithUserID(ctx, id.UserID.String())
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package http

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/HabitGo/pkg/httputil"
)

// ObjectOpener reads stored objects by key.
type ObjectOpener interface {
	Open(key string) (io.Reader, string, bool)
}

// MediaHandler serves stored avatars under /media/{key}.
func MediaHandler(store ObjectOpener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, contentType, ok := store.Open(chi.URLParam(r, "*"))
		if !ok {
			httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Code: "NOT_FOUND", Message: "Not found."})
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "private, max-age=300")
		_, _ = io.Copy(w, body)
	}
}

package middleware

import (
	"log/slog"
	"net/http"

	"github.com/eishro/storeguard/internal/auth"
)

// Session attaches the session ID from the signed session cookie, issuing a
// new session when the cookie is missing or invalid.
func Session(sm *auth.SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid, err := sm.FromRequest(r)
			if err != nil {
				var token string
				sid, token, err = sm.Issue()
				if err != nil {
					logger.Error("failed to issue session", slog.Any("error", err))
					next.ServeHTTP(w, r)
					return
				}
				sm.SetCookie(w, token)
			}

			next.ServeHTTP(w, r.WithContext(auth.WithSessionID(r.Context(), sid)))
		})
	}
}

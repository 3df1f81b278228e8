package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/irgordon/threadvault/api/internal/core/domain"
)

// SessionCookie carries the viewer session issued by a successful unlock.
const SessionCookie = "threadvault_session"

// RequireSession admits only requests carrying a valid viewer session,
// either as the session cookie or as a Bearer token.
// While nothing is unlocked the request passes through and the views answer 423.
func RequireSession(state domain.StateProvider, sessions domain.SessionManager, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if state.State() == nil {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			if err := sessions.Validate(token); err != nil {
				logger.Debug("session rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"message":"Unlock required"}`))
}

func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bruinswipes/bruinswipes-backend/internal/services"
)

// SessionCookie carries the opaque session token.
const SessionCookie = "session"

// SessionVerifier resolves a session token.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) services.SessionStatus
}

// NotSignedIn is the body every protected route answers without a valid session.
type NotSignedIn struct {
	IsSignedIn bool   `json:"isSignedIn"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

var notSignedIn = NotSignedIn{IsSignedIn: false, Status: services.StatusFail, Message: "You are not signed in."}

// SessionToken returns the session cookie value, or "".
func SessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// RequireSession stops requests without a valid session and puts the user id in the context.
func RequireSession(sessions SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			status := sessions.VerifySession(r.Context(), SessionToken(r))
			if !status.Valid {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(notSignedIn)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), status.UserID)))
		})
	}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the signed-in user id set by RequireSession.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/finsync/engine/internal/services"
)

type userKeyType string

const UserIDKey userKeyType = "user_id"

// Session verifies an optional Bearer session token and puts its user id in
// the context. A bad token is always rejected; a missing one only when required.
func Session(tokens *services.TokenIssuer, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := r.Header.Get("Authorization")
			if ah == "" {
				if required {
					unauthorized(w, "Session token required")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if len(ah) < len("Bearer ") || !strings.EqualFold(ah[:len("Bearer ")], "bearer ") {
				unauthorized(w, "Invalid session")
				return
			}
			claims, err := tokens.Verify(strings.TrimSpace(ah[len("Bearer "):]))
			if err != nil {
				unauthorized(w, "Invalid session")
				return
			}
			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID returns the session user id, or "" for an anonymous request.
func GetUserID(ctx context.Context) string {
	if s, ok := ctx.Value(UserIDKey).(string); ok {
		return s
	}
	return ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg, "code": "unauthorized"})
}

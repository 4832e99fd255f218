package middleware

import (
	"context"
	"net/http"
	"strings"

	"inkdown-client/pkg/jwt"
	"inkdown-client/pkg/response"
)

type contextKey string

const SessionIDKey contextKey = "sessionID"

// AuthMiddleware accepts a session token as a Bearer header or, for
// browsers opening a websocket, as the token query parameter.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := BearerToken(r)
			if !ok {
				response.Unauthorized(w, "missing or malformed authorization")
				return
			}

			claims, err := jwt.ValidateToken(token, secret)
			if err != nil {
				response.Unauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), SessionIDKey, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func BearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

func GetSessionID(r *http.Request) string {
	sessionID, ok := r.Context().Value(SessionIDKey).(string)
	if !ok {
		return ""
	}
	return sessionID
}

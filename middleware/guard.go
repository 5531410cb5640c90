package middleware

import (
	"context"
	"net/http"
	"strings"

	tokenlife "github.com/tokenlife/tokenlife"
)

type payloadContextKey struct{}

// PayloadFromContext returns the validated token payload stashed by
// RequireAccess.
func PayloadFromContext(ctx context.Context) (*tokenlife.TokenPayload, bool) {
	payload, ok := ctx.Value(payloadContextKey{}).(*tokenlife.TokenPayload)
	return payload, ok
}

// RequireAccess guards a route with access-token validation. The token is
// read from the Authorization bearer header; delivery policy beyond that
// (cookies, custom headers) belongs to the host application.
func RequireAccess(svc *tokenlife.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if svc == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			tokenStr, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			result, err := svc.ValidateToken(r.Context(), tokenStr, tokenlife.TokenTypeAccess, nil)
			if err != nil || result == nil || !result.Valid {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), payloadContextKey{}, result.Payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	tokenStr := value[len(bearer):]
	if tokenStr == "" {
		return "", false
	}

	return tokenStr, true
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/eventmgr/apiserver/internal/auth"
)

// verifyFunc checks a bearer token and returns its claims, typically
// (*auth.TokenManager).Verify.
type verifyFunc = func(token string) (*auth.Claims, error)

// RequireAuth enforces bearer-token authentication and injects the
// decoded claims into the request context. A missing or malformed
// Authorization header is 401; a token that fails signature or expiry
// checks is 403.
func RequireAuth(verify verifyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "Authorization header missing.")
				return
			}

			claims, err := verify(tokenString)
			if err != nil {
				writeMessage(w, http.StatusForbidden, "Invalid or expired token.")
				return
			}

			ctx := context.WithValue(r.Context(), contextClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireManager rejects authenticated non-managers. It must run after
// RequireAuth; a request without claims in context is unauthenticated.
func RequireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := claimsFromContext(r.Context())
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "Authorization header missing.")
			return
		}
		if !claims.IsManager {
			writeMessage(w, http.StatusForbidden, "Managers only.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySubject stores the authenticated user ID
	ContextKeySubject ContextKey = "subject"
)

var (
	ErrMissingAuthorization = errors.New("missing Authorization header")
	ErrInvalidAuthorization = errors.New("invalid Authorization header format")
)

// TokenVerifier validates a bearer token and returns the subject it was issued to.
type TokenVerifier func(ctx context.Context, token string) (subject string, err error)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingAuthorization
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrInvalidAuthorization
	}
	return strings.TrimSpace(parts[1]), nil
}

// RequireAuth rejects requests without a valid bearer token with 401 and a
// {"message": ...} body. The verified subject is stored in the request context.
func RequireAuth(verify TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				WriteMessage(w, http.StatusUnauthorized, "Not authorized, no token")
				return
			}
			subject, err := verify(r.Context(), token)
			if err != nil {
				WriteMessage(w, http.StatusUnauthorized, "Not authorized, token failed")
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeySubject, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the subject stored by RequireAuth.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(ContextKeySubject).(string)
	return subject, ok && subject != ""
}

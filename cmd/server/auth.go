package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hperssn/mockinterview/internal/auth"
)

type contextKey string

const (
	UserIDKey   contextKey = "userId"
	UsernameKey contextKey = "username"
)

// RequireToken authenticates requests with an "Authorization: Bearer"
// token. A missing token is 401; an invalid or expired one is 403.
func RequireToken(svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				respondError(w, "Access token required", http.StatusUnauthorized)
				return
			}

			claims, err := svc.Verify(token)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected bearer token")
				respondError(w, "Invalid or expired token", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UsernameKey, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func GetUserId(r *http.Request) string {
	userId, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userId
}

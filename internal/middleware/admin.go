package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"sacco/internal/models"

	"go.uber.org/zap"
)

type RoleStore interface {
	GetRole(ctx context.Context, userID string) (models.Role, error)
}

// RequireAdmin re-reads the caller's role from storage so a demoted or
// deleted admin loses access before their token expires.
func RequireAdmin(roles RoleStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			role, err := roles.GetRole(r.Context(), userID)
			if errors.Is(err, sql.ErrNoRows) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if err != nil {
				zap.L().Error("failed to load role", zap.String("user_id", userID), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal_error")
				return
			}
			if role != models.RoleAdmin {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), userID, role)))
		})
	}
}

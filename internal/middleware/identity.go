package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"iou/internal/models"
)

const userKey contextKey = "user"

type UserLookup interface {
	GetByID(ctx context.Context, userID string) (models.User, error)
}

func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok
}

func WithUser(ctx context.Context, user models.User) context.Context {
	ctx = WithUserID(ctx, user.ID)
	return context.WithValue(ctx, userKey, user)
}

// RequireUser resolves the token's user id to a stored account. Tokens of deleted
// accounts are rejected.
func RequireUser(users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			user, err := users.GetByID(r.Context(), userID)
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "unknown user", http.StatusUnauthorized)
				return
			}
			if err != nil {
				http.Error(w, "unable to verify user", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

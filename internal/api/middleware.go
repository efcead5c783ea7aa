package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserID extracts the authenticated user id from the request context.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// RequireAuth verifies the Bearer token and stores the user id in the
// request context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			h.writeError(w, http.StatusUnauthorized, "unauthorized", "Missing authorization header", "")
			return
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authorization header must be a Bearer token", "")
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return h.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			h.writeError(w, http.StatusUnauthorized, "unauthorized", "Token invalid", "")
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			h.writeError(w, http.StatusUnauthorized, "unauthorized", "Token subject invalid", "")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hansika-eng/clockdin/internal/db"
)

const tokenLifetime = 7 * 24 * time.Hour

// RegisterRequest is the body for POST /v1/auth/register
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body for POST /v1/auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries a signed token and the public account fields
type AuthResponse struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Register handles POST /v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "name, email, and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to hash password", "")
		return
	}

	user := &db.User{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
	}

	if err := h.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicateEmail) {
			h.writeError(w, http.StatusBadRequest, "duplicate_email", "Email already registered", "")
			return
		}
		h.logger.Error("failed to create user", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to create user", "")
		return
	}

	token, err := h.issueToken(user.ID)
	if err != nil {
		h.logger.Error("failed to sign token", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to issue token", "")
		return
	}

	h.writeJSON(w, http.StatusCreated, AuthResponse{
		Token: token,
		User:  UserInfo{ID: user.ID.String(), Name: user.Name, Email: user.Email},
	})
}

// Login handles POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	user, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusBadRequest, "invalid_credentials", "Invalid credentials", "")
			return
		}
		h.logger.Error("failed to look up user", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to look up user", "")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_credentials", "Invalid credentials", "")
		return
	}

	token, err := h.issueToken(user.ID)
	if err != nil {
		h.logger.Error("failed to sign token", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to issue token", "")
		return
	}

	h.writeJSON(w, http.StatusOK, AuthResponse{
		Token: token,
		User:  UserInfo{ID: user.ID.String(), Name: user.Name, Email: user.Email},
	})
}

// issueToken signs a 7-day HS256 token for the user
func (h *Handler) issueToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

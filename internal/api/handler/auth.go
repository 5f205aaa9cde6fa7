package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/adeolu/wallet-multicurrency/internal/api/middleware"
	"github.com/adeolu/wallet-multicurrency/internal/models"
	"github.com/adeolu/wallet-multicurrency/internal/repository"
	"github.com/adeolu/wallet-multicurrency/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	repo     *repository.Repository
	accounts *service.AccountService
}

func NewAuthHandler(repo *repository.Repository, accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{repo: repo, accounts: accounts}
}

// Register creates a user and opens their wallet account with all currency
// balances at zero.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-field", "username and email are required")
		return
	}
	if len(req.Password) < 8 {
		RespondError(w, r, http.StatusBadRequest, "auth/weak-password", "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		zap.L().Error("hash password failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "auth/register-failed", "Failed to register")
		return
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         "user",
	}
	// User, account and zero balances commit as one unit; a failure here
	// leaves no partial registration behind.
	account, err := h.accounts.Register(r.Context(), user)
	if err != nil {
		if status, pType, msg, ok := mapLedgerError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("register failed", zap.Error(err), zap.String("email", req.Email))
		RespondError(w, r, http.StatusInternalServerError, "auth/register-failed", "Failed to register")
		return
	}

	RespondJSON(w, http.StatusCreated, map[string]any{
		"user":    user,
		"account": account,
	})
}

// Login verifies credentials and issues a signed JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	user, err := h.repo.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			RespondError(w, r, http.StatusUnauthorized, "auth/invalid-credentials", "invalid credentials")
			return
		}
		zap.L().Error("login lookup failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "auth/login-failed", "Failed to log in")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-credentials", "invalid credentials")
		return
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID.String(),
		"role":    user.Role,
		"sub":     user.ID.String(),
		"iss":     middleware.JWTIssuer(),
		"aud":     middleware.JWTAudience(),
		"iat":     now.Unix(),
		"exp":     now.Add(24 * time.Hour).Unix(),
	})

	tokenString, err := token.SignedString(middleware.JWTSecret())
	if err != nil {
		zap.L().Error("sign token failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "auth/token-failed", "Failed to sign token")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{
		"token": tokenString,
	})
}

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/datagym/internal/domain"
	"github.com/ashureev/datagym/internal/identity"
	"github.com/ashureev/datagym/internal/logging"
	"github.com/ashureev/datagym/internal/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup creates an account. It does not log the new account in.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	switch {
	case !strings.Contains(req.Email, "@"):
		Error(w, http.StatusBadRequest, "a valid email is required")
		return
	case len(req.Password) < minPasswordLength:
		Error(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	case req.Username == "":
		Error(w, http.StatusBadRequest, "username is required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logging.FromContext(r.Context()).Error("Failed to hash password", "error", err)
		Error(w, http.StatusInternalServerError, "signup failed")
		return
	}

	account := &domain.Account{
		UserID:       uuid.NewString(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := h.repo.CreateAccount(r.Context(), account); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			Error(w, http.StatusConflict, err.Error())
			return
		}
		logging.FromContext(r.Context()).Error("Failed to create account", "error", err)
		Error(w, http.StatusInternalServerError, "signup failed")
		return
	}

	logging.FromContext(r.Context()).Info("Account created", "user_id", account.UserID)
	JSON(w, http.StatusCreated, account)
}

// Login verifies credentials, starts a login session and binds the
// workspace to the account.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.repo.GetAccountByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		logging.FromContext(r.Context()).Error("Failed to load account", "error", err)
		Error(w, http.StatusInternalServerError, "login failed")
		return
	}
	if account == nil || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if err := identity.Login(w, r, h.sessions, account.UserID); err != nil {
		logging.FromContext(r.Context()).Error("Failed to start login session", "error", err)
		Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	ctx := identity.WithAccountID(r.Context(), account.UserID)
	ws, err := h.Resolve(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("Failed to bind workspace", "error", err)
		Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	logging.FromContext(ctx).Info("Account logged in", "user_id", account.UserID, "workspace", ws.Key().String())
	JSON(w, http.StatusOK, h.me(ws))
}

// Logout ends the login session and returns the workspace to a guest.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := identity.Logout(w, r, h.sessions); err != nil {
		logging.FromContext(r.Context()).Warn("Failed to clear login session", "error", err)
	}

	ws, ok := h.workspace(w, r.WithContext(identity.WithAccountID(r.Context(), "")))
	if !ok {
		return
	}
	JSON(w, http.StatusOK, h.me(ws))
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"weradio/core/auth"
	"weradio/logger"
	"weradio/model"
)

type contextKey string

const claimsKey contextKey = "claims"

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// RegisterHandler creates a user account and returns a fresh token.
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if h.userRepo == nil {
		writeJSON(w, http.StatusServiceUnavailable,
			model.OpResult{Success: false, Message: "user database unavailable"})
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.OpResult{Success: false, Message: "invalid request body"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || len(req.Password) < 6 {
		writeJSON(w, http.StatusBadRequest,
			model.OpResult{Success: false, Message: "username, email and a password of at least 6 characters are required"})
		return
	}

	if existing, err := h.userRepo.GetUserByUsername(req.Username); err != nil {
		writeJSON(w, http.StatusInternalServerError, model.OpResult{Success: false, Message: "failed to check username"})
		return
	} else if existing != nil {
		writeJSON(w, http.StatusConflict, model.OpResult{Success: false, Message: "username already taken"})
		return
	}
	if existing, err := h.userRepo.GetUserByEmail(req.Email); err != nil {
		writeJSON(w, http.StatusInternalServerError, model.OpResult{Success: false, Message: "failed to check email"})
		return
	} else if existing != nil {
		writeJSON(w, http.StatusConflict, model.OpResult{Success: false, Message: "email already registered"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("密码哈希失败", logger.ErrorField(err))
		writeJSON(w, http.StatusInternalServerError, model.OpResult{Success: false, Message: "failed to create user"})
		return
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         "user",
	}
	if err := h.userRepo.CreateUser(user); err != nil {
		logger.Error("创建用户失败", logger.ErrorField(err))
		writeJSON(w, http.StatusInternalServerError, model.OpResult{Success: false, Message: "failed to create user"})
		return
	}

	token, err := auth.GenerateToken(h.cfg.JWTSecret, user.ID, user.Username, user.Role, h.cfg.TokenExpiration)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, model.OpResult{Success: false, Message: "failed to issue token"})
		return
	}

	logger.Info("新用户注册", logger.String("username", user.Username))
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: *user})
}

// LoginHandler authenticates a user and returns a token.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if h.userRepo == nil {
		writeJSON(w, http.StatusServiceUnavailable,
			model.OpResult{Success: false, Message: "user database unavailable"})
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.OpResult{Success: false, Message: "invalid request body"})
		return
	}

	user, err := h.userRepo.GetUserByUsername(strings.TrimSpace(req.Username))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, model.OpResult{Success: false, Message: "login failed"})
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		writeJSON(w, http.StatusUnauthorized, model.OpResult{Success: false, Message: "invalid username or password"})
		return
	}

	token, err := auth.GenerateToken(h.cfg.JWTSecret, user.ID, user.Username, user.Role, h.cfg.TokenExpiration)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, model.OpResult{Success: false, Message: "failed to issue token"})
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, User: *user})
}

// AuthMiddleware validates the Bearer token and stores its claims in the
// request context.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, model.OpResult{Success: false, Message: "missing bearer token"})
			return
		}

		claims, err := auth.ParseToken(h.cfg.JWTSecret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, model.OpResult{Success: false, Message: "invalid token"})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

// AdminOnly rejects non-admin callers. Must run after AuthMiddleware.
func (h *APIHandler) AdminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(claimsKey).(*auth.Claims)
		if !ok || claims.Role != "admin" {
			writeJSON(w, http.StatusForbidden, model.OpResult{Success: false, Message: "admin privileges required"})
			return
		}
		next.ServeHTTP(w, r)
	}
}

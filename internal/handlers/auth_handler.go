package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/notisync/notisync/internal/services"
)

type AuthHandler struct {
	auth *services.AuthService
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.auth.Register(r.Context(), req.Email, req.Password)
	if errors.Is(err, services.ErrEmailExists) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type loginRequest struct {
	Email      string     `json:"email"`
	Password   string     `json:"password"`
	DeviceID   *uuid.UUID `json:"device_id,omitempty"`
	DeviceName string     `json:"device_name"`
	Platform   string     `json:"platform"`
	PushToken  *string    `json:"push_token,omitempty"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	DeviceID  uuid.UUID `json:"device_id"`
	UserID    uuid.UUID `json:"user_id"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.auth.Login(r.Context(), services.LoginRequest{
		Email:      req.Email,
		Password:   req.Password,
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		Platform:   req.Platform,
		PushToken:  req.PushToken,
	})
	if errors.Is(err, services.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
		DeviceID:  resp.DeviceID,
		UserID:    resp.UserID,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if err := h.auth.Logout(r.Context(), claims.SessionID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

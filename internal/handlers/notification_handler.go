package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/notisync/notisync/internal/repositories"
	"github.com/notisync/notisync/internal/services"
)

type NotificationHandler struct {
	notifications *services.NotificationService
	reconcile     *services.ReconcileService
}

type createNotificationRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var req createNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	n, err := h.notifications.Create(r.Context(), claims.UserID, req.Title, req.Body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create notification")
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

type markReadRequest struct {
	// ReadAt is the instant the read happened on the device; the server's
	// processing time is used when absent.
	ReadAt *time.Time `json:"read_at,omitempty"`
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	notificationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	var req markReadRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	var ts time.Time
	if req.ReadAt != nil {
		ts = *req.ReadAt
	}

	outcome, err := h.reconcile.MarkRead(r.Context(), notificationID, claims.DeviceID, claims.UserID, ts)
	if errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	if errors.Is(err, services.ErrBusy) {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "busy, retry later")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark read")
		return
	}

	// A rejected (stale) read is still a 200: the caller gets the reason in
	// the outcome, not an error.
	writeJSON(w, http.StatusOK, outcome)
}

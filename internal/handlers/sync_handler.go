package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/notisync/notisync/internal/models"
	"github.com/notisync/notisync/internal/repositories"
	"github.com/notisync/notisync/internal/services"
)

type SyncHandler struct {
	sync         *services.SyncService
	presenceRepo repositories.PresenceRepository
}

// Sync returns the deltas the calling device must apply. last_sync_at is
// RFC3339; omitting it means a full sync from the beginning of time.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var lastSyncAt time.Time
	if raw := r.URL.Query().Get("last_sync_at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid last_sync_at, want RFC3339")
			return
		}
		lastSyncAt = parsed
	}

	result, err := h.sync.Sync(r.Context(), claims.DeviceID, lastSyncAt)
	if errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Heartbeat refreshes the device's online presence; push eligibility depends
// on it.
func (h *SyncHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	presence := &models.Presence{
		UserID:   claims.UserID,
		DeviceID: claims.DeviceID,
		Status:   string(models.StatusOnline),
	}
	if err := h.presenceRepo.SetPresence(r.Context(), presence); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record presence")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

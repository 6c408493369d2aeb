package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationView is the merged read-state a device receives from sync: the
// global record joined with the device's own projection, with the global read
// flag taking precedence.
type NotificationView struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SyncResult is the payload returned to a reconnecting device: deltas newest
// first, plus the ids of notifications whose projection had to be repaired.
type SyncResult struct {
	Deltas     []NotificationView `json:"deltas"`
	Conflicts  []uuid.UUID        `json:"conflicts"`
	ServerTime time.Time          `json:"server_time"`
}

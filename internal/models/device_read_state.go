package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceReadState is one device's projection of a notification's read status.
// It may lag behind the Notification record until the device next syncs;
// reconciliation always moves the projection toward the global record, never
// the reverse.
type DeviceReadState struct {
	NotificationID uuid.UUID  `json:"notification_id"`
	DeviceID       uuid.UUID  `json:"device_id"`
	UserID         uuid.UUID  `json:"user_id"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	LastSyncAt     time.Time  `json:"last_sync_at"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Validate checks the projection invariant: is_read iff read_at is set.
func (s *DeviceReadState) Validate() error {
	if s.IsRead != (s.ReadAt != nil) {
		return ErrReadAtMismatch
	}
	if s.Version < 0 {
		return ErrNegativeVersion
	}
	return nil
}

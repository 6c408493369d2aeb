package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncEvent is an append-only log entry recorded each time a device syncs or
// a divergent projection is repaired. Entries are subject to the same bounded
// retention as the notification records they describe.
type SyncEvent struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	DeviceID       uuid.UUID `json:"device_id"`
	EventType      string    `json:"event_type"`
	NotificationID uuid.UUID `json:"notification_id"`
	SequenceNumber int64     `json:"sequence_number"`
	CreatedAt      time.Time `json:"created_at"`
}

const (
	SyncEventDelta    = "delta"
	SyncEventConflict = "conflict_repaired"
)

package models

import (
	"time"

	"github.com/google/uuid"
)

type Device struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Name       string     `json:"name"`
	Platform   string     `json:"platform"`
	PushToken  *string    `json:"-"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// Pushable reports whether the device can receive a push at all; whether it
// is currently online comes from presence, not from this record.
func (d *Device) Pushable() bool {
	return d.PushToken != nil && *d.PushToken != ""
}

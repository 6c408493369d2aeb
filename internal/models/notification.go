package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Notification is the authoritative global record for one logical
// notification. IsRead is the global read flag shared by every device of the
// owning user; once set it is never unset ("read wins").
type Notification struct {
	ID           uuid.UUID   `json:"id"`
	UserID       uuid.UUID   `json:"user_id"`
	Title        string      `json:"title"`
	Body         string      `json:"body"`
	IsRead       bool        `json:"is_read"`
	ReadAt       *time.Time  `json:"read_at,omitempty"`
	ReadByDevice *uuid.UUID  `json:"read_by_device,omitempty"`
	Version      int64       `json:"version"`
	PushSentTo   []uuid.UUID `json:"push_sent_to"`
	PushSentAt   *time.Time  `json:"push_sent_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	ExpiresAt    *time.Time  `json:"expires_at,omitempty"`
}

var (
	ErrReadAtMismatch  = errors.New("is_read flag and read_at timestamp disagree")
	ErrNegativeVersion = errors.New("version must not be negative")
	ErrMissingOwner    = errors.New("notification has no owning user")
)

// Validate checks the record invariants: is_read iff read_at is set, and a
// non-negative version.
func (n *Notification) Validate() error {
	if n.UserID == uuid.Nil {
		return ErrMissingOwner
	}
	if n.IsRead != (n.ReadAt != nil) {
		return ErrReadAtMismatch
	}
	if n.Version < 0 {
		return ErrNegativeVersion
	}
	return nil
}

// WasPushedTo reports whether deviceID is already in the push dedup set.
func (n *Notification) WasPushedTo(deviceID uuid.UUID) bool {
	for _, id := range n.PushSentTo {
		if id == deviceID {
			return true
		}
	}
	return false
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Presence is a device's heartbeat record. It lives in Redis with a short TTL;
// a device with no presence key is treated as offline.
type Presence struct {
	UserID   uuid.UUID `json:"user_id"`
	DeviceID uuid.UUID `json:"device_id"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

func (p *Presence) Online() bool {
	return p.Status == string(StatusOnline)
}

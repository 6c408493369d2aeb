package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/notisync/notisync/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type DeviceRepository interface {
	Create(ctx context.Context, device *models.Device) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Device, error)
	GetDevicesByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Device, error)
	SetPushToken(ctx context.Context, id uuid.UUID, token *string) error
	TouchLastSeen(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// NotificationRepository owns the authoritative global records. All read-state
// mutation goes through conditional updates: the guarded UPDATE either applies
// atomically or reports, via a sentinel, that the condition no longer holds.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	// MarkGloballyRead flips the global read flag iff it is still unset.
	// Returns ErrAlreadyRead when another device won the transition.
	MarkGloballyRead(ctx context.Context, id, deviceID uuid.UUID, readAt time.Time) (*models.Notification, error)
	// AddPushSent unions deviceID into the push dedup set. Adding a device
	// that is already present is a no-op, never an error.
	AddPushSent(ctx context.Context, id, deviceID uuid.UUID) error
	ListUpdatedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.Notification, error)
}

// DeviceReadStateRepository owns the per-device projections.
type DeviceReadStateRepository interface {
	CreateUnread(ctx context.Context, notificationID, deviceID, userID uuid.UUID) (*models.DeviceReadState, error)
	Get(ctx context.Context, notificationID, deviceID uuid.UUID) (*models.DeviceReadState, error)
	// MarkRead upserts the projection, succeeding only if the row is unread
	// or carries a strictly earlier read_at. Returns ErrStaleUpdate when an
	// equal-or-later read is already recorded.
	MarkRead(ctx context.Context, notificationID, deviceID, userID uuid.UUID, readAt time.Time) (*models.DeviceReadState, error)
	// ForceRead overwrites an unread projection with the global read_at
	// during sync conflict repair. A projection that is already read is left
	// alone (ErrStaleUpdate).
	ForceRead(ctx context.Context, notificationID, deviceID uuid.UUID, readAt time.Time) (*models.DeviceReadState, error)
	ListByDevice(ctx context.Context, deviceID uuid.UUID) ([]*models.DeviceReadState, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

type PresenceRepository interface {
	SetPresence(ctx context.Context, presence *models.Presence) error
	GetPresence(ctx context.Context, deviceID uuid.UUID) (*models.Presence, error)
	DeletePresence(ctx context.Context, deviceID uuid.UUID) error
	GetBulkPresence(ctx context.Context, deviceIDs []uuid.UUID) (map[uuid.UUID]models.Presence, error)
}

type SyncEventRepository interface {
	Append(ctx context.Context, event *models.SyncEvent) error
	ListByDevice(ctx context.Context, deviceID uuid.UUID, limit int) ([]*models.SyncEvent, error)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/notisync/notisync/internal/models"
	"github.com/notisync/notisync/internal/repositories"
)

// SyncService computes the delta a reconnecting device must apply and
// repairs divergent per-device projections. Conflicts resolve one way only:
// the global record wins over a stale projection, never the reverse.
type SyncService struct {
	notificationRepo repositories.NotificationRepository
	readStateRepo    repositories.DeviceReadStateRepository
	deviceRepo       repositories.DeviceRepository
	syncEventRepo    repositories.SyncEventRepository
}

func NewSyncService(
	notificationRepo repositories.NotificationRepository,
	readStateRepo repositories.DeviceReadStateRepository,
	deviceRepo repositories.DeviceRepository,
	syncEventRepo repositories.SyncEventRepository,
) *SyncService {
	return &SyncService{
		notificationRepo: notificationRepo,
		readStateRepo:    readStateRepo,
		deviceRepo:       deviceRepo,
		syncEventRepo:    syncEventRepo,
	}
}

// Sync returns, newest first, every notification of the device's user that
// changed after lastSyncAt, merged with the device's own projection. A
// projection still showing unread for a globally-read notification is
// overwritten in place with the global read_at and reported in Conflicts.
func (s *SyncService) Sync(ctx context.Context, deviceID uuid.UUID, lastSyncAt time.Time) (*models.SyncResult, error) {
	device, err := s.deviceRepo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", deviceID, err)
	}
	if err := s.deviceRepo.TouchLastSeen(ctx, deviceID); err != nil {
		log.Printf("failed to touch device %s: %v", deviceID, err)
	}

	notifications, err := s.notificationRepo.ListUpdatedSince(ctx, device.UserID, lastSyncAt)
	if err != nil {
		return nil, err
	}

	result := &models.SyncResult{
		Deltas:     make([]models.NotificationView, 0, len(notifications)),
		Conflicts:  []uuid.UUID{},
		ServerTime: time.Now(),
	}

	for _, n := range notifications {
		projection, err := s.readStateRepo.Get(ctx, n.ID, deviceID)
		if errors.Is(err, repositories.ErrNotFound) {
			// First time this device sees the notification.
			projection, err = s.readStateRepo.CreateUnread(ctx, n.ID, deviceID, device.UserID)
		}
		if err != nil {
			return nil, err
		}

		eventType := models.SyncEventDelta
		if n.IsRead && !projection.IsRead {
			projection, err = s.repairProjection(ctx, n, deviceID)
			if err != nil {
				return nil, err
			}
			result.Conflicts = append(result.Conflicts, n.ID)
			eventType = models.SyncEventConflict
		}

		s.logSyncEvent(ctx, device, n.ID, eventType)
		result.Deltas = append(result.Deltas, mergeView(n, projection))
	}

	return result, nil
}

// repairProjection overwrites an unread projection with the global read_at.
// Losing the guarded update to a concurrent markRead is fine; whatever is
// stored afterward is at least as read as what we meant to write.
func (s *SyncService) repairProjection(ctx context.Context, n *models.Notification, deviceID uuid.UUID) (*models.DeviceReadState, error) {
	projection, err := s.readStateRepo.ForceRead(ctx, n.ID, deviceID, *n.ReadAt)
	if errors.Is(err, repositories.ErrStaleUpdate) {
		return s.readStateRepo.Get(ctx, n.ID, deviceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to repair projection for %s: %w", n.ID, err)
	}
	return projection, nil
}

// logSyncEvent appends to the sync log. The log is best-effort debugging
// state; failures must not fail the sync itself.
func (s *SyncService) logSyncEvent(ctx context.Context, device *models.Device, notificationID uuid.UUID, eventType string) {
	event := &models.SyncEvent{
		UserID:         device.UserID,
		DeviceID:       device.ID,
		EventType:      eventType,
		NotificationID: notificationID,
	}
	if err := s.syncEventRepo.Append(ctx, event); err != nil {
		log.Printf("failed to append sync event for %s: %v", notificationID, err)
	}
}

// mergeView joins the global record with the device projection. The global
// read flag takes precedence; the projection can only add "read" on top of a
// still-unread global record, which cannot happen by construction.
func mergeView(n *models.Notification, projection *models.DeviceReadState) models.NotificationView {
	view := models.NotificationView{
		ID:        n.ID,
		Title:     n.Title,
		Body:      n.Body,
		IsRead:    n.IsRead || projection.IsRead,
		Version:   n.Version,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	if n.IsRead {
		view.ReadAt = n.ReadAt
	} else if projection.IsRead {
		view.ReadAt = projection.ReadAt
	}
	return view
}

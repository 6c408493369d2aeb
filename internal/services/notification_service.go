package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/notisync/notisync/internal/models"
	"github.com/notisync/notisync/internal/repositories"
)

// NotificationService creates notifications and fans them out: one global
// record, one unread projection per device of the user, then push dispatch to
// the devices that were eligible at creation time.
type NotificationService struct {
	notificationRepo repositories.NotificationRepository
	readStateRepo    repositories.DeviceReadStateRepository
	deviceRepo       repositories.DeviceRepository
	push             *PushService
}

func NewNotificationService(
	notificationRepo repositories.NotificationRepository,
	readStateRepo repositories.DeviceReadStateRepository,
	deviceRepo repositories.DeviceRepository,
	push *PushService,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		readStateRepo:    readStateRepo,
		deviceRepo:       deviceRepo,
		push:             push,
	}
}

func (s *NotificationService) Create(ctx context.Context, userID uuid.UUID, title, body string) (*models.Notification, error) {
	n := &models.Notification{
		UserID: userID,
		Title:  title,
		Body:   body,
	}
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		return nil, err
	}

	devices, err := s.deviceRepo.GetDevicesByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices for fan-out: %w", err)
	}

	for _, device := range devices {
		if _, err := s.readStateRepo.CreateUnread(ctx, n.ID, device.ID, userID); err != nil {
			return nil, fmt.Errorf("failed to fan out to device %s: %w", device.ID, err)
		}
	}

	eligible, err := s.push.EligibleDevices(ctx, devices)
	if err != nil {
		// The notification exists and is synced; push is best-effort.
		log.Printf("failed to compute push eligibility for %s: %v", n.ID, err)
		return n, nil
	}
	if err := s.push.Dispatch(ctx, n.ID, eligible); err != nil {
		log.Printf("push dispatch for %s failed: %v", n.ID, err)
	}

	return n, nil
}

func (s *NotificationService) Get(ctx context.Context, userID, notificationID uuid.UUID) (*models.Notification, error) {
	n, err := s.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, repositories.ErrNotFound
	}
	return n, nil
}

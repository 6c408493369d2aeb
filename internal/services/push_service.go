package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/notisync/notisync/internal/models"
	"github.com/notisync/notisync/internal/repositories"
	"golang.org/x/sync/errgroup"
)

// PushTransport is the external delivery sink. Failures are logged, not
// retried here; retry belongs to a surrounding delivery queue.
type PushTransport interface {
	Send(ctx context.Context, device *models.Device, n *models.Notification) error
}

// PushService decides push eligibility per device and records dedup state.
// The dedup mark is persisted before the transport call and never retracted
// on transport failure, so delivery is at-most-once per device.
type PushService struct {
	notificationRepo repositories.NotificationRepository
	presenceRepo     repositories.PresenceRepository
	transport        PushTransport
	sendConcurrency  int
}

func NewPushService(
	notificationRepo repositories.NotificationRepository,
	presenceRepo repositories.PresenceRepository,
	transport PushTransport,
) *PushService {
	return &PushService{
		notificationRepo: notificationRepo,
		presenceRepo:     presenceRepo,
		transport:        transport,
		sendConcurrency:  4,
	}
}

// ShouldSendPush is a pure predicate: no push to a device already in the
// dedup set, and none at all once the notification is globally read.
func (s *PushService) ShouldSendPush(n *models.Notification, deviceID uuid.UUID) bool {
	if n.IsRead {
		return false
	}
	return !n.WasPushedTo(deviceID)
}

// RecordPushSent unions the device into the dedup set. Recording an
// already-present device is a no-op.
func (s *PushService) RecordPushSent(ctx context.Context, notificationID, deviceID uuid.UUID) error {
	return s.notificationRepo.AddPushSent(ctx, notificationID, deviceID)
}

// EligibleDevices filters a user's devices down to the ones worth pushing to:
// a push token is registered and presence says the device is online right
// now. Eligibility is computed once, at notification creation; it is not
// re-checked after the transport call.
func (s *PushService) EligibleDevices(ctx context.Context, devices []*models.Device) ([]*models.Device, error) {
	var pushable []*models.Device
	var ids []uuid.UUID
	for _, d := range devices {
		if d.Pushable() {
			pushable = append(pushable, d)
			ids = append(ids, d.ID)
		}
	}
	if len(pushable) == 0 {
		return nil, nil
	}

	presence, err := s.presenceRepo.GetBulkPresence(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check presence: %w", err)
	}

	var eligible []*models.Device
	for _, d := range pushable {
		if p, ok := presence[d.ID]; ok && p.Online() {
			eligible = append(eligible, d)
		}
	}
	return eligible, nil
}

// Dispatch sends the notification to each eligible device at most once. The
// dedup record is written before the transport is invoked; a device whose
// record cannot be written is skipped rather than risk a duplicate.
func (s *PushService) Dispatch(ctx context.Context, notificationID uuid.UUID, devices []*models.Device) error {
	n, err := s.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("notification %s: %w", notificationID, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.sendConcurrency)

	for _, device := range devices {
		if !s.ShouldSendPush(n, device.ID) {
			continue
		}
		device := device
		g.Go(func() error {
			if err := s.RecordPushSent(ctx, notificationID, device.ID); err != nil {
				return fmt.Errorf("failed to record push for device %s: %w", device.ID, err)
			}
			if err := s.transport.Send(ctx, device, n); err != nil {
				// At-most-once: the dedup mark stands even though delivery
				// failed.
				log.Printf("push to device %s failed: %v", device.ID, err)
			}
			return nil
		})
	}

	return g.Wait()
}

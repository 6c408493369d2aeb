package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/notisync/notisync/internal/keymutex"
	"github.com/notisync/notisync/internal/models"
	"github.com/notisync/notisync/internal/repositories"
)

// ErrBusy is returned when the per-notification serial section could not be
// entered within the acquisition timeout. The caller should retry later; no
// state was touched.
var ErrBusy = errors.New("notification busy: try again later")

const ReasonStaleUpdate = "stale_update"

// Outcome reports what a markRead attempt did. A rejected attempt is a
// result, not an error: Success=false with Reason set means the caller lost
// the race to an equal-or-later read, which is normal under concurrency.
type Outcome struct {
	Success            bool                    `json:"success"`
	Reason             string                  `json:"reason,omitempty"`
	DeviceState        *models.DeviceReadState `json:"device_state,omitempty"`
	WasFirstGlobalRead bool                    `json:"was_first_global_read"`
	GlobalReadAt       *time.Time              `json:"global_read_at,omitempty"`
}

// ReconcileService drives the two-step read-marking protocol: first the
// device's own projection, then the compare-and-swap on the global record.
// Both steps run under a per-notification serial section so the pair is
// observably atomic and the WasFirstGlobalRead flag is reported truthfully.
type ReconcileService struct {
	notificationRepo repositories.NotificationRepository
	readStateRepo    repositories.DeviceReadStateRepository
	deviceRepo       repositories.DeviceRepository
	serializer       *keymutex.Serializer
}

func NewReconcileService(
	notificationRepo repositories.NotificationRepository,
	readStateRepo repositories.DeviceReadStateRepository,
	deviceRepo repositories.DeviceRepository,
	serializer *keymutex.Serializer,
) *ReconcileService {
	return &ReconcileService{
		notificationRepo: notificationRepo,
		readStateRepo:    readStateRepo,
		deviceRepo:       deviceRepo,
		serializer:       serializer,
	}
}

// MarkRead records that deviceID read the notification at ts. A zero ts
// defaults to processing time. The global record is write-once for the read
// transition: the first caller to win the compare-and-swap becomes
// authoritative and later calls, even ones carrying earlier timestamps, only
// update their own device projection.
func (s *ReconcileService) MarkRead(ctx context.Context, notificationID, deviceID, userID uuid.UUID, ts time.Time) (*Outcome, error) {
	if ts.IsZero() {
		ts = time.Now()
	}

	device, err := s.deviceRepo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", deviceID, err)
	}
	if device.UserID != userID {
		return nil, fmt.Errorf("device %s: %w", deviceID, repositories.ErrNotFound)
	}
	notification, err := s.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		return nil, fmt.Errorf("notification %s: %w", notificationID, err)
	}
	if notification.UserID != userID {
		return nil, fmt.Errorf("notification %s: %w", notificationID, repositories.ErrNotFound)
	}

	var outcome *Outcome
	err = s.serializer.RunExclusive(ctx, notificationID.String(), func(ctx context.Context) error {
		deviceState, err := s.readStateRepo.MarkRead(ctx, notificationID, deviceID, userID, ts)
		if errors.Is(err, repositories.ErrStaleUpdate) {
			// An equal-or-later read is already recorded for this device.
			outcome = &Outcome{Success: false, Reason: ReasonStaleUpdate}
			return nil
		}
		if err != nil {
			return err
		}

		updated, err := s.notificationRepo.MarkGloballyRead(ctx, notificationID, deviceID, ts)
		if errors.Is(err, repositories.ErrAlreadyRead) {
			// Some device already closed the global record. The per-device
			// read above still counts.
			current, err := s.notificationRepo.GetByID(ctx, notificationID)
			if err != nil {
				return err
			}
			outcome = &Outcome{
				Success:      true,
				DeviceState:  deviceState,
				GlobalReadAt: current.ReadAt,
			}
			return nil
		}
		if err != nil {
			return err
		}

		outcome = &Outcome{
			Success:            true,
			DeviceState:        deviceState,
			WasFirstGlobalRead: true,
			GlobalReadAt:       updated.ReadAt,
		}
		return nil
	})
	if errors.Is(err, keymutex.ErrAcquireTimeout) {
		return nil, fmt.Errorf("%w: %v", ErrBusy, err)
	}
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/notisync/notisync/internal/models"
	"github.com/notisync/notisync/internal/repositories"
)

// In-memory fakes of the repository interfaces. The conditional-update
// semantics mirror the SQL guards so the service tests exercise the same
// races the real store would.

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]*models.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: make(map[uuid.UUID]*models.Notification)}
}

func cloneNotification(n *models.Notification) *models.Notification {
	c := *n
	c.PushSentTo = append([]uuid.UUID(nil), n.PushSentTo...)
	return &c
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	n.ID = uuid.New()
	n.Version = 1
	n.PushSentTo = []uuid.UUID{}
	n.CreatedAt = now
	n.UpdatedAt = now
	r.notifications[n.ID] = cloneNotification(n)
	return nil
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneNotification(n), nil
}

func (r *fakeNotificationRepo) MarkGloballyRead(_ context.Context, id, deviceID uuid.UUID, readAt time.Time) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if n.IsRead {
		return nil, repositories.ErrAlreadyRead
	}
	ts := readAt
	device := deviceID
	n.IsRead = true
	n.ReadAt = &ts
	n.ReadByDevice = &device
	n.Version++
	n.UpdatedAt = time.Now()
	return cloneNotification(n), nil
}

func (r *fakeNotificationRepo) AddPushSent(_ context.Context, id, deviceID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return repositories.ErrNotFound
	}
	for _, d := range n.PushSentTo {
		if d == deviceID {
			return nil
		}
	}
	n.PushSentTo = append(n.PushSentTo, deviceID)
	if n.PushSentAt == nil {
		now := time.Now()
		n.PushSentAt = &now
	}
	n.Version++
	n.UpdatedAt = time.Now()
	return nil
}

func (r *fakeNotificationRepo) ListUpdatedSince(_ context.Context, userID uuid.UUID, since time.Time) ([]*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Notification
	for _, n := range r.notifications {
		if n.UserID == userID && n.UpdatedAt.After(since) {
			out = append(out, cloneNotification(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

type readStateKey struct {
	notificationID uuid.UUID
	deviceID       uuid.UUID
}

type fakeReadStateRepo struct {
	mu     sync.Mutex
	states map[readStateKey]*models.DeviceReadState
}

func newFakeReadStateRepo() *fakeReadStateRepo {
	return &fakeReadStateRepo{states: make(map[readStateKey]*models.DeviceReadState)}
}

func cloneReadState(s *models.DeviceReadState) *models.DeviceReadState {
	c := *s
	return &c
}

func (r *fakeReadStateRepo) CreateUnread(_ context.Context, notificationID, deviceID, userID uuid.UUID) (*models.DeviceReadState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := readStateKey{notificationID, deviceID}
	if s, ok := r.states[key]; ok {
		return cloneReadState(s), nil
	}
	now := time.Now()
	s := &models.DeviceReadState{
		NotificationID: notificationID,
		DeviceID:       deviceID,
		UserID:         userID,
		Version:        1,
		LastSyncAt:     now,
		CreatedAt:      now,
	}
	r.states[key] = s
	return cloneReadState(s), nil
}

func (r *fakeReadStateRepo) Get(_ context.Context, notificationID, deviceID uuid.UUID) (*models.DeviceReadState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[readStateKey{notificationID, deviceID}]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneReadState(s), nil
}

func (r *fakeReadStateRepo) MarkRead(_ context.Context, notificationID, deviceID, userID uuid.UUID, readAt time.Time) (*models.DeviceReadState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := readStateKey{notificationID, deviceID}
	ts := readAt
	s, ok := r.states[key]
	if !ok {
		now := time.Now()
		s = &models.DeviceReadState{
			NotificationID: notificationID,
			DeviceID:       deviceID,
			UserID:         userID,
			IsRead:         true,
			ReadAt:         &ts,
			Version:        1,
			LastSyncAt:     now,
			CreatedAt:      now,
		}
		r.states[key] = s
		return cloneReadState(s), nil
	}
	if s.IsRead && !s.ReadAt.Before(readAt) {
		return nil, repositories.ErrStaleUpdate
	}
	s.IsRead = true
	s.ReadAt = &ts
	s.Version++
	s.LastSyncAt = time.Now()
	return cloneReadState(s), nil
}

func (r *fakeReadStateRepo) ForceRead(_ context.Context, notificationID, deviceID uuid.UUID, readAt time.Time) (*models.DeviceReadState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[readStateKey{notificationID, deviceID}]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if s.IsRead {
		return nil, repositories.ErrStaleUpdate
	}
	ts := readAt
	s.IsRead = true
	s.ReadAt = &ts
	s.Version++
	s.LastSyncAt = time.Now()
	return cloneReadState(s), nil
}

func (r *fakeReadStateRepo) ListByDevice(_ context.Context, deviceID uuid.UUID) ([]*models.DeviceReadState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.DeviceReadState
	for _, s := range r.states {
		if s.DeviceID == deviceID {
			out = append(out, cloneReadState(s))
		}
	}
	return out, nil
}

type fakeDeviceRepo struct {
	mu      sync.Mutex
	devices map[uuid.UUID]*models.Device
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: make(map[uuid.UUID]*models.Device)}
}

func (r *fakeDeviceRepo) Create(_ context.Context, device *models.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	device.ID = uuid.New()
	device.CreatedAt = time.Now()
	clone := *device
	r.devices[device.ID] = &clone
	return nil
}

func (r *fakeDeviceRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *fakeDeviceRepo) GetDevicesByUserID(_ context.Context, userID uuid.UUID) ([]*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Device
	for _, d := range r.devices {
		if d.UserID == userID {
			clone := *d
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeDeviceRepo) SetPushToken(_ context.Context, id uuid.UUID, token *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return repositories.ErrNotFound
	}
	d.PushToken = token
	return nil
}

func (r *fakeDeviceRepo) TouchLastSeen(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return repositories.ErrNotFound
	}
	now := time.Now()
	d.LastSeenAt = &now
	return nil
}

func (r *fakeDeviceRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.devices, id)
	return nil
}

type fakePresenceRepo struct {
	mu     sync.Mutex
	online map[uuid.UUID]bool
}

func newFakePresenceRepo() *fakePresenceRepo {
	return &fakePresenceRepo{online: make(map[uuid.UUID]bool)}
}

func (r *fakePresenceRepo) setOnline(deviceID uuid.UUID, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online[deviceID] = online
}

func (r *fakePresenceRepo) SetPresence(_ context.Context, presence *models.Presence) error {
	r.setOnline(presence.DeviceID, presence.Online())
	return nil
}

func (r *fakePresenceRepo) GetPresence(_ context.Context, deviceID uuid.UUID) (*models.Presence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := models.StatusOffline
	if r.online[deviceID] {
		status = models.StatusOnline
	}
	return &models.Presence{DeviceID: deviceID, Status: string(status)}, nil
}

func (r *fakePresenceRepo) DeletePresence(_ context.Context, deviceID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.online, deviceID)
	return nil
}

func (r *fakePresenceRepo) GetBulkPresence(_ context.Context, deviceIDs []uuid.UUID) (map[uuid.UUID]models.Presence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]models.Presence, len(deviceIDs))
	for _, id := range deviceIDs {
		status := models.StatusOffline
		if r.online[id] {
			status = models.StatusOnline
		}
		out[id] = models.Presence{DeviceID: id, Status: string(status)}
	}
	return out, nil
}

type fakeSyncEventRepo struct {
	mu     sync.Mutex
	events []*models.SyncEvent
}

func newFakeSyncEventRepo() *fakeSyncEventRepo {
	return &fakeSyncEventRepo{}
}

func (r *fakeSyncEventRepo) Append(_ context.Context, event *models.SyncEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = uuid.New()
	event.SequenceNumber = int64(len(r.events) + 1)
	event.CreatedAt = time.Now()
	clone := *event
	r.events = append(r.events, &clone)
	return nil
}

func (r *fakeSyncEventRepo) ListByDevice(_ context.Context, deviceID uuid.UUID, limit int) ([]*models.SyncEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SyncEvent
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		if r.events[i].DeviceID == deviceID {
			clone := *r.events[i]
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeSyncEventRepo) eventsOfType(eventType string) []*models.SyncEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SyncEvent
	for _, e := range r.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakePushTransport records sends and can be told to fail.
type fakePushTransport struct {
	mu      sync.Mutex
	sent    []uuid.UUID // device ids, in send order
	failErr error
	onSend  func(deviceID uuid.UUID)
}

func (t *fakePushTransport) Send(_ context.Context, device *models.Device, _ *models.Notification) error {
	t.mu.Lock()
	onSend := t.onSend
	t.sent = append(t.sent, device.ID)
	err := t.failErr
	t.mu.Unlock()
	if onSend != nil {
		onSend(device.ID)
	}
	return err
}

func (t *fakePushTransport) sentTo() []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]uuid.UUID(nil), t.sent...)
}

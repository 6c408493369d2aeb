package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/notisync/notisync/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "presence:"
	presenceTTL       = 60 * time.Second // expires without a heartbeat
)

type RedisPresenceRepository struct {
	client *redis.Client
}

func NewRedisPresenceRepository(client *redis.Client) *RedisPresenceRepository {
	return &RedisPresenceRepository{client: client}
}

// SetPresence sets or refreshes the presence for a device. Clients heartbeat
// every 30 seconds to keep their "online" status alive.
func (r *RedisPresenceRepository) SetPresence(ctx context.Context, presence *models.Presence) error {
	presence.LastSeen = time.Now()

	data, err := json.Marshal(presence)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	key := presenceKey(presence.DeviceID)
	if err := r.client.Set(ctx, key, data, presenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}
	return nil
}

func (r *RedisPresenceRepository) GetPresence(ctx context.Context, deviceID uuid.UUID) (*models.Presence, error) {
	key := presenceKey(deviceID)

	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		// No presence key means the device is offline.
		return offlinePresence(deviceID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}

	var presence models.Presence
	if err := json.Unmarshal([]byte(data), &presence); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence: %w", err)
	}
	return &presence, nil
}

func (r *RedisPresenceRepository) DeletePresence(ctx context.Context, deviceID uuid.UUID) error {
	if err := r.client.Del(ctx, presenceKey(deviceID)).Err(); err != nil {
		return fmt.Errorf("failed to delete presence: %w", err)
	}
	return nil
}

// GetBulkPresence retrieves presence for many devices in one round trip. The
// push dispatcher uses this to filter a user's devices down to the online
// ones at fan-out time.
func (r *RedisPresenceRepository) GetBulkPresence(ctx context.Context, deviceIDs []uuid.UUID) (map[uuid.UUID]models.Presence, error) {
	if len(deviceIDs) == 0 {
		return make(map[uuid.UUID]models.Presence), nil
	}

	keys := make([]string, len(deviceIDs))
	for i, id := range deviceIDs {
		keys[i] = presenceKey(id)
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bulk presence: %w", err)
	}

	presenceMap := make(map[uuid.UUID]models.Presence)
	for i, result := range results {
		deviceID := deviceIDs[i]

		if result == nil {
			presenceMap[deviceID] = *offlinePresence(deviceID)
			continue
		}

		data, ok := result.(string)
		if !ok {
			continue
		}

		var presence models.Presence
		if err := json.Unmarshal([]byte(data), &presence); err != nil {
			// Unreadable presence is treated as offline.
			presenceMap[deviceID] = *offlinePresence(deviceID)
			continue
		}
		presenceMap[deviceID] = presence
	}

	return presenceMap, nil
}

func offlinePresence(deviceID uuid.UUID) *models.Presence {
	return &models.Presence{
		DeviceID: deviceID,
		Status:   string(models.StatusOffline),
		LastSeen: time.Time{},
	}
}

func presenceKey(deviceID uuid.UUID) string {
	return presenceKeyPrefix + deviceID.String()
}

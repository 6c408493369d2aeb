package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/notisync/notisync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository_CreateAndLookup(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisSessionRepository(client)
	ctx := context.Background()

	userID := uuid.New()
	deviceID := uuid.New()
	sessionID := uuid.New().String()

	session := &models.Session{
		ID:        sessionID,
		UserID:    userID,
		DeviceID:  deviceID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, session))
	defer repo.DeleteAllForUser(ctx, userID)

	retrieved, err := repo.GetByID(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, userID, retrieved.UserID)
	assert.Equal(t, deviceID, retrieved.DeviceID)

	sessions, err := repo.ListByUserID(ctx, userID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, sessionID, sessions[0].ID)
}

func TestSessionRepository_DeleteRemovesIndex(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisSessionRepository(client)
	ctx := context.Background()

	userID := uuid.New()
	sessionID := uuid.New().String()

	session := &models.Session{
		ID:        sessionID,
		UserID:    userID,
		DeviceID:  uuid.New(),
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, session))

	require.NoError(t, repo.Delete(ctx, sessionID))

	_, err := repo.GetByID(ctx, sessionID)
	require.ErrorIs(t, err, ErrNotFound)

	sessions, err := repo.ListByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestPresenceRepository_OfflineByDefault(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisPresenceRepository(client)
	ctx := context.Background()

	deviceID := uuid.New()

	presence, err := repo.GetPresence(ctx, deviceID)
	require.NoError(t, err)
	assert.Equal(t, string(models.StatusOffline), presence.Status)

	require.NoError(t, repo.SetPresence(ctx, &models.Presence{
		UserID:   uuid.New(),
		DeviceID: deviceID,
		Status:   string(models.StatusOnline),
	}))
	defer repo.DeletePresence(ctx, deviceID)

	presence, err = repo.GetPresence(ctx, deviceID)
	require.NoError(t, err)
	assert.True(t, presence.Online())

	bulk, err := repo.GetBulkPresence(ctx, []uuid.UUID{deviceID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, bulk, 2)
	bulkPresence := bulk[deviceID]
	assert.True(t, bulkPresence.Online())
}

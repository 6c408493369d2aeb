package repositories

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/notisync/notisync/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// getTestPool connects to the database named by TEST_DATABASE_URL. These are
// integration tests; without a database they skip rather than fail.
func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}
	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(pool.Close)
	return pool
}

func getTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set; skipping integration test")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err, "Failed to parse test redis URL")
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	return client
}

// setupTestUserAndDevice creates a user and one device for foreign keys.
func setupTestUserAndDevice(t *testing.T, ctx context.Context, userRepo *PostgresUserRepository, deviceRepo *PostgresDeviceRepository) (uuid.UUID, uuid.UUID) {
	t.Helper()

	user := &models.User{
		Email:        fmt.Sprintf("test-%s@example.com", uuid.New()),
		PasswordHash: "not-a-real-hash",
	}
	require.NoError(t, userRepo.Create(ctx, user))

	device := &models.Device{
		UserID:   user.ID,
		Name:     "Test Device",
		Platform: "ios",
	}
	require.NoError(t, deviceRepo.Create(ctx, device))

	return user.ID, device.ID
}

// cleanupTestData removes everything hanging off a test user.
func cleanupTestData(t *testing.T, pool *pgxpool.Pool, ctx context.Context, userID uuid.UUID) {
	t.Helper()
	for _, query := range []string{
		`DELETE FROM sync_events WHERE user_id = $1`,
		`DELETE FROM device_read_states WHERE user_id = $1`,
		`DELETE FROM notifications WHERE user_id = $1`,
		`DELETE FROM devices WHERE user_id = $1`,
		`DELETE FROM users WHERE id = $1`,
	} {
		if _, err := pool.Exec(ctx, query, userID); err != nil {
			t.Logf("cleanup failed: %v", err)
		}
	}
}

package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/notisync/notisync/internal/models"
)

// ErrStaleUpdate is returned when an equal-or-later read is already recorded
// for the (notification, device) pair. The caller lost the race; this is an
// expected result, not a storage failure.
var ErrStaleUpdate = errors.New("stale update: a newer read is already recorded")

type PostgresDeviceReadStateRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresDeviceReadStateRepository(pool *pgxpool.Pool) *PostgresDeviceReadStateRepository {
	return &PostgresDeviceReadStateRepository{pool: pool}
}

const readStateColumns = `notification_id, device_id, user_id, is_read, read_at,
	                 last_sync_at, version, created_at`

func scanReadState(row pgx.Row) (*models.DeviceReadState, error) {
	var s models.DeviceReadState
	err := row.Scan(
		&s.NotificationID,
		&s.DeviceID,
		&s.UserID,
		&s.IsRead,
		&s.ReadAt,
		&s.LastSyncAt,
		&s.Version,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateUnread lazily creates the projection row at fan-out or first-sync
// time. Racing creators are fine: the conflict clause leaves an existing row
// untouched and returns it.
func (r *PostgresDeviceReadStateRepository) CreateUnread(ctx context.Context, notificationID, deviceID, userID uuid.UUID) (*models.DeviceReadState, error) {
	query := `INSERT INTO device_read_states (notification_id, device_id, user_id)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (notification_id, device_id) DO UPDATE
	              SET last_sync_at = device_read_states.last_sync_at
	          RETURNING ` + readStateColumns

	s, err := scanReadState(r.pool.QueryRow(ctx, query, notificationID, deviceID, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to create read state: %w", err)
	}
	return s, nil
}

func (r *PostgresDeviceReadStateRepository) Get(ctx context.Context, notificationID, deviceID uuid.UUID) (*models.DeviceReadState, error) {
	query := `SELECT ` + readStateColumns + `
	          FROM device_read_states
	          WHERE notification_id = $1 AND device_id = $2`

	s, err := scanReadState(r.pool.QueryRow(ctx, query, notificationID, deviceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get read state: %w", err)
	}
	return s, nil
}

// MarkRead is the conditional upsert for a device reporting a read. The
// update clause only applies while the row is unread or carries a strictly
// earlier read_at, so replaying the same event or delivering an older one is
// rejected as ErrStaleUpdate instead of clobbering newer state.
func (r *PostgresDeviceReadStateRepository) MarkRead(ctx context.Context, notificationID, deviceID, userID uuid.UUID, readAt time.Time) (*models.DeviceReadState, error) {
	query := `INSERT INTO device_read_states
	              (notification_id, device_id, user_id, is_read, read_at, last_sync_at)
	          VALUES ($1, $2, $3, TRUE, $4, NOW())
	          ON CONFLICT (notification_id, device_id) DO UPDATE
	              SET is_read = TRUE,
	                  read_at = EXCLUDED.read_at,
	                  last_sync_at = NOW(),
	                  version = device_read_states.version + 1
	              WHERE device_read_states.is_read = FALSE
	                 OR device_read_states.read_at < EXCLUDED.read_at
	          RETURNING ` + readStateColumns

	s, err := scanReadState(r.pool.QueryRow(ctx, query, notificationID, deviceID, userID, readAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStaleUpdate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark read state: %w", err)
	}
	return s, nil
}

// ForceRead repairs a divergent projection during sync: the global record
// says read, the projection says unread. Only the unread row is touched, so
// repeated repairs are no-ops.
func (r *PostgresDeviceReadStateRepository) ForceRead(ctx context.Context, notificationID, deviceID uuid.UUID, readAt time.Time) (*models.DeviceReadState, error) {
	query := `UPDATE device_read_states
	          SET is_read = TRUE,
	              read_at = $3,
	              last_sync_at = NOW(),
	              version = version + 1
	          WHERE notification_id = $1 AND device_id = $2 AND is_read = FALSE
	          RETURNING ` + readStateColumns

	s, err := scanReadState(r.pool.QueryRow(ctx, query, notificationID, deviceID, readAt))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.Get(ctx, notificationID, deviceID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStaleUpdate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to repair read state: %w", err)
	}
	return s, nil
}

func (r *PostgresDeviceReadStateRepository) ListByDevice(ctx context.Context, deviceID uuid.UUID) ([]*models.DeviceReadState, error) {
	query := `SELECT ` + readStateColumns + `
	          FROM device_read_states
	          WHERE device_id = $1
	          ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query read states: %w", err)
	}
	defer rows.Close()

	var states []*models.DeviceReadState
	for rows.Next() {
		s, err := scanReadState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan read state: %w", err)
		}
		states = append(states, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating read states: %w", err)
	}

	return states, nil
}

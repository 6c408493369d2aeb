package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/notisync/notisync/internal/models"
)

type PostgresDeviceRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresDeviceRepository(pool *pgxpool.Pool) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{pool: pool}
}

func (r *PostgresDeviceRepository) Create(ctx context.Context, device *models.Device) error {
	query := `INSERT INTO devices (user_id, name, platform, push_token)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		device.UserID,
		device.Name,
		device.Platform,
		device.PushToken,
	).Scan(&device.ID, &device.CreatedAt, &device.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

func (r *PostgresDeviceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	query := `SELECT id, user_id, name, platform, push_token,
	                 last_seen_at, created_at, updated_at, deleted_at
	          FROM devices
	          WHERE id = $1 AND deleted_at IS NULL`

	var device models.Device
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&device.ID,
		&device.UserID,
		&device.Name,
		&device.Platform,
		&device.PushToken,
		&device.LastSeenAt,
		&device.CreatedAt,
		&device.UpdatedAt,
		&device.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &device, nil
}

func (r *PostgresDeviceRepository) GetDevicesByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Device, error) {
	query := `SELECT id, user_id, name, platform, push_token,
	                 last_seen_at, created_at, updated_at, deleted_at
	          FROM devices
	          WHERE user_id = $1 AND deleted_at IS NULL
	          ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		var device models.Device
		err := rows.Scan(
			&device.ID,
			&device.UserID,
			&device.Name,
			&device.Platform,
			&device.PushToken,
			&device.LastSeenAt,
			&device.CreatedAt,
			&device.UpdatedAt,
			&device.DeletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, &device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}

	return devices, nil
}

func (r *PostgresDeviceRepository) SetPushToken(ctx context.Context, id uuid.UUID, token *string) error {
	query := `UPDATE devices
	          SET push_token = $1, updated_at = NOW()
	          WHERE id = $2 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query, token, id)
	if err != nil {
		return fmt.Errorf("failed to set push token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresDeviceRepository) TouchLastSeen(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE devices
	          SET last_seen_at = NOW(), updated_at = NOW()
	          WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to touch device: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresDeviceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE devices
	          SET deleted_at = NOW()
	          WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

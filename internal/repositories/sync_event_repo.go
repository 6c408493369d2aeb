package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/notisync/notisync/internal/models"
)

// PostgresSyncEventRepository is an append-only log of sync activity per
// device. It exists for debugging divergence reports; rows age out under the
// store's retention policy.
type PostgresSyncEventRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresSyncEventRepository(pool *pgxpool.Pool) *PostgresSyncEventRepository {
	return &PostgresSyncEventRepository{pool: pool}
}

func (r *PostgresSyncEventRepository) Append(ctx context.Context, event *models.SyncEvent) error {
	query := `INSERT INTO sync_events (user_id, device_id, event_type, notification_id)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, sequence_number, created_at`

	err := r.pool.QueryRow(ctx, query,
		event.UserID,
		event.DeviceID,
		event.EventType,
		event.NotificationID,
	).Scan(&event.ID, &event.SequenceNumber, &event.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to append sync event: %w", err)
	}
	return nil
}

func (r *PostgresSyncEventRepository) ListByDevice(ctx context.Context, deviceID uuid.UUID, limit int) ([]*models.SyncEvent, error) {
	query := `SELECT id, user_id, device_id, event_type, notification_id, sequence_number, created_at
	          FROM sync_events
	          WHERE device_id = $1
	          ORDER BY sequence_number DESC
	          LIMIT $2`

	rows, err := r.pool.Query(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync events: %w", err)
	}
	defer rows.Close()

	var events []*models.SyncEvent
	for rows.Next() {
		var event models.SyncEvent
		err := rows.Scan(
			&event.ID,
			&event.UserID,
			&event.DeviceID,
			&event.EventType,
			&event.NotificationID,
			&event.SequenceNumber,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync events: %w", err)
	}

	return events, nil
}

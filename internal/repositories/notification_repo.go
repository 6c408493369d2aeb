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

// ErrAlreadyRead is returned when the global read transition has already
// happened. This is an expected result, not a storage failure: the losing
// caller's per-device state may still have been updated.
var ErrAlreadyRead = errors.New("notification already globally read")

type PostgresNotificationRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresNotificationRepository(pool *pgxpool.Pool) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{pool: pool}
}

const notificationColumns = `id, user_id, title, body, is_read, read_at, read_by_device,
	                 version, push_sent_to, push_sent_at, created_at, updated_at, expires_at`

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Title,
		&n.Body,
		&n.IsRead,
		&n.ReadAt,
		&n.ReadByDevice,
		&n.Version,
		&n.PushSentTo,
		&n.PushSentAt,
		&n.CreatedAt,
		&n.UpdatedAt,
		&n.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `INSERT INTO notifications (user_id, title, body, expires_at)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, version, push_sent_to, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		n.UserID,
		n.Title,
		n.Body,
		n.ExpiresAt,
	).Scan(&n.ID, &n.Version, &n.PushSentTo, &n.CreatedAt, &n.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + `
	          FROM notifications
	          WHERE id = $1`

	n, err := scanNotification(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// MarkGloballyRead is the compare-and-swap for the global read transition.
// The WHERE clause admits only the still-unread row, so exactly one caller
// can ever succeed; everyone after gets ErrAlreadyRead. The record is
// write-once for this transition: a later call carrying an earlier timestamp
// does not reopen it.
func (r *PostgresNotificationRepository) MarkGloballyRead(ctx context.Context, id, deviceID uuid.UUID, readAt time.Time) (*models.Notification, error) {
	query := `UPDATE notifications
	          SET is_read = TRUE,
	              read_at = $2,
	              read_by_device = $3,
	              version = version + 1,
	              updated_at = NOW()
	          WHERE id = $1 AND is_read = FALSE
	          RETURNING ` + notificationColumns

	n, err := scanNotification(r.pool.QueryRow(ctx, query, id, readAt, deviceID))
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the row is missing or the CAS lost; tell the two apart.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrAlreadyRead
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return n, nil
}

// AddPushSent appends deviceID to the push dedup set and stamps push_sent_at
// on the first send. The guard keeps the set append-only and the call
// idempotent: zero rows affected means the device was already marked.
func (r *PostgresNotificationRepository) AddPushSent(ctx context.Context, id, deviceID uuid.UUID) error {
	query := `UPDATE notifications
	          SET push_sent_to = array_append(push_sent_to, $2),
	              push_sent_at = COALESCE(push_sent_at, NOW()),
	              version = version + 1,
	              updated_at = NOW()
	          WHERE id = $1 AND NOT ($2 = ANY(push_sent_to))`

	result, err := r.pool.Exec(ctx, query, id, deviceID)
	if err != nil {
		return fmt.Errorf("failed to record push sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Already in the set, or the notification is gone. Only the latter
		// is worth reporting.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
	}
	return nil
}

func (r *PostgresNotificationRepository) ListUpdatedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + `
	          FROM notifications
	          WHERE user_id = $1 AND updated_at > $2
	          ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

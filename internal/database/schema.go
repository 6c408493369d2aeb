package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Retention is enforced by the store, not by application logic: a scheduled
// job (or pg_cron) runs the retention statements below. device_read_states
// are cheap to regenerate and go first; notifications and sync_events are
// kept longer.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS devices (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id),
    name TEXT NOT NULL,
    platform TEXT NOT NULL,
    push_token TEXT,
    last_seen_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ,
    deleted_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_devices_user_id ON devices(user_id);

CREATE TABLE IF NOT EXISTS notifications (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id),
    title TEXT NOT NULL,
    body TEXT NOT NULL,
    is_read BOOLEAN NOT NULL DEFAULT FALSE,
    read_at TIMESTAMPTZ,
    read_by_device UUID,
    version BIGINT NOT NULL DEFAULT 1,
    push_sent_to UUID[] NOT NULL DEFAULT '{}',
    push_sent_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ,
    -- is_read iff read_at is set
    CONSTRAINT notifications_read_at_consistent
        CHECK (is_read = (read_at IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_updated
    ON notifications(user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS device_read_states (
    notification_id UUID NOT NULL REFERENCES notifications(id),
    device_id UUID NOT NULL REFERENCES devices(id),
    user_id UUID NOT NULL REFERENCES users(id),
    is_read BOOLEAN NOT NULL DEFAULT FALSE,
    read_at TIMESTAMPTZ,
    last_sync_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    version BIGINT NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (notification_id, device_id),
    CONSTRAINT device_read_states_read_at_consistent
        CHECK (is_read = (read_at IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_device_read_states_device
    ON device_read_states(device_id, created_at DESC);

CREATE TABLE IF NOT EXISTS sync_events (
    id UUID NOT NULL DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL,
    device_id UUID NOT NULL,
    event_type TEXT NOT NULL,
    notification_id UUID NOT NULL,
    sequence_number BIGINT GENERATED ALWAYS AS IDENTITY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (sequence_number)
);

CREATE INDEX IF NOT EXISTS idx_sync_events_device
    ON sync_events(device_id, sequence_number DESC);

-- Retention boundaries (run by the store's scheduled job):
--   DELETE FROM device_read_states WHERE created_at < NOW() - INTERVAL '90 days';
--   DELETE FROM notifications      WHERE created_at < NOW() - INTERVAL '30 days';
--   DELETE FROM sync_events        WHERE created_at < NOW() - INTERVAL '30 days';
--   UPDATE notifications SET push_sent_to = '{}'
--       WHERE push_sent_at < NOW() - INTERVAL '7 days' AND is_read;
`

// InitSchema applies the schema. Statements are idempotent, so running it at
// every startup is safe.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

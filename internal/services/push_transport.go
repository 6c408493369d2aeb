package services

import (
	"context"
	"log"

	"github.com/notisync/notisync/internal/models"
)

// LogPushTransport stands in for a real provider (APNs, FCM) and just logs
// the delivery. Useful for development and as the default when no provider
// is configured.
type LogPushTransport struct{}

func NewLogPushTransport() *LogPushTransport {
	return &LogPushTransport{}
}

func (t *LogPushTransport) Send(ctx context.Context, device *models.Device, n *models.Notification) error {
	log.Printf("push: device=%s notification=%s title=%q", device.ID, n.ID, n.Title)
	return nil
}

package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationValidate(t *testing.T) {
	now := time.Now()

	valid := &Notification{UserID: uuid.New(), IsRead: true, ReadAt: &now}
	require.NoError(t, valid.Validate())

	unread := &Notification{UserID: uuid.New()}
	require.NoError(t, unread.Validate())

	flagWithoutTimestamp := &Notification{UserID: uuid.New(), IsRead: true}
	assert.ErrorIs(t, flagWithoutTimestamp.Validate(), ErrReadAtMismatch)

	timestampWithoutFlag := &Notification{UserID: uuid.New(), ReadAt: &now}
	assert.ErrorIs(t, timestampWithoutFlag.Validate(), ErrReadAtMismatch)

	noOwner := &Notification{IsRead: true, ReadAt: &now}
	assert.ErrorIs(t, noOwner.Validate(), ErrMissingOwner)

	negative := &Notification{UserID: uuid.New(), Version: -1}
	assert.ErrorIs(t, negative.Validate(), ErrNegativeVersion)
}

func TestNotificationWasPushedTo(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	n := &Notification{PushSentTo: []uuid.UUID{a}}

	assert.True(t, n.WasPushedTo(a))
	assert.False(t, n.WasPushedTo(b))
}

func TestDeviceReadStateValidate(t *testing.T) {
	now := time.Now()

	read := &DeviceReadState{IsRead: true, ReadAt: &now}
	require.NoError(t, read.Validate())

	inconsistent := &DeviceReadState{IsRead: true}
	assert.ErrorIs(t, inconsistent.Validate(), ErrReadAtMismatch)
}

func TestDevicePushable(t *testing.T) {
	token := "tok"
	empty := ""

	assert.True(t, (&Device{PushToken: &token}).Pushable())
	assert.False(t, (&Device{PushToken: &empty}).Pushable())
	assert.False(t, (&Device{}).Pushable())
}

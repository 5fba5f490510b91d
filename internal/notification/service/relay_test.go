package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/encore/internal/clock"
	"github.com/smallbiznis/encore/internal/config"
	notificationdomain "github.com/smallbiznis/encore/internal/notification/domain"
	"github.com/smallbiznis/encore/internal/notification/repository"
	"github.com/smallbiznis/encore/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePublisher struct {
	published []notificationdomain.OutboxMessage
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, msgs []notificationdomain.OutboxMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msgs...)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func TestRelayPublishesPendingOutbox(t *testing.T) {
	db := testutil.OpenDB(t)
	d := newDispatcher(t, db, 4, &recordingEmail{})
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Deliver(context.Background(), notificationdomain.Notice{UserID: userID(1), Message: "m"}))
	}

	pub := &fakePublisher{}
	relay := NewRelay(RelayParams{
		Cfg:       config.Config{Notification: config.NotificationConfig{RelayBatch: 2}},
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     clock.NewFakeClock(time.Date(2025, 5, 1, 12, 0, 1, 0, time.UTC)),
		Repo:      repository.Provide(),
		Publisher: pub,
	})

	n, err := relay.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = relay.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = relay.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Len(t, pub.published, 3)
	assert.Contains(t, pub.published[0].Payload, `"message":"m"`)
	assert.Equal(t, int64(0), testutil.Count(t, db, "SELECT COUNT(*) FROM notification_outbox WHERE processed_at IS NULL"))
}

func TestRelayLeavesRowsPendingOnPublishFailure(t *testing.T) {
	db := testutil.OpenDB(t)
	d := newDispatcher(t, db, 4, &recordingEmail{})
	require.NoError(t, d.Deliver(context.Background(), notificationdomain.Notice{UserID: userID(1), Message: "m"}))

	relay := NewRelay(RelayParams{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     clock.SystemClock{},
		Repo:      repository.Provide(),
		Publisher: &fakePublisher{err: errors.New("broker unavailable")},
	})

	_, err := relay.ProcessPending(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int64(1), testutil.Count(t, db, "SELECT COUNT(*) FROM notification_outbox WHERE processed_at IS NULL"))
}

func TestRelayDisabledWithoutPublisher(t *testing.T) {
	relay := NewRelay(RelayParams{Log: zap.NewNop()})
	assert.False(t, relay.Enabled())
	n, err := relay.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, relay.Close())
}

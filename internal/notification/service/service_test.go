package service

import (
	"context"
	"testing"

	"github.com/smallbiznis/encore/internal/config"
	"github.com/smallbiznis/encore/internal/identity"
	notificationdomain "github.com/smallbiznis/encore/internal/notification/domain"
	"github.com/smallbiznis/encore/internal/notification/repository"
	"github.com/smallbiznis/encore/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestListAndMarkRead(t *testing.T) {
	db := testutil.OpenDB(t)
	d := newDispatcher(t, db, 4, &recordingEmail{})
	ctx := context.Background()

	require.NoError(t, d.Deliver(ctx, notificationdomain.Notice{UserID: userID(10), Message: "for member"}))
	require.NoError(t, d.Deliver(ctx, notificationdomain.Notice{UserID: userID(11), Message: "for someone else"}))
	require.NoError(t, d.Deliver(ctx, notificationdomain.Notice{Role: "finance", Message: "for finance"}))

	svc := NewService(Params{
		Cfg:  config.Config{Notification: config.NotificationConfig{FinanceRole: "finance"}},
		DB:   db,
		Log:  zap.NewNop(),
		Repo: repository.Provide(),
	})

	memberCtx := identity.WithUser(ctx, identity.User{ID: 10, Role: "member"})
	rows, err := svc.List(memberCtx, notificationdomain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "for member", rows[0].Message)

	financeCtx := identity.WithUser(ctx, identity.User{ID: 20, Role: "finance"})
	rows, err = svc.List(financeCtx, notificationdomain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "for finance", rows[0].Message)

	// Members cannot touch the finance inbox.
	err = svc.MarkRead(memberCtx, rows[0].ID)
	assert.ErrorIs(t, err, notificationdomain.ErrNotFound)

	require.NoError(t, svc.MarkRead(financeCtx, rows[0].ID))
	rows, err = svc.List(financeCtx, notificationdomain.ListRequest{UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = svc.List(ctx, notificationdomain.ListRequest{})
	assert.ErrorIs(t, err, notificationdomain.ErrUnauthenticated)
}

func TestListFinanceInboxWithUnsetRole(t *testing.T) {
	db := testutil.OpenDB(t)
	d := newDispatcher(t, db, 4, &recordingEmail{})
	ctx := context.Background()
	require.NoError(t, d.Deliver(ctx, notificationdomain.Notice{Role: identity.RoleFinance, Message: "payment submitted"}))

	for _, role := range []string{"", " finance "} {
		svc := NewService(Params{
			Cfg:  config.Config{Notification: config.NotificationConfig{FinanceRole: role}},
			DB:   db,
			Log:  zap.NewNop(),
			Repo: repository.Provide(),
		})
		rows, err := svc.List(identity.WithUser(ctx, identity.User{ID: 20, Role: identity.RoleFinance}), notificationdomain.ListRequest{})
		require.NoError(t, err)
		require.Len(t, rows, 1, "finance role %q", role)
		assert.Equal(t, "payment submitted", rows[0].Message)
	}
}

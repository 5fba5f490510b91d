package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/encore/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func as(role string) context.Context {
	return identity.WithUser(context.Background(), identity.User{ID: 9, Role: role})
}

func TestRoleHierarchy(t *testing.T) {
	svc := newTestService(t)

	cases := []struct {
		role    string
		object  string
		action  string
		allowed bool
	}{
		{identity.RoleMember, ObjectPayment, ActionCreate, true},
		{identity.RoleMember, ObjectRefund, ActionCreate, true},
		{identity.RoleMember, ObjectNotification, ActionView, true},
		{identity.RoleMember, ObjectBudget, ActionCreate, false},
		{identity.RoleMember, ObjectPayment, ActionUpdate, false},
		{identity.RoleMember, ObjectAnomaly, ActionView, false},
		{identity.RoleFinance, ObjectPayment, ActionCreate, true},
		{identity.RoleFinance, ObjectBudget, ActionCreate, true},
		{identity.RoleFinance, ObjectInvoice, ActionUpdate, true},
		{identity.RoleFinance, ObjectRefund, ActionDelete, true},
		{identity.RoleFinance, ObjectAnomaly, ActionView, true},
		{identity.RoleFinance, ObjectAuditLog, ActionView, false},
		{identity.RoleAdmin, ObjectTransaction, ActionView, true},
		{identity.RoleAdmin, ObjectAuditLog, ActionView, true},
		{identity.RoleAdmin, ObjectNotification, ActionUpdate, true},
	}
	for _, tc := range cases {
		err := svc.Authorize(as(tc.role), tc.object, tc.action)
		if tc.allowed {
			assert.NoError(t, err, "%s %s.%s", tc.role, tc.object, tc.action)
		} else {
			assert.ErrorIs(t, err, ErrForbidden, "%s %s.%s", tc.role, tc.object, tc.action)
		}
	}
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc := newTestService(t)

	assert.ErrorIs(t, svc.Authorize(context.Background(), ObjectPayment, ActionCreate), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(as(identity.RoleAdmin), " ", ActionCreate), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(as(identity.RoleAdmin), ObjectPayment, ""), ErrInvalidAction)
}

func TestUnknownRoleIsMember(t *testing.T) {
	svc := newTestService(t)

	assert.NoError(t, svc.Authorize(as("superuser"), ObjectPayment, ActionCreate))
	assert.ErrorIs(t, svc.Authorize(as("superuser"), ObjectBudget, ActionCreate), ErrForbidden)
}

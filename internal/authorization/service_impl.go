package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/encore/internal/audit/domain"
	"github.com/smallbiznis/encore/internal/identity"
	"github.com/smallbiznis/encore/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed model.conf
var modelText string

const (
	ObjectPayment      = "payment"
	ObjectBudget       = "budget"
	ObjectInvoice      = "invoice"
	ObjectRefund       = "refund"
	ObjectTransaction  = "transaction"
	ObjectAnomaly      = "anomaly"
	ObjectNotification = "notification"
	ObjectAuditLog     = "audit_log"
)

const (
	ActionCreate  = "create"
	ActionView    = "view"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionReceipt = "receipt"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

// NewEnforcer persists policies in casbin_rule through the gorm adapter.
func NewEnforcer(adapter *gormadapter.Adapter) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	return seeded(enforcer)
}

// NewMemoryEnforcer holds the seeded policy in memory only.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	return seeded(enforcer)
}

func seeded(enforcer *casbin.SyncedEnforcer) (*casbin.SyncedEnforcer, error) {
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, object string, action string) error {
	user, ok := identity.UserFromContext(ctx)
	if !ok {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(roleSubject(user.Role), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		logger.WithContext(ctx, s.log).Info("access denied",
			zap.String("role", user.Role),
			zap.String("object", object),
			zap.String("action", action),
		)
		s.auditDenied(ctx, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) auditDenied(ctx context.Context, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.Record(ctx, "authorization.denied", "authorization", object, map[string]any{
		"object": object,
		"action": action,
	})
}

func roleSubject(role string) string {
	return "role:" + identity.NormalizeRole(role)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Member permissions
		{"role:member", ObjectPayment, ActionCreate},
		{"role:member", ObjectPayment, ActionReceipt},
		{"role:member", ObjectRefund, ActionCreate},
		{"role:member", ObjectNotification, ActionView},
		{"role:member", ObjectNotification, ActionUpdate},

		// Finance permissions
		{"role:finance", ObjectBudget, ActionCreate},
		{"role:finance", ObjectTransaction, ActionView},
		{"role:finance", ObjectAnomaly, ActionView},

		// Admin permissions
		{"role:admin", ObjectAuditLog, ActionView},
	}
	for _, object := range []string{ObjectPayment, ObjectBudget, ObjectInvoice, ObjectRefund} {
		for _, action := range []string{ActionView, ActionUpdate, ActionDelete} {
			policies = append(policies, []string{"role:finance", object, action})
		}
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	// admin > finance > member
	for _, link := range [][]string{
		{"role:finance", "role:member"},
		{"role:admin", "role:finance"},
	} {
		if _, err := enforcer.AddGroupingPolicy(link); err != nil {
			return err
		}
	}
	return nil
}

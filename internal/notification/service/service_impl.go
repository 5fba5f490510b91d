package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/encore/internal/config"
	"github.com/smallbiznis/encore/internal/identity"
	notificationdomain "github.com/smallbiznis/encore/internal/notification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultListLimit = 50

type Params struct {
	fx.In

	Cfg  config.Config
	DB   *gorm.DB
	Log  *zap.Logger
	Repo notificationdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	repo        notificationdomain.Repository
	financeRole string
}

func NewService(p Params) notificationdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("notification.service"),
		repo:        p.Repo,
		financeRole: p.Cfg.Notification.BroadcastRole(),
	}
}

func (s *Service) List(ctx context.Context, req notificationdomain.ListRequest) ([]notificationdomain.Notification, error) {
	user, ok := identity.UserFromContext(ctx)
	if !ok {
		return nil, notificationdomain.ErrUnauthenticated
	}
	limit := req.Limit
	if limit <= 0 || limit > 250 {
		limit = defaultListLimit
	}
	rows, err := s.repo.ListForRecipient(ctx, s.db, user.ID, s.rolesOf(user), req.UnreadOnly, limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []notificationdomain.Notification{}
	}
	return rows, nil
}

func (s *Service) MarkRead(ctx context.Context, id snowflake.ID) error {
	user, ok := identity.UserFromContext(ctx)
	if !ok {
		return notificationdomain.ErrUnauthenticated
	}
	updated, err := s.repo.MarkRead(ctx, s.db, id, user.ID, s.rolesOf(user))
	if err != nil {
		return err
	}
	if !updated {
		return notificationdomain.ErrNotFound
	}
	return nil
}

// rolesOf lists the role-addressed inboxes the user can read. Admins read the finance inbox.
func (s *Service) rolesOf(user identity.User) []string {
	switch user.Role {
	case identity.RoleAdmin:
		return []string{identity.RoleAdmin, s.financeRole}
	case identity.RoleFinance:
		return []string{s.financeRole}
	default:
		return nil
	}
}

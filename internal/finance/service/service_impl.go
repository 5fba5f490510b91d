package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	attachmentdomain "github.com/smallbiznis/encore/internal/attachment/domain"
	auditdomain "github.com/smallbiznis/encore/internal/audit/domain"
	"github.com/smallbiznis/encore/internal/clock"
	"github.com/smallbiznis/encore/internal/config"
	eventdomain "github.com/smallbiznis/encore/internal/event/domain"
	financedomain "github.com/smallbiznis/encore/internal/finance/domain"
	"github.com/smallbiznis/encore/internal/identity"
	ledgerdomain "github.com/smallbiznis/encore/internal/ledger/domain"
	notificationdomain "github.com/smallbiznis/encore/internal/notification/domain"
	"github.com/smallbiznis/encore/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/encore/internal/observability/metrics"
	"github.com/smallbiznis/encore/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Cfg         config.Config
	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        financedomain.Repository
	Ledger      ledgerdomain.Service
	Events      eventdomain.Repository
	Attachments attachmentdomain.Store
	Notifier    notificationdomain.Notifier
	Audit       auditdomain.Service  `optional:"true"`
	Locker      financedomain.Locker `optional:"true"`
	Metrics     *obsmetrics.Metrics  `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        financedomain.Repository
	ledger      ledgerdomain.Service
	events      eventdomain.Repository
	attachments attachmentdomain.Store
	notifier    notificationdomain.Notifier
	audit       auditdomain.Service
	locker      financedomain.Locker
	metrics     *obsmetrics.Metrics
	financeRole string
}

func NewService(p Params) financedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("finance.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		ledger:      p.Ledger,
		events:      p.Events,
		attachments: p.Attachments,
		notifier:    p.Notifier,
		audit:       p.Audit,
		locker:      p.Locker,
		metrics:     p.Metrics,
		financeRole: p.Cfg.Notification.BroadcastRole(),
	}
}

func (s *Service) actor(ctx context.Context, op string) (identity.User, error) {
	user, ok := identity.UserFromContext(ctx)
	if !ok {
		return identity.User{}, financedomain.Validation(op, "acting user is required", financedomain.ErrMissingActor)
	}
	return user, nil
}

// storeAttachment runs before any database write. A nil file stores nothing.
func (s *Service) storeAttachment(ctx context.Context, op string, file *attachmentdomain.File, folder string) (*attachmentdomain.Stored, error) {
	if file == nil {
		return nil, nil
	}
	stored, err := s.attachments.Store(ctx, *file, folder)
	if err != nil {
		if errors.Is(err, attachmentdomain.ErrEmptyFile) {
			return nil, financedomain.Validation(op, "attachment is empty", err)
		}
		logger.WithContext(ctx, s.log).Error("attachment storage failed", zap.String("op", op), zap.Error(err))
		return nil, financedomain.Dependency(op, "failed to store attachment", financedomain.ErrAttachmentFailed)
	}
	return &stored, nil
}

func (s *Service) withLock(ctx context.Context, recordType financedomain.RecordType, id snowflake.ID, fn func() error) error {
	if s.locker == nil {
		return fn()
	}
	return s.locker.WithLock(ctx, fmt.Sprintf("finance:%s:%s", recordType, id), fn)
}

// fail passes typed errors through and hides everything else behind an internal error.
func (s *Service) fail(ctx context.Context, op string, err error) error {
	var ferr *financedomain.Error
	if errors.As(err, &ferr) {
		return err
	}
	if errors.Is(err, ratelimit.ErrLockBusy) {
		return financedomain.InvalidState(op, "record is being updated", financedomain.ErrRecordBusy)
	}
	logger.WithContext(ctx, s.log).Error("finance operation failed", zap.String("op", op), zap.Error(err))
	return financedomain.Internal(op, "failed to process request", financedomain.ErrProcessingFailed)
}

func (s *Service) notify(ctx context.Context, n notificationdomain.Notice) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, n)
}

func (s *Service) notifyFinance(ctx context.Context, message string, n notificationdomain.Notice) {
	n.Role = s.financeRole
	n.Message = message
	if n.Type == "" {
		n.Type = notificationdomain.TypeInfo
	}
	s.notify(ctx, n)
}

func (s *Service) notifyOwner(ctx context.Context, ownerID snowflake.ID, subject, message string, kind notificationdomain.Type, n notificationdomain.Notice) {
	id := ownerID
	n.UserID = &id
	n.Subject = subject
	n.Message = message
	n.Type = kind
	if owner, err := s.repo.FindOwner(ctx, s.db, ownerID); err == nil && owner != nil {
		n.Email = owner.Email
		n.Name = owner.FullName
	}
	s.notify(ctx, n)
}

func (s *Service) recordAudit(ctx context.Context, action string, recordType financedomain.RecordType, id snowflake.ID, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	// Record logs its own failures.
	_ = s.audit.Record(ctx, action, string(recordType), id.String(), metadata)
}

func idPtr(id snowflake.ID) *snowflake.ID {
	return &id
}

func strPtr(v string) *string {
	return &v
}

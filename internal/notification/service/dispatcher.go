package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/encore/internal/clock"
	"github.com/smallbiznis/encore/internal/config"
	notificationdomain "github.com/smallbiznis/encore/internal/notification/domain"
	"github.com/smallbiznis/encore/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/encore/internal/observability/metrics"
	"github.com/smallbiznis/encore/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const deliveryTimeout = 10 * time.Second

type DispatcherParams struct {
	fx.In

	Cfg     config.Config
	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    notificationdomain.Repository
	Email   email.Provider      `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type envelope struct {
	ctx    context.Context
	notice notificationdomain.Notice
}

// Dispatcher is the asynchronous notification boundary. Notify only enqueues; workers persist
// the notification with its outbox row and send email when the recipient has an address.
type Dispatcher struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    notificationdomain.Repository
	email   email.Provider
	metrics *obsmetrics.Metrics

	queue   chan envelope
	workers int
	done    chan struct{}
	stopped atomic.Bool
	wg      sync.WaitGroup
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	size := p.Cfg.Notification.QueueSize
	if size <= 0 {
		size = 256
	}
	workers := p.Cfg.Notification.Workers
	if workers <= 0 {
		workers = 1
	}
	provider := p.Email
	if provider == nil {
		provider = &email.NoOpProvider{}
	}
	return &Dispatcher{
		db:      p.DB,
		log:     p.Log.Named("notification.dispatcher"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		email:   provider,
		metrics: p.Metrics,
		queue:   make(chan envelope, size),
		workers: workers,
		done:    make(chan struct{}),
	}
}

// Notify enqueues n. A full queue or a stopped dispatcher drops it.
func (d *Dispatcher) Notify(ctx context.Context, n notificationdomain.Notice) {
	if d.stopped.Load() {
		d.drop(ctx, n, "stopped")
		return
	}
	select {
	case d.queue <- envelope{ctx: context.WithoutCancel(ctx), notice: n}:
	default:
		d.drop(ctx, n, "queue_full")
	}
}

func (d *Dispatcher) drop(ctx context.Context, n notificationdomain.Notice, reason string) {
	d.metrics.RecordNotificationDropped(ctx, reason)
	logger.WithContext(ctx, d.log).Warn("notification dropped",
		zap.String("reason", reason),
		zap.String("type", string(n.Type)),
	)
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	d.log.Info("notification dispatcher started", zap.Int("workers", d.workers), zap.Int("queue_size", cap(d.queue)))
}

// Stop refuses new notices, drains what is queued and waits for workers or ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.stopped.Swap(true) {
		return nil
	}
	close(d.done)

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case env := <-d.queue:
			d.handle(env)
		case <-d.done:
			for {
				select {
				case env := <-d.queue:
					d.handle(env)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) handle(env envelope) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("notification worker panic", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(env.ctx, deliveryTimeout)
	defer cancel()

	if err := d.Deliver(ctx, env.notice); err != nil {
		d.metrics.RecordNotificationDropped(ctx, "delivery_failed")
		logger.WithContext(ctx, d.log).Warn("notification delivery failed", zap.Error(err))
		return
	}
	d.metrics.RecordNotificationDelivered(ctx, string(env.notice.Type))
}

type outboxPayload struct {
	NotificationID string  `json:"notificationId"`
	UserID         *string `json:"userId,omitempty"`
	Role           *string `json:"role,omitempty"`
	Message        string  `json:"message"`
	Type           string  `json:"type"`
	InvoiceID      *string `json:"invoiceId,omitempty"`
	PaymentID      *string `json:"paymentId,omitempty"`
	RefundID       *string `json:"refundId,omitempty"`
	CreatedAt      string  `json:"createdAt"`
}

// Deliver persists n synchronously. Email failures are logged and do not fail delivery.
func (d *Dispatcher) Deliver(ctx context.Context, n notificationdomain.Notice) error {
	message := strings.TrimSpace(n.Message)
	if message == "" {
		return notificationdomain.ErrEmptyMessage
	}
	role := strings.TrimSpace(n.Role)
	if n.UserID == nil && role == "" {
		return notificationdomain.ErrNoRecipient
	}
	if !n.Type.Valid() {
		n.Type = notificationdomain.TypeInfo
	}

	now := d.clock.Now()
	row := &notificationdomain.Notification{
		ID:        d.genID.Generate(),
		UserID:    n.UserID,
		Message:   message,
		Type:      n.Type,
		InvoiceID: n.InvoiceID,
		PaymentID: n.PaymentID,
		RefundID:  n.RefundID,
		CreatedAt: now,
	}
	if n.UserID == nil {
		row.Role = &role
	}

	payload, err := json.Marshal(outboxPayload{
		NotificationID: row.ID.String(),
		UserID:         idString(row.UserID),
		Role:           row.Role,
		Message:        row.Message,
		Type:           string(row.Type),
		InvoiceID:      idString(row.InvoiceID),
		PaymentID:      idString(row.PaymentID),
		RefundID:       idString(row.RefundID),
		CreatedAt:      now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}

	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := d.repo.Insert(ctx, tx, row); err != nil {
			return err
		}
		return d.repo.InsertOutbox(ctx, tx, &notificationdomain.OutboxMessage{
			ID:             d.genID.Generate(),
			NotificationID: row.ID,
			Payload:        string(payload),
			CreatedAt:      now,
		})
	})
	if err != nil {
		return err
	}

	if addr := strings.TrimSpace(n.Email); addr != "" {
		subject := n.Subject
		if subject == "" {
			subject = "Finance update"
		}
		if err := d.email.SendTemplate(ctx, []string{addr}, "finance_notice", map[string]any{
			"subject": subject,
			"name":    n.Name,
			"message": message,
		}); err != nil {
			d.log.Warn("notification email failed", zap.Error(err))
		}
	}
	return nil
}

func idString(id *snowflake.ID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

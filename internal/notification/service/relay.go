package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/encore/internal/clock"
	"github.com/smallbiznis/encore/internal/config"
	notificationdomain "github.com/smallbiznis/encore/internal/notification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RelayParams struct {
	fx.In

	Cfg       config.Config
	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Repo      notificationdomain.Repository
	Publisher notificationdomain.Publisher `optional:"true"`
}

// Relay moves committed outbox rows to the broker and stamps them processed.
type Relay struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      notificationdomain.Repository
	publisher notificationdomain.Publisher
	interval  time.Duration
	batch     int
}

func NewRelay(p RelayParams) *Relay {
	interval := p.Cfg.Notification.RelayInterval
	if interval <= 0 {
		interval = time.Second
	}
	batch := p.Cfg.Notification.RelayBatch
	if batch <= 0 {
		batch = 100
	}
	return &Relay{
		db:        p.DB,
		log:       p.Log.Named("notification.relay"),
		clock:     p.Clock,
		repo:      p.Repo,
		publisher: p.Publisher,
		interval:  interval,
		batch:     batch,
	}
}

func (r *Relay) Enabled() bool {
	return r.publisher != nil
}

// ProcessPending publishes one batch inside a transaction so a failed publish leaves the rows pending.
func (r *Relay) ProcessPending(ctx context.Context) (int, error) {
	if r.publisher == nil {
		return 0, nil
	}
	var processed int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msgs, err := r.repo.LockPendingOutbox(ctx, tx, r.batch)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		if err := r.publisher.Publish(ctx, msgs); err != nil {
			return err
		}
		ids := make([]snowflake.ID, 0, len(msgs))
		for _, msg := range msgs {
			ids = append(ids, msg.ID)
		}
		if err := r.repo.MarkOutboxProcessed(ctx, tx, ids, r.clock.Now()); err != nil {
			return err
		}
		processed = len(msgs)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return processed, nil
}

func (r *Relay) Close() error {
	if r.publisher == nil {
		return nil
	}
	return r.publisher.Close()
}

func (r *Relay) RunForever(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.ProcessPending(ctx)
			if err != nil {
				r.log.Error("outbox relay failed", zap.Error(err))
				continue
			}
			if n > 0 {
				r.log.Debug("outbox messages published", zap.Int("count", n))
			}
		}
	}
}

package notification

import (
	"context"

	"github.com/smallbiznis/encore/internal/config"
	"github.com/smallbiznis/encore/internal/notification/domain"
	"github.com/smallbiznis/encore/internal/notification/kafka"
	"github.com/smallbiznis/encore/internal/notification/repository"
	"github.com/smallbiznis/encore/internal/notification/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(service.NewDispatcher),
	fx.Provide(func(d *service.Dispatcher) domain.Notifier { return d }),
	fx.Provide(providePublisher),
	fx.Provide(service.NewRelay),
	fx.Invoke(runDispatcher),
	fx.Invoke(runRelay),
)

// providePublisher yields nil when no brokers are configured, which leaves the relay idle.
func providePublisher(cfg config.Config, log *zap.Logger) domain.Publisher {
	if !cfg.KafkaEnabled() {
		log.Info("kafka brokers not configured, notification outbox relay disabled")
		return nil
	}
	return kafka.NewPublisher(cfg.Kafka)
}

func runDispatcher(lc fx.Lifecycle, d *service.Dispatcher) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			d.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return d.Stop(ctx)
		},
	})
}

func runRelay(lc fx.Lifecycle, relay *service.Relay) {
	if !relay.Enabled() {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				relay.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
			return relay.Close()
		},
	})
}

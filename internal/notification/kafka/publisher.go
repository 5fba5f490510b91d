package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"github.com/smallbiznis/encore/internal/config"
	notificationdomain "github.com/smallbiznis/encore/internal/notification/domain"
)

// Publisher writes outbox payloads to a topic keyed by notification id.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(cfg config.KafkaConfig) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, msgs []notificationdomain.OutboxMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]kafka.Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, kafka.Message{
			Key:   []byte(msg.NotificationID.String()),
			Value: []byte(msg.Payload),
			Time:  msg.CreatedAt,
		})
	}
	return p.writer.WriteMessages(ctx, out...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/roboricindustries/raycon-micbridge/pkg/schemas/common"
)

type Publisher interface {
	Publish(ctx context.Context, key string, msg common.Envelope) error
	Close() error
}

type rmqPublisher struct {
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger

	mu sync.Mutex
	ch *amqp091.Channel // reused until it closes
}

// NewPublisher declares exchange as a durable topic exchange on conn and
// returns a Publisher that owns conn.
func NewPublisher(conn *amqp091.Connection, exchange string, logger *slog.Logger) (Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(
		exchange, "topic", true, false, false, false, nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	return &rmqPublisher{
		conn:     conn,
		exchange: exchange,
		log:      logger.With("op", "pubsub.publish"),
	}, nil
}

func (r *rmqPublisher) Publish(ctx context.Context, key string, msg common.Envelope) error {
	if msg.Meta.ID == "" {
		msg.Meta.ID = uuid.NewString()
	}
	if msg.Meta.Time.IsZero() {
		msg.Meta.Time = time.Now().UTC()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, err := r.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx, r.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Transient,
			MessageId:     msg.Meta.ID,
			CorrelationId: msg.Meta.CorrelationOrID(),
			Type:          msg.Meta.Type,
			Timestamp:     msg.Meta.Time,
			Body:          body,
		},
	)
	if err != nil {
		_ = ch.Close()
		r.ch = nil
		return fmt.Errorf("publish %s: %w", key, err)
	}
	r.log.Debug("published", slog.String("key", key), slog.String("exchange", r.exchange))
	return nil
}

// channel returns the shared channel, reopening it after a failure.
// Callers hold r.mu.
func (r *rmqPublisher) channel() (*amqp091.Channel, error) {
	if r.ch != nil && !r.ch.IsClosed() {
		return r.ch, nil
	}
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	r.ch = ch
	return ch, nil
}

func (r *rmqPublisher) Close() error {
	r.mu.Lock()
	if r.ch != nil {
		_ = r.ch.Close()
		r.ch = nil
	}
	r.mu.Unlock()
	return r.conn.Close()
}

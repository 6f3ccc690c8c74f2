package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// Publisher emits chat events to a topic exchange.
type Publisher interface {
	PublishMessageCreated(ctx context.Context, ev MessageCreated) error
	Close() error
}

const producerName = "chatkit-devd"

type rmqPublisher struct {
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger
}

// NewPublisher dials the broker and declares the topic exchange.
func NewPublisher(url, exchange string, log *slog.Logger) (Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: declare exchange: %w", err)
	}

	return &rmqPublisher{conn: conn, exchange: exchange, log: log}, nil
}

func (p *rmqPublisher) PublishMessageCreated(ctx context.Context, ev MessageCreated) error {
	env := Envelope[MessageCreated]{
		Meta: Meta{
			ID:       uuid.NewString(),
			Producer: producerName,
			Time:     time.Now().UTC(),
			Type:     KeyMessageCreated,
		},
		Data: ev,
	}
	return p.publish(ctx, KeyMessageCreated, env)
}

func (p *rmqPublisher) publish(ctx context.Context, key string, env Envelope[MessageCreated]) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("events: open channel: %w", err)
	}
	defer ch.Close()

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}

	err = ch.PublishWithContext(
		ctx, p.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    env.Meta.ID,
			Timestamp:    env.Meta.Time,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", key, err)
	}
	p.log.Debug("event published", "key", key, "exchange", p.exchange)
	return nil
}

func (p *rmqPublisher) Close() error {
	return p.conn.Close()
}

// NopPublisher discards all events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishMessageCreated(context.Context, MessageCreated) error { return nil }

func (NopPublisher) Close() error { return nil }

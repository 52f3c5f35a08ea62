package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type rabbitPublisher struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
	logger   zerolog.Logger

	mu sync.Mutex
}

// NewRabbitPublisher dials the broker and declares a durable topic exchange.
func NewRabbitPublisher(amqpURL, exchange string, logger zerolog.Logger) (Publisher, error) {
	logger = logger.With().Str("component", "event-publisher").Logger()

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.Info().Str("exchange", exchange).Msg("event publisher connected")

	p := newRabbitPublisher(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

func newRabbitPublisher(ch channel, exchange string, logger zerolog.Logger) *rabbitPublisher {
	return &rabbitPublisher{channel: ch, exchange: exchange, logger: logger}
}

func (p *rabbitPublisher) Publish(ctx context.Context, routingKey string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := uuid.NewString()
	body, err := json.Marshal(Message{Pattern: routingKey, Data: data, ID: id})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	p.mu.Lock()
	err = p.channel.Publish(p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Body:         body,
	})
	p.mu.Unlock()
	if err != nil {
		p.logger.Error().Err(err).Str("routing_key", routingKey).Msg("failed to publish event")
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug().
		Str("routing_key", routingKey).
		Str("message_id", id).
		Msg("event published")
	return nil
}

func (p *rabbitPublisher) Close() error {
	var firstErr error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

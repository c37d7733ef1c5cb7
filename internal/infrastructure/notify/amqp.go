// Package notify delivers threshold notification requests to the external
// notification collaborator over RabbitMQ.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/agentrun/billing-engine/internal/core/domain"
)

const (
	exchangeName = "billing_notifications"
	contentType  = "application/json"
)

// AMQPPublisher publishes notification requests to a durable topic exchange.
// Routing key: credits.<type>, e.g. credits.credits_exhausted.
type AMQPPublisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	log     zerolog.Logger
}

// NewAMQPPublisher dials RabbitMQ, opens a channel, and declares the
// notification exchange.
func NewAMQPPublisher(url string, log zerolog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp091.DialConfig(url, amqp091.Config{
		Dial: amqp091.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := declareExchange(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp exchange: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: ch, log: log}, nil
}

// Publish sends one notification request. On a channel-level failure it
// reopens the channel and retries once before giving up.
func (p *AMQPPublisher) Publish(ctx context.Context, req domain.NotificationRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := amqp091.Publishing{
		ContentType:   contentType,
		Timestamp:     time.Now().UTC(),
		CorrelationId: req.Correlation,
		Body:          body,
	}
	routingKey := "credits." + string(req.Type)

	err = p.channel.PublishWithContext(ctx, exchangeName, routingKey, false, false, msg)
	if err == nil {
		return nil
	}
	p.log.Warn().Err(err).Str("routing_key", routingKey).Msg("publish failed, reopening channel")

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("reopen channel: %w", err)
	}
	p.channel = ch
	if err := declareExchange(ch); err != nil {
		return fmt.Errorf("redeclare exchange: %w", err)
	}
	if err := p.channel.PublishWithContext(ctx, exchangeName, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func declareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
}

// NopPublisher drops every request. Used when the broker is unreachable at
// startup so billing keeps working without alerts.
type NopPublisher struct {
	log zerolog.Logger
}

func NewNopPublisher(log zerolog.Logger) *NopPublisher {
	return &NopPublisher{log: log}
}

func (p *NopPublisher) Publish(_ context.Context, req domain.NotificationRequest) error {
	p.log.Warn().
		Str("user_id", req.UserID).
		Str("type", string(req.Type)).
		Msg("notification dropped: publisher in no-op mode")
	return nil
}

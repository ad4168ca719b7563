package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medflow/medflow-warehouse/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// maxDeliveries bounds the attempts of a failing message before it is
	// dead-lettered.
	maxDeliveries = 3

	attemptHeader = "x-attempt"
)

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

// Consumer dispatches events from one queue to handlers keyed by event type.
type Consumer struct {
	rmq       *RabbitMQ
	queueName string
	handlers  map[string]MessageHandler
	logger    *logger.Logger

	// retry puts a failed message back on the queue with its attempt count.
	retry func(ctx context.Context, msg amqp.Publishing) error
}

// NewConsumer declares the queue and returns a consumer for it.
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if _, err := rmq.DeclareQueue(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	c := &Consumer{
		rmq:       rmq,
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		logger:    log.WithComponent("consumer"),
	}
	c.retry = func(ctx context.Context, msg amqp.Publishing) error {
		return rmq.Channel().PublishWithContext(ctx, "", queueName, false, false, msg)
	}
	return c, nil
}

// Subscribe binds the queue to a topic exchange.
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("queue", c.queueName).
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")
	return nil
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start consumes until ctx is done or the channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.rmq.Channel().Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn().Str("queue", c.queueName).Msg("message channel closed")
					return
				}
				c.handleMessage(ctx, msg)
			}
		}
	}()
	return nil
}

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error().Err(err).Str("queue", c.queueName).Msg("dropping malformed event")
		_ = msg.Reject(false)
		return
	}

	handler, ok := c.handlers[event.Type]
	if !ok {
		_ = msg.Ack(false)
		return
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)
	err := handler(ctx, &event)
	if err == nil {
		_ = msg.Ack(false)
		return
	}

	attempt := deliveryAttempt(msg) + 1
	log := c.logger.Error().
		Err(err).
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Int("attempt", attempt)

	if attempt >= maxDeliveries {
		log.Msg("event failed on its last attempt, dead-lettering")
		_ = msg.Reject(false)
		return
	}
	log.Msg("event failed, scheduling retry")

	if c.retry == nil {
		_ = msg.Nack(false, true)
		return
	}
	if err := c.retry(ctx, retryPublishing(msg, attempt)); err != nil {
		c.logger.Warn().Err(err).Str("event_id", event.ID).Msg("retry publish failed, requeueing")
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

func retryPublishing(msg amqp.Delivery, attempt int) amqp.Publishing {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[attemptHeader] = int32(attempt)

	return amqp.Publishing{
		Headers:       headers,
		ContentType:   msg.ContentType,
		DeliveryMode:  amqp.Persistent,
		CorrelationId: msg.CorrelationId,
		MessageId:     msg.MessageId,
		Timestamp:     msg.Timestamp,
		Body:          msg.Body,
	}
}

// deliveryAttempt returns how many times the message already failed, from
// our retry header or, for dead-lettered redeliveries, from x-death.
func deliveryAttempt(msg amqp.Delivery) int {
	switch n := msg.Headers[attemptHeader].(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	}

	deaths, _ := msg.Headers["x-death"].([]interface{})
	for _, death := range deaths {
		if d, ok := death.(amqp.Table); ok {
			if count, ok := d["count"].(int64); ok {
				return int(count)
			}
		}
	}
	return 0
}

package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"whatsapp-gateway/internal/domain"
	"whatsapp-gateway/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer implements ports.JobConsumer using RabbitMQ.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *slog.Logger
}

// NewConsumer dials RabbitMQ, declares topology, and returns a Consumer.
func NewConsumer(amqpURL string, log *slog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// One job at a time: the dispatcher already serialises provider calls
	// through the breaker, so prefetching would only grow redelivery churn.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	if err := declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, channel: ch, log: log}, nil
}

// Consume delivers each queued send job to handler. Transient handler
// failures are requeued; permanent ones (validation, authentication) are
// dead-lettered so a bad job cannot poison the queue. Blocks until ctx is
// cancelled.
func (c *Consumer) Consume(ctx context.Context, handler func(ctx context.Context, job ports.SendJob) error) error {
	deliveries, err := c.channel.Consume(
		queueName,
		"",    // auto-generated consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}

			var job ports.SendJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				c.log.Error("unmarshal send job", "err", err)
				d.Nack(false, false) // malformed payloads never become valid
				continue
			}

			if err := handler(ctx, job); err != nil {
				requeue := domain.IsRetryable(err)
				c.log.Error("send job failed",
					"to", job.To,
					"correlation_id", job.CorrelationID,
					"requeue", requeue,
					"err", err,
				)
				d.Nack(false, requeue)
				continue
			}

			d.Ack(false)
		}
	}
}

// Close cleanly shuts down the channel and connection.
func (c *Consumer) Close() {
	c.channel.Close()
	c.conn.Close()
}

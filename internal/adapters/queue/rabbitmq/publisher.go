package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"whatsapp-gateway/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

const exchangeName = "messaging"
const queueName = "messaging.send"
const routingKey = "messaging.send"

// Publisher implements ports.JobPublisher using RabbitMQ.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewPublisher dials RabbitMQ, declares the exchange and queue, and binds them.
func NewPublisher(amqpURL string) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, channel: ch}, nil
}

// Publish serialises a send job and hands it to the queue.
func (p *Publisher) Publish(ctx context.Context, job ports.SendJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal send job: %w", err)
	}

	return p.channel.PublishWithContext(
		ctx,
		exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			CorrelationId: job.CorrelationID,
			Body:          body,
		},
	)
}

// Close cleanly shuts down the channel and connection.
func (p *Publisher) Close() {
	p.channel.Close()
	p.conn.Close()
}

// declare idempotently sets up the exchange, queue, and binding.
func declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

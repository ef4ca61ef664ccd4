package rabbitmq

import (
	"fmt"
	"time"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Queues used by the notification pipeline. The dispatcher publishes to the
// broadcast queues; the in-process consumer drains them into the fan-out
// handlers. The multicast queue is what the external push delivery service
// consumes.
const (
	QueuePushBroadcast  = "notifications.push"
	QueueEmailBroadcast = "notifications.email"
	QueuePushMulticast  = "push.multicast"
)

// NotificationChannels are the platform-level channels declared idempotently
// at startup.
var NotificationChannels = []string{"default", "high_priority", "crud_operations"}

// Config holds RabbitMQ connection details.
type Config struct {
	URL string
}

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger
}

// NewClient connects to RabbitMQ, opens a channel and declares the pipeline
// queues upfront.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	client := &Client{conn: conn, channel: ch, logger: logger}

	for _, queue := range []string{QueuePushBroadcast, QueueEmailBroadcast, QueuePushMulticast} {
		if err := client.DeclareQueue(queue); err != nil {
			ch.Close()
			conn.Close()
			return nil, err
		}
	}

	logger.Info("RabbitMQ client connected, pipeline queues declared")
	return client, nil
}

// DeclareQueue declares a durable queue. Declaration is idempotent, so
// calling it for an existing queue is a no-op.
func (c *Client) DeclareQueue(name string) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	_, err := c.channel.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return nil
}

// Publish sends a persistent JSON message to the named queue via the default
// exchange.
func (c *Client) Publish(queue string, body []byte) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}

	err := c.channel.Publish(
		"",    // exchange: default
		queue, // routing key: the queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	return nil
}

// Consume drains the named queue, acknowledging messages the handler accepts
// and requeueing the ones it rejects.
func (c *Client) Consume(queue string, messageHandler func(msg amqp.Delivery) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		queue,
		"",    // consumer tag
		false, // auto-ack: manual acknowledgment
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer for %s: %w", queue, err)
	}

	go func() {
		for msg := range msgs {
			if err := messageHandler(msg); err != nil {
				c.logger.Warn("message handler failed",
					zap.String("queue", queue),
					zap.Uint64("delivery_tag", msg.DeliveryTag),
					zap.Error(err))
				if requeueErr := msg.Nack(false, true); requeueErr != nil {
					c.logger.Error("failed to nack message", zap.Error(requeueErr))
				}
				continue
			}
			if ackErr := msg.Ack(false); ackErr != nil {
				c.logger.Error("failed to ack message", zap.Error(ackErr))
			}
		}
	}()

	return nil
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during RabbitMQ client close: %v", errs)
	}
	return nil
}

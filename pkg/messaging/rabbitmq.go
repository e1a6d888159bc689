package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-scheduler/pkg/errors"
)

// Broker owns the AMQP connection and the channel shared by publisher and consumer.
type Broker struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *zap.Logger
}

// Dial connects to RabbitMQ and opens a channel.
func Dial(url string, logger *zap.Logger) (*Broker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &Broker{conn: conn, ch: ch, logger: logger}, nil
}

// Declare creates durable queues that survive broker restarts.
func (b *Broker) Declare(queues ...string) error {
	for _, name := range queues {
		if _, err := b.ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", name, err)
		}
	}
	return nil
}

// Deliveries starts consuming queue with manual acknowledgement.
func (b *Broker) Deliveries(queue string, prefetch int) (<-chan amqp.Delivery, error) {
	if prefetch > 0 {
		if err := b.ch.Qos(prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("set prefetch: %w", err)
		}
	}
	msgs, err := b.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	return msgs, nil
}

// Publisher returns a JSON publisher bound to queue.
func (b *Broker) Publisher(queue string) *Publisher {
	return NewPublisher(b.ch, queue, b.logger)
}

// Close shuts the channel and connection.
func (b *Broker) Close() error {
	if err := b.ch.Close(); err != nil {
		b.logger.Warn("close amqp channel", zap.Error(err))
	}
	return b.conn.Close()
}

// Channel is the publishing subset of *amqp.Channel.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends JSON messages to a single queue through the default exchange.
// amqp channels are not safe for concurrent publishing, so calls are serialised.
type Publisher struct {
	ch     Channel
	queue  string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewPublisher constructs a publisher.
func NewPublisher(ch Channel, queue string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{ch: ch, queue: queue, logger: logger}
}

// Publish marshals payload and sends it as a persistent message.
func (p *Publisher) Publish(ctx context.Context, messageType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", messageType, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         messageType,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	p.logger.Debug("message published", zap.String("queue", p.queue), zap.String("type", messageType), zap.String("message_id", msg.MessageId))
	return nil
}

// Handler processes one delivery body.
type Handler func(ctx context.Context, d amqp.Delivery) error

// Consume dispatches deliveries to handle until ctx is done or the channel closes.
// Successful messages are acked. Failures are nacked and requeued unless the error is fatal.
func Consume(ctx context.Context, deliveries <-chan amqp.Delivery, handle Handler, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				logger.Warn("delivery channel closed")
				return
			}
			err := handle(ctx, d)
			if err == nil {
				if ackErr := d.Ack(false); ackErr != nil {
					logger.Warn("ack failed", zap.Error(ackErr))
				}
				continue
			}
			requeue := !appErrors.IsFatal(err)
			logger.Error("message rejected",
				zap.String("message_id", d.MessageId),
				zap.Bool("requeue", requeue),
				zap.Error(err),
			)
			if nackErr := d.Nack(false, requeue); nackErr != nil {
				logger.Warn("nack failed", zap.Error(nackErr))
			}
		}
	}
}

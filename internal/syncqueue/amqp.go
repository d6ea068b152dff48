package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPQueue keeps mutations in a durable RabbitMQ queue bound to a direct
// exchange. Messages are persistent and acknowledged manually.
type AMQPQueue struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	logger       *zap.Logger

	publishMu sync.Mutex
}

func NewAMQPQueue(url, exchangeName, queueName string, logger *zap.Logger) (*AMQPQueue, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q := &AMQPQueue{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger,
	}
	if err := q.setup(); err != nil {
		q.Close()
		return nil, fmt.Errorf("failed to set up exchange and queue: %w", err)
	}
	return q, nil
}

func (q *AMQPQueue) setup() error {
	if err := q.channel.ExchangeDeclare(q.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := q.channel.QueueDeclare(q.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// The queue name doubles as the routing key.
	if err := q.channel.QueueBind(q.queueName, q.queueName, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	// One unacknowledged mutation at a time keeps a user's replay ordered.
	return q.channel.Qos(1, 0, false)
}

func (q *AMQPQueue) Enqueue(ctx context.Context, m Mutation) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal mutation: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	q.publishMu.Lock()
	defer q.publishMu.Unlock()
	err = q.channel.PublishWithContext(ctx, q.exchangeName, q.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    m.ClientMutationID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish mutation: %w", err)
	}
	return nil
}

// Consume acks applied mutations, rejects permanent failures without
// requeueing, and requeues transient failures after retryDelay.
func (q *AMQPQueue) Consume(ctx context.Context, handler Handler) error {
	deliveries, err := q.channel.Consume(q.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	q.logger.Info("Consuming sync mutations", zap.String("queue", q.queueName))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			q.handle(ctx, delivery, handler)
		}
	}
}

func (q *AMQPQueue) handle(ctx context.Context, delivery amqp091.Delivery, handler Handler) {
	var m Mutation
	if err := json.Unmarshal(delivery.Body, &m); err != nil {
		q.logger.Error("Failed to unmarshal sync mutation", zap.Error(err))
		_ = delivery.Nack(false, false)
		return
	}

	err := handler(ctx, m)
	switch {
	case err == nil:
		_ = delivery.Ack(false)
	case IsPermanent(err):
		q.logger.Warn("Dropping sync mutation",
			zap.String("clientMutationId", m.ClientMutationID),
			zap.Error(err))
		_ = delivery.Nack(false, false)
	default:
		q.logger.Warn("Requeueing sync mutation",
			zap.String("clientMutationId", m.ClientMutationID),
			zap.Error(err))
		sleepCtx(ctx, retryDelay)
		_ = delivery.Nack(false, true)
	}
}

func (q *AMQPQueue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

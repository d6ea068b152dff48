package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// RedisSubscriber reads a stream through a consumer group. A message whose
// handler fails stays in the group's pending list and is claimed again once
// it has been idle for ClaimIdle. Malformed messages are acked and dropped.
type RedisSubscriber struct {
	client        *redis.Client
	group         string
	consumer      string
	stream        string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	claimIdle     time.Duration
	lastClaim     time.Time
	logger        *zap.Logger
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	// ClaimIdle is how long a failed message waits before it is retried.
	ClaimIdle time.Duration
}

func NewRedisSubscriber(client *redis.Client, config SubscriberConfig, logger *zap.Logger) *RedisSubscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	if config.ClaimIdle == 0 {
		config.ClaimIdle = 30 * time.Second
	}

	return &RedisSubscriber{
		client:        client,
		group:         config.Group,
		consumer:      config.Consumer,
		stream:        config.Stream,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		claimIdle:     config.ClaimIdle,
		logger:        logger,
	}
}

func (s *RedisSubscriber) Start(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	s.logger.Info("Subscriber started",
		zap.String("stream", s.stream),
		zap.String("group", s.group),
		zap.String("consumer", s.consumer))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Subscriber stopping", zap.String("stream", s.stream))
			return ctx.Err()
		default:
			if err := s.reclaimPending(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("Error reclaiming pending messages", zap.String("stream", s.stream), zap.Error(err))
			}
			if err := s.readMessages(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				s.logger.Error("Error reading messages", zap.String("stream", s.stream), zap.Error(err))
				time.Sleep(time.Second)
			}
		}
	}
}

func (s *RedisSubscriber) readMessages(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()

	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		s.handleMessages(ctx, stream.Messages)
	}
	return nil
}

// reclaimPending takes over messages that have sat unacknowledged for at
// least claimIdle, including ones this consumer failed earlier, and runs
// them again. It does nothing until claimIdle has passed since the last run.
func (s *RedisSubscriber) reclaimPending(ctx context.Context) error {
	if time.Since(s.lastClaim) < s.claimIdle {
		return nil
	}
	s.lastClaim = time.Now()

	start := "0-0"
	for {
		messages, next, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   s.stream,
			Group:    s.group,
			Consumer: s.consumer,
			MinIdle:  s.claimIdle,
			Start:    start,
			Count:    s.batchSize,
		}).Result()
		if err != nil {
			return fmt.Errorf("failed to claim pending messages: %w", err)
		}
		if len(messages) > 0 {
			s.logger.Info("Retrying pending messages",
				zap.String("stream", s.stream), zap.Int("count", len(messages)))
		}
		s.handleMessages(ctx, messages)
		if next == "0-0" || next == "" {
			return nil
		}
		start = next
	}
}

func (s *RedisSubscriber) handleMessages(ctx context.Context, messages []redis.XMessage) {
	for _, message := range messages {
		err := s.processMessage(ctx, message)
		if err != nil && !errors.Is(err, ErrMalformedEvent) {
			s.logger.Warn("Failed to process message, left pending",
				zap.String("id", message.ID), zap.Error(err))
			continue
		}
		if err != nil {
			s.logger.Error("Dropping malformed message", zap.String("id", message.ID), zap.Error(err))
		}

		if err := s.client.XAck(ctx, s.stream, s.group, message.ID).Err(); err != nil {
			s.logger.Warn("Failed to ACK message", zap.String("id", message.ID), zap.Error(err))
		}
	}
}

func (s *RedisSubscriber) processMessage(ctx context.Context, message redis.XMessage) error {
	eventData, ok := message.Values["event"].(string)
	if !ok {
		return fmt.Errorf("%w: missing event field", ErrMalformedEvent)
	}
	return dispatch(ctx, []byte(eventData), s.handler)
}

// KafkaSubscriber reads one topic with a consumer group. A failed message is
// retried in place until it succeeds, so its offset is never committed past.
// Malformed messages are committed and dropped.
type KafkaSubscriber struct {
	reader  *kafka.Reader
	handler Handler
	logger  *zap.Logger
}

func NewKafkaSubscriber(brokers []string, config SubscriberConfig, logger *zap.Logger) *KafkaSubscriber {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       config.Stream,
		GroupID:     config.Group,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     config.BlockDuration,
		ErrorLogger: kafka.LoggerFunc(logger.Sugar().Errorf),
	})
	return &KafkaSubscriber{reader: reader, handler: config.Handler, logger: logger}
}

func (s *KafkaSubscriber) Start(ctx context.Context) error {
	topic := s.reader.Config().Topic
	s.logger.Info("Subscriber started", zap.String("topic", topic), zap.String("group", s.reader.Config().GroupID))
	defer s.reader.Close()

	for {
		m, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, kafka.ErrGroupClosed) {
				s.logger.Info("Subscriber stopping", zap.String("topic", topic))
				return ctx.Err()
			}
			s.logger.Error("Error fetching message", zap.String("topic", topic), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		if err := dispatchWithRetry(ctx, m.Value, s.handler, kafkaRetryDelay, s.logger); err != nil {
			if ctx.Err() != nil {
				s.logger.Info("Subscriber stopping", zap.String("topic", topic))
				return ctx.Err()
			}
			s.logger.Error("Dropping malformed message",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
		}
		if err := s.reader.CommitMessages(ctx, m); err != nil {
			s.logger.Warn("Failed to commit message", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

// ErrMalformedEvent marks a message that can never be handled.
var ErrMalformedEvent = errors.New("malformed event")

var kafkaRetryDelay = time.Second

func dispatch(ctx context.Context, raw []byte, handler Handler) error {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("%w: failed to unmarshal event: %v", ErrMalformedEvent, err)
	}
	return handler(ctx, event)
}

// dispatchWithRetry runs the handler until it succeeds. It returns early
// only for a malformed message or when ctx ends.
func dispatchWithRetry(ctx context.Context, raw []byte, handler Handler, delay time.Duration, logger *zap.Logger) error {
	for {
		err := dispatch(ctx, raw, handler)
		if err == nil || errors.Is(err, ErrMalformedEvent) {
			return err
		}
		logger.Warn("Failed to process message, retrying", zap.Duration("delay", delay), zap.Error(err))

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

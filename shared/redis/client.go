package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(ctx context.Context, addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{Client: rdb}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

const processedKeyPrefix = "processed:"

// ProcessedMarker records ids that have already been applied, guarding
// consumers against duplicate delivery under at-least-once semantics.
type ProcessedMarker struct {
	client *redis.Client
	scope  string
	ttl    time.Duration
}

// NewProcessedMarker scopes markers under processed:<scope>:. Markers
// expire after ttl, which should cover the broker's redelivery window.
func NewProcessedMarker(client *redis.Client, scope string, ttl time.Duration) *ProcessedMarker {
	return &ProcessedMarker{client: client, scope: scope, ttl: ttl}
}

// MarkIfNew atomically records id and reports whether it was new.
func (m *ProcessedMarker) MarkIfNew(ctx context.Context, id string) (bool, error) {
	ok, err := m.client.SetNX(ctx, processedKeyPrefix+m.scope+":"+id, "1", m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark %s %s: %w", m.scope, id, err)
	}
	return ok, nil
}

// Unmark forgets id so a later redelivery is processed again.
func (m *ProcessedMarker) Unmark(ctx context.Context, id string) error {
	if err := m.client.Del(ctx, processedKeyPrefix+m.scope+":"+id).Err(); err != nil {
		return fmt.Errorf("failed to unmark %s %s: %w", m.scope, id, err)
	}
	return nil
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "formflow:conversation:"

// RedisStore persists conversation records in Redis so conversations survive
// process restarts and can be shared across instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// Ensure the implementation satisfies the interface.
var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis using a URL (redis://...), verifies the
// connection with a bounded ping, and returns a store expiring records after
// ttl (zero keeps them forever).
func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("session: parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session: connect to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Save(ctx context.Context, record Record) error {
	if record.ConversationID == "" {
		return errors.New("session: conversation id is required")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("session: encode record: %w", err)
	}
	return s.client.Set(ctx, redisKeyPrefix+record.ConversationID, payload, s.ttl).Err()
}

func (s *RedisStore) Load(ctx context.Context, conversationID string) (Record, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+conversationID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("session: load record: %w", err)
	}

	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return Record{}, fmt.Errorf("session: decode record: %w", err)
	}
	return record, nil
}

func (s *RedisStore) Delete(ctx context.Context, conversationID string) error {
	return s.client.Del(ctx, redisKeyPrefix+conversationID).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

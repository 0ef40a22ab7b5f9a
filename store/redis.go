package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/fabriqs/wedding-pix/logger"
)

const defaultOperationTimeout = 5 * time.Second

// RedisRepository keeps the slot as a JSON value under one key, with no TTL.
type RedisRepository struct {
	client *redis.Client
	key    string
}

func NewRedisClient(addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedisRepository(client *redis.Client, key string) *RedisRepository {
	if key == "" {
		key = "weddingpix:" + SlotKey
	}
	return &RedisRepository{client: client, key: key}
}

func (r *RedisRepository) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultOperationTimeout)
}

func (r *RedisRepository) Save(ctx context.Context, record Record) error {
	ctx, cancel := r.operationContext(ctx)
	defer cancel()

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save active payment: %w", err)
	}
	return nil
}

func (r *RedisRepository) Load(ctx context.Context) (*Record, error) {
	ctx, cancel := r.operationContext(ctx)
	defer cancel()

	val, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active payment: %w", err)
	}

	var record Record
	if err := json.Unmarshal(val, &record); err != nil || !record.Valid() {
		logger.Warn("Discarding unreadable active payment", map[string]interface{}{"key": r.key})
		return nil, r.client.Del(ctx, r.key).Err()
	}
	return &record, nil
}

func (r *RedisRepository) Clear(ctx context.Context) error {
	ctx, cancel := r.operationContext(ctx)
	defer cancel()
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("clear active payment: %w", err)
	}
	return nil
}

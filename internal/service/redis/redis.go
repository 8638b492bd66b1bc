package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type (
	RedisService struct {
		rdb *redis.Client
	}
)

// Nil is returned by reads of missing keys and fields.
var Nil = redis.Nil

func NewRedis(rdb *redis.Client) *RedisService {
	return &RedisService{
		rdb: rdb,
	}
}

func (r *RedisService) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisService) Del(ctx context.Context, keys ...string) error {
	return r.rdb.Del(ctx, keys...).Err()
}

func (r *RedisService) SetNX(ctx context.Context, key string, value any) (bool, error) {
	return r.rdb.SetNX(ctx, key, value, 0).Result()
}

func (r *RedisService) Get(ctx context.Context, key string) (string, error) {
	return r.rdb.Get(ctx, key).Result()
}

func (r *RedisService) Incr(ctx context.Context, key string) (int64, error) {
	return r.rdb.Incr(ctx, key).Result()
}

func (r *RedisService) SAdd(ctx context.Context, key string, members ...any) error {
	return r.rdb.SAdd(ctx, key, members...).Err()
}

func (r *RedisService) SRem(ctx context.Context, key string, members ...any) error {
	return r.rdb.SRem(ctx, key, members...).Err()
}

func (r *RedisService) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.rdb.SMembers(ctx, key).Result()
}

func (r *RedisService) HSet(ctx context.Context, key string, values ...any) error {
	return r.rdb.HSet(ctx, key, values...).Err()
}

func (r *RedisService) HGet(ctx context.Context, key, field string) (string, error) {
	return r.rdb.HGet(ctx, key, field).Result()
}

func (r *RedisService) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.rdb.HGetAll(ctx, key).Result()
}

// HDel reports how many fields were removed.
func (r *RedisService) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	return r.rdb.HDel(ctx, key, fields...).Result()
}

func (r *RedisService) Publish(ctx context.Context, channel string, message any) error {
	return r.rdb.Publish(ctx, channel, message).Err()
}

// Subscribe waits for the subscription to be confirmed and returns a channel
// of payloads published on channel and a function that ends the
// subscription.
func (r *RedisService) Subscribe(ctx context.Context, channel string) (<-chan string, func() error, error) {
	sub := r.rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, err
	}
	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, sub.Close, nil
}

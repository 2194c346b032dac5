package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 3 * time.Second

// RedisKV persists each collection as one JSON string key in Redis, the same
// whole-collection read-modify-write layout the browser store used.
type RedisKV struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed Store.
func NewRedisStore(addr, password string) Store {
	return newKVStore(&RedisKV{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	})
}

// NewRedisStoreWithClient builds a Store over an existing client.
func NewRedisStoreWithClient(client *redis.Client) Store {
	return newKVStore(&RedisKV{client: client})
}

// Load fetches the raw collection value.
func (r *RedisKV) Load(key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	value, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Store replaces the collection value without TTL.
func (r *RedisKV) Store(key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return r.client.Set(ctx, key, value, 0).Err()
}

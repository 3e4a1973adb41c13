package kv

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed Store. It can serve as the session mirror or as a
// persistent storage delegate; BatchWrite issues one pipeline per batch.
type Redis struct {
	client    *redis.Client
	keyPrefix string
	ownClient bool
}

// RedisConfig holds connection parameters for a Redis-backed store. Client
// takes precedence over Addr when both are set.
type RedisConfig struct {
	Client    *redis.Client
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedis creates a Redis-backed store and verifies the connection.
func NewRedis(ctx context.Context, config *RedisConfig) (*Redis, error) {
	if config == nil {
		return nil, errors.New("redis configuration is required")
	}

	r := &Redis{keyPrefix: config.KeyPrefix}
	if config.Client != nil {
		r.client = config.Client
	} else {
		r.client = redis.NewClient(&redis.Options{
			Addr:     config.Addr,
			Password: config.Password,
			DB:       config.DB,
		})
		r.ownClient = true
	}

	if err := r.client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the value stored under key. A missing key is not an error.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

// Set stores val under key.
func (r *Redis) Set(ctx context.Context, key string, val []byte) error {
	return r.client.Set(ctx, r.keyPrefix+key, val, 0).Err()
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.keyPrefix+key).Err()
}

// Keys enumerates all stored keys under the configured prefix.
func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// BatchWrite applies all staged writes in a single pipeline. A nil value
// deletes the key. The batch either reaches the server or fails as a whole,
// leaving retry to the caller.
func (r *Redis) BatchWrite(ctx context.Context, batch map[string][]byte) error {
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range batch {
			if v == nil {
				pipe.Del(ctx, r.keyPrefix+k)
			} else {
				pipe.Set(ctx, r.keyPrefix+k, v, 0)
			}
		}
		return nil
	})
	return err
}

// Close closes the underlying client when this store created it.
func (r *Redis) Close() error {
	if r.ownClient {
		return r.client.Close()
	}
	return nil
}

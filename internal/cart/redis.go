package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrMiss is returned by a Backend when the key does not exist.
	ErrMiss = errors.New("cart: key not found")
	// ErrConflict is returned when concurrent writers keep changing a key.
	ErrConflict = errors.New("cart: concurrent update conflict")
)

// UpdateFunc receives the current value, nil when the key is missing, and
// returns the value to store.
type UpdateFunc func(data []byte) ([]byte, error)

// Backend is the key-value store carts are kept in.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Update runs fn and stores its result with ttl, atomically with
	// respect to other updates of the same key. An error from fn is
	// returned unchanged and nothing is written.
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error
	Del(ctx context.Context, key string) error
}

const maxUpdateRetries = 10

// RedisBackend keeps carts in Redis.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend creates a Redis client with a pool sized for web traffic.
func NewRedisBackend(addr, password string, db int) *RedisBackend {
	return &RedisBackend{
		client: redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     password,
			DB:           db,
			PoolSize:     50,
			MinIdleConns: 5,
		}),
	}
}

// Ping checks connectivity.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get retrieves a key's value.
func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return data, err
}

// Update reads the key under WATCH and writes fn's result in a MULTI/EXEC
// transaction, retrying when another client modified the key in between.
func (r *RedisBackend) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			data = nil
		} else if err != nil {
			return err
		}

		next, err := fn(data)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, ttl)
			return nil
		})
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxUpdateRetries), ctx)
	err := backoff.Retry(func() error {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, policy)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %s", ErrConflict, key)
	}
	return err
}

// Del deletes a key.
func (r *RedisBackend) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Close closes the Redis connection.
func (r *RedisBackend) Close() {
	if r.client != nil {
		_ = r.client.Close()
	}
}

package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis stores values as plain Redis strings, one key per value.
// Expiry uses Redis' native key TTL.
type Redis struct {
	client *redis.Client
	opts   options
}

// NewRedis connects to addr, which is either a redis:// URL or a bare
// "host:port" address.
func NewRedis(addr string, opts ...Option) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	var ropts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		ropts = parsed
	} else {
		ropts = &redis.Options{
			Addr:         addr,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     4,
		}
	}

	return NewRedisClient(redis.NewClient(ropts), opts...), nil
}

// NewRedisClient wraps an existing client.
func NewRedisClient(client *redis.Client, opts ...Option) *Redis {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Redis{client: client, opts: o}
}

// Ping reports whether the server answers within five seconds.
func (r *Redis) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores value with a Redis expiry. ttl <= 0 means no expiry.
func (r *Redis) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

func (r *Redis) key(key string) string {
	return r.opts.prefix + key
}

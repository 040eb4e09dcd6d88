// Package redis holds the preference store and its client plumbing. The
// store is a best-effort convenience cache: an unreachable redis degrades
// checkout to defaults, it never blocks a payment.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"crosspay.client/internal/config"
)

var client *redis.Client

// Init connects the package client from the preference store configuration.
func Init(cfg config.RedisConfig) error {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return err
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	client = redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}

// SetClient replaces the package client (used for testing)
func SetClient(c *redis.Client) {
	client = c
}

// Set stores a key-value pair with expiration
func Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return client.Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value by key
func Get(ctx context.Context, key string) (string, error) {
	return client.Get(ctx, key).Result()
}

// Del removes a key
func Del(ctx context.Context, key string) error {
	return client.Del(ctx, key).Err()
}

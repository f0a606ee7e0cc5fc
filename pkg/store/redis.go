package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis connects from a redis:// URL and pings once. The same client
// backs both the cache and the event streams.
func Redis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

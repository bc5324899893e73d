package cache

import (
	"context"
	"fmt"
	"time"

	"drive-service/internal/config"

	"github.com/redis/go-redis/v9"
)

const (
	redisPingTimeout = 5 * time.Second

	errFailedPingRedisFmt = "failed to ping redis at %s: %w"
)

// NewRedisClient connects to the configured Redis and verifies it answers.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf(errFailedPingRedisFmt, cfg.Addr, err)
	}

	return client, nil
}

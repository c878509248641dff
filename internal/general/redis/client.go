// Package redis backs the chair location cache and the matching round lock.
package redis

import (
	"context"
	"fmt"
	"time"

	"isuride/internal/general/config"

	goredis "github.com/redis/go-redis/v9"
)

// Connect opens a client for the redis config section and pings it.
func Connect(ctx context.Context, cfg *config.Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	return client, nil
}

package datalayer

import (
	"context"
	"fmt"

	"github.com/glizzus/radio-relay/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the server described by cfg and checks that it
// answers.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to reach redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func NewRedisClientFromEnv(ctx context.Context) (*redis.Client, error) {
	cfg, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("unable to load redis config: %w", err)
	}
	return NewRedisClient(ctx, cfg)
}

package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hapdco/catalog-engine/pkg/config"
)

// NewRedisClient connects to the session-cache Redis. An empty host means
// Redis is not configured and returns a nil client without error; the
// session cache treats nil as "stash nothing", so search keeps working and
// only the show-more flow degrades.
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Fail at startup on a configured-but-unreachable Redis instead of on
	// the first stash.
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

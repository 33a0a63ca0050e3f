package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hapdco/catalog-engine/pkg/models"
)

// pendingResults is what a search stashes for a later "show more": the
// suppliers that did not make the first page, under the tier they were
// found at.
type pendingResults struct {
	Tier      models.Tier             `json:"tier"`
	Suppliers []models.SupplierResult `json:"suppliers"`
}

// SessionCache keeps per-session pending results keyed by the exact query
// (and brand filter) that produced them. Entries expire on their own; a
// stash for the same key overwrites the previous one.
type SessionCache interface {
	Stash(ctx context.Context, sessionID, query, brand string, pending *pendingResults) error
	// Pop returns and removes the pending results for the key, or nil when
	// nothing is stashed.
	Pop(ctx context.Context, sessionID, query, brand string) (*pendingResults, error)
}

type redisSessionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewSessionCache creates a Redis-backed SessionCache. A nil client yields a
// cache that stashes nothing and pops nothing, so search still works without
// Redis; only "show more" degrades.
func NewSessionCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) SessionCache {
	return &redisSessionCache{client: client, ttl: ttl, logger: logger.Named("session_cache")}
}

var _ SessionCache = (*redisSessionCache)(nil)

func pendingKey(sessionID, query, brand string) string {
	key := strings.ToLower(strings.TrimSpace(query))
	if brand != "" {
		key += "|" + strings.ToLower(strings.TrimSpace(brand))
	}
	return fmt.Sprintf("pending:%s:%s", sessionID, key)
}

func (c *redisSessionCache) Stash(ctx context.Context, sessionID, query, brand string, pending *pendingResults) error {
	if c.client == nil {
		return nil
	}
	if pending == nil || len(pending.Suppliers) == 0 {
		// An empty stash clears any stale entry for the key.
		return c.client.Del(ctx, pendingKey(sessionID, query, brand)).Err()
	}
	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshal pending results: %w", err)
	}
	if err := c.client.Set(ctx, pendingKey(sessionID, query, brand), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("stash pending results: %w", err)
	}
	return nil
}

func (c *redisSessionCache) Pop(ctx context.Context, sessionID, query, brand string) (*pendingResults, error) {
	if c.client == nil {
		return nil, nil
	}
	payload, err := c.client.GetDel(ctx, pendingKey(sessionID, query, brand)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop pending results: %w", err)
	}
	var pending pendingResults
	if err := json.Unmarshal(payload, &pending); err != nil {
		c.logger.Warn("discarding undecodable pending entry", zap.Error(err))
		return nil, nil
	}
	return &pending, nil
}

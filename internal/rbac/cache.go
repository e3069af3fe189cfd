package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const versionKey = "rbac:version"

// RedisCache stores memberships under keys stamped with the catalog version
// and the user's generation. Flush bumps the catalog version and Forget bumps
// the generation, so every key written before either call is never read again,
// including one written by a reader that loaded from the store concurrently.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}
}

func generationKey(userID int64, guard string) string {
	return fmt.Sprintf("rbac:gen:%s:user:%d", guard, userID)
}

func (c *RedisCache) stamp(ctx context.Context, userID int64, guard string) (string, error) {
	values, err := c.client.MGet(ctx, versionKey, generationKey(userID, guard)).Result()
	if err != nil {
		return "", err
	}
	version, generation := "0", "0"
	if s, ok := values[0].(string); ok {
		version = s
	}
	if s, ok := values[1].(string); ok {
		generation = s
	}
	return fmt.Sprintf("rbac:v%s:%s:user:%d:g%s", version, guard, userID, generation), nil
}

func (c *RedisCache) Get(ctx context.Context, userID int64, guard string) (Membership, string, bool, error) {
	stamp, err := c.stamp(ctx, userID, guard)
	if err != nil {
		return Membership{}, "", false, err
	}
	raw, err := c.client.Get(ctx, stamp).Bytes()
	if errors.Is(err, redis.Nil) {
		return Membership{}, stamp, false, nil
	}
	if err != nil {
		return Membership{}, "", false, err
	}
	var m Membership
	if err := json.Unmarshal(raw, &m); err != nil {
		return Membership{}, stamp, false, fmt.Errorf("decode membership: %w", err)
	}
	return m, stamp, true, nil
}

func (c *RedisCache) Set(ctx context.Context, stamp string, m Membership) error {
	if stamp == "" {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, stamp, raw, c.ttl).Err()
}

func (c *RedisCache) Forget(ctx context.Context, userID int64, guard string) error {
	return c.client.Incr(ctx, generationKey(userID, guard)).Err()
}

func (c *RedisCache) Flush(ctx context.Context) error {
	return c.client.Incr(ctx, versionKey).Err()
}

// NopCache disables membership caching.
type NopCache struct{}

func (NopCache) Get(context.Context, int64, string) (Membership, string, bool, error) {
	return Membership{}, "", false, nil
}
func (NopCache) Set(context.Context, string, Membership) error { return nil }
func (NopCache) Forget(context.Context, int64, string) error   { return nil }
func (NopCache) Flush(context.Context) error                   { return nil }

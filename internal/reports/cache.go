package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "shopreports:version"
	// BumpChannel carries cache version bumps between instances.
	BumpChannel = "shopreports.bump"
)

// Cache is a versioned Redis cache for fetched raw row sets. Summaries are
// never cached; they are recomputed on every render. A nil Cache or one
// without a client calls the loader directly, and so does a cache whose
// Redis stops answering.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, logger: slog.Default()}
}

// WithLogger sets the logger used to report Redis failures.
func (c *Cache) WithLogger(logger *slog.Logger) *Cache {
	if c != nil && logger != nil {
		c.logger = logger
	}
	return c
}

func (c *Cache) warn(msg string, key string, err error) {
	logger := c.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn(msg, slog.String("key", key), slog.Any("error", err))
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// BuildKey composes the cache key with the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := "shopreports:" + strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// FetchJSON loads a cached value into dest or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("reports: cache loader required")
	}
	cached := c != nil && c.client != nil && key != ""
	if cached {
		payload, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			if err := json.Unmarshal(payload, dest); err == nil {
				return nil
			}
			c.warn("cache entry unreadable", key, err)
		case !errors.Is(err, redis.Nil):
			c.warn("cache read failed", key, err)
			cached = false
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if cached {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.warn("cache write failed", key, err)
		}
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates every cached row set by incrementing the version and
// publishing it to other instances.
func (c *Cache) Bump(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return 0, err
	}
	return ver, c.client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation subscribes to version bumps until ctx is done. A
// bump carrying a version never lowers the local one.
func (c *Cache) ListenForInvalidation(ctx context.Context, channel string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if channel == "" {
		channel = BumpChannel
	}
	pubsub := c.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				c.applyBump(ctx, msg.Payload)
			}
		}
	}()
	return nil
}

func (c *Cache) applyBump(ctx context.Context, payload string) {
	ver, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		_ = c.client.Incr(ctx, cacheVersionKey).Err()
		return
	}
	current, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == nil && current >= ver {
		return
	}
	_ = c.client.Set(ctx, cacheVersionKey, ver, 0).Err()
}

func fetchCached[T any](ctx context.Context, c *Cache, kind string, q Query, load func(context.Context, Query) ([]T, error)) ([]T, error) {
	key, err := c.BuildKey(ctx, append([]string{kind}, q.CacheKey()...)...)
	if err != nil {
		// An empty key skips Redis and goes straight to the loader.
		c.warn("cache version unavailable", kind, err)
		key = ""
	}
	var rows []T
	err = c.FetchJSON(ctx, key, &rows, func(ctx context.Context) (any, error) {
		return load(ctx, q)
	})
	return rows, err
}

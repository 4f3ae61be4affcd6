// Package cache provides a read-through cache for per-model price rows.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/iwvelando/dealership-quote/internal/config"
	"github.com/iwvelando/dealership-quote/pkg/pricing"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	priceKeyPrefix  = "prices:"
	defaultPriceTTL = 5 * time.Minute
)

// PriceCache stores the price rows of a model. A miss is (nil, false, nil).
type PriceCache interface {
	Get(ctx context.Context, model string) ([]pricing.VehiclePrice, bool, error)
	Set(ctx context.Context, model string, rows []pricing.VehiclePrice) error
	Invalidate(ctx context.Context, model string) error
}

// PriceKey returns the redis key for a model.
func PriceKey(model string) string {
	return priceKeyPrefix + strings.ToLower(strings.TrimSpace(model))
}

// RedisPriceCache implements PriceCache using Redis.
type RedisPriceCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisPriceCache creates a new Redis-based price cache.
func NewRedisPriceCache(cfg config.RedisConfig, logger *zap.Logger) *RedisPriceCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisPriceCacheFromClient(client, cfg.PriceTTL, logger)
}

// NewRedisPriceCacheFromClient wraps an existing client.
func NewRedisPriceCacheFromClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisPriceCache {
	if ttl <= 0 {
		ttl = defaultPriceTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPriceCache{client: client, ttl: ttl, logger: logger}
}

// Ping checks that redis is reachable.
func (c *RedisPriceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get retrieves the rows of a model from cache.
func (c *RedisPriceCache) Get(ctx context.Context, model string) ([]pricing.VehiclePrice, bool, error) {
	key := PriceKey(model)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("cache miss",
			zap.String("op", "cache.Get"),
			zap.String("key", key),
		)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var rows []pricing.VehiclePrice
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false, err
	}
	c.logger.Debug("cache hit",
		zap.String("op", "cache.Get"),
		zap.String("key", key),
	)
	return rows, true, nil
}

// Set stores the rows of a model in cache.
func (c *RedisPriceCache) Set(ctx context.Context, model string, rows []pricing.VehiclePrice) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, PriceKey(model), data, c.ttl).Err()
}

// Invalidate removes the cached rows of a model.
func (c *RedisPriceCache) Invalidate(ctx context.Context, model string) error {
	key := PriceKey(model)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return err
	}
	c.logger.Debug("cache invalidated",
		zap.String("op", "cache.Invalidate"),
		zap.String("key", key),
	)
	return nil
}

// Close closes the redis client.
func (c *RedisPriceCache) Close() error {
	return c.client.Close()
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]pricing.VehiclePrice, bool, error) {
	return nil, false, nil
}

func (NopCache) Set(context.Context, string, []pricing.VehiclePrice) error { return nil }

func (NopCache) Invalidate(context.Context, string) error { return nil }

// Package redis provides a read-through product cache in front of the
// catalog repository.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/catalog"
)

const keyPrefix = "product:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection with PING.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return rdb, nil
}

var _ catalog.Repository = (*ProductCache)(nil)

// ProductCache caches ProductByID results. All other repository methods go
// straight to the wrapped repository. Cache failures are logged and never
// fail a read.
type ProductCache struct {
	catalog.Repository
	rdb *redis.Client
	ttl time.Duration
}

// NewProductCache wraps repo with a cache entry lifetime of ttl.
func NewProductCache(repo catalog.Repository, rdb *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{Repository: repo, rdb: rdb, ttl: ttl}
}

func key(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10)
}

// ProductByID returns the cached product or loads and caches it.
func (c *ProductCache) ProductByID(ctx context.Context, id int64) (*catalog.Product, error) {
	lg := zctx.From(ctx)

	data, err := c.rdb.Get(ctx, key(id)).Bytes()
	switch {
	case err == nil:
		p, err := decodeProduct(data)
		if err == nil {
			return p, nil
		}
		lg.Warn("Decode cached product", zap.Int64("product_id", id), zap.Error(err))
	case !errors.Is(err, redis.Nil):
		lg.Warn("Read product cache", zap.Int64("product_id", id), zap.Error(err))
	}

	p, err := c.Repository.ProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.rdb.Set(ctx, key(id), encodeProduct(p), c.ttl).Err(); err != nil {
		lg.Warn("Write product cache", zap.Int64("product_id", id), zap.Error(err))
	}
	return p, nil
}

// Invalidate drops the cached entry of a product.
func (c *ProductCache) Invalidate(ctx context.Context, id int64) error {
	if err := c.rdb.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("deleting cached product %d: %w", id, err)
	}
	return nil
}

// Flush drops every cached product.
func (c *ProductCache) Flush(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning cached products: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting cached products: %w", err)
	}
	return nil
}

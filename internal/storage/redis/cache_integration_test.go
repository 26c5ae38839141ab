//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/storefront/internal/domain/catalog"
)

// --- Mock implementations ---

type countingRepo struct {
	catalog.Repository
	products map[int64]*catalog.Product
	calls    int
}

func (r *countingRepo) ProductByID(_ context.Context, id int64) (*catalog.Product, error) {
	r.calls++
	p, ok := r.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

// --- Helpers ---

func setupCache(t *testing.T) (*ProductCache, *countingRepo) {
	t.Helper()
	ctx := context.Background()

	redisC, err := testcontainers.Run(
		ctx, "redis:7-alpine",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		),
	)
	testcontainers.CleanupContainer(t, redisC)
	require.NoError(t, err)

	endpoint, err := redisC.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb, err := NewClient(ctx, Options{Addr: endpoint})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	repo := &countingRepo{products: map[int64]*catalog.Product{
		1: {ID: 1, Name: "Speed rope", SKU: "ABC123", Price: decimal.RequireFromString("10.00")},
		2: {ID: 2, Name: "Heavy rope", SKU: "DEF456", Price: decimal.RequireFromString("20.00")},
	}}
	return NewProductCache(repo, rdb, time.Minute), repo
}

// --- Tests ---

func TestProductCache_ReadThrough(t *testing.T) {
	cache, repo := setupCache(t)
	ctx := context.Background()

	p, err := cache.ProductByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", p.SKU)
	assert.Equal(t, 1, repo.calls)

	p, err = cache.ProductByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", p.SKU)
	assert.Equal(t, 1, repo.calls, "second read must be served from redis")
}

func TestProductCache_NotFoundIsNotCached(t *testing.T) {
	cache, repo := setupCache(t)
	ctx := context.Background()

	_, err := cache.ProductByID(ctx, 99)
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
	_, err = cache.ProductByID(ctx, 99)
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
	assert.Equal(t, 2, repo.calls)
}

func TestProductCache_Invalidate(t *testing.T) {
	cache, repo := setupCache(t)
	ctx := context.Background()

	_, err := cache.ProductByID(ctx, 1)
	require.NoError(t, err)

	repo.products[1].Name = "Renamed rope"
	require.NoError(t, cache.Invalidate(ctx, 1))

	p, err := cache.ProductByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Renamed rope", p.Name)
	assert.Equal(t, 2, repo.calls)
}

func TestProductCache_Flush(t *testing.T) {
	cache, repo := setupCache(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		_, err := cache.ProductByID(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, cache.Flush(ctx))

	for _, id := range []int64{1, 2} {
		_, err := cache.ProductByID(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, repo.calls)
}

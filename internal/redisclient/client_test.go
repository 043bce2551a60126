package redisclient

import (
	"context"
	"testing"
	"time"

	"nursery-api/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestIdempotencyKeyLifecycle(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	claimed, err := client.ClaimIdempotencyKey(ctx, "7:abc", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = client.ClaimIdempotencyKey(ctx, "7:abc", time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed)

	_, pending, found, err := client.GetIdempotencyKey(ctx, "7:abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, pending)

	require.NoError(t, client.CompleteIdempotencyKey(ctx, "7:abc", 42, time.Hour))

	orderID, pending, found, err := client.GetIdempotencyKey(ctx, "7:abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, pending)
	assert.Equal(t, int64(42), orderID)

	mr.FastForward(2 * time.Hour)
	_, _, found, err = client.GetIdempotencyKey(ctx, "7:abc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReleaseIdempotencyKeyAllowsRetry(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.ClaimIdempotencyKey(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, client.ReleaseIdempotencyKey(ctx, "k"))

	claimed, err := client.ClaimIdempotencyKey(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestProductCache(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	cached, err := client.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, cached)

	product := &models.Product{ID: 1, Name: "Pothos", Price: models.MustMoney("6.50"), Stock: 12}
	require.NoError(t, client.SetProduct(ctx, product, time.Minute))

	cached, err = client.GetProduct(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "Pothos", cached.Name)
	assert.Equal(t, 12, cached.Stock)
	assert.True(t, product.Price.Equal(cached.Price.Decimal))

	require.NoError(t, client.InvalidateProducts(ctx, 1, 2))
	cached, err = client.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

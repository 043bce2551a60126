package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"nursery-api/internal/models"

	"github.com/go-redis/redis/v8"
)

// IdempotencyPending marks a claimed key whose request has not finished yet
const IdempotencyPending = "pending"

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and checks the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

func productKey(productID int64) string {
	return fmt.Sprintf("product:%d", productID)
}

// ClaimIdempotencyKey marks key as in flight. It returns false when the key
// was already claimed or completed.
func (c *Client) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, idempotencyKey(key), IdempotencyPending, ttl).Result()
}

// CompleteIdempotencyKey records the order created for key
func (c *Client) CompleteIdempotencyKey(ctx context.Context, key string, orderID int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(key), strconv.FormatInt(orderID, 10), ttl).Err()
}

// GetIdempotencyKey returns the order id stored for key. pending is true
// while the first request is still running; found is false for unknown keys.
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (orderID int64, pending, found bool, err error) {
	val, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, err
	}
	if val == IdempotencyPending {
		return 0, true, true, nil
	}

	orderID, err = strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, false, fmt.Errorf("corrupt idempotency value %q: %w", val, err)
	}
	return orderID, false, true, nil
}

// ReleaseIdempotencyKey forgets key so the request can be retried
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, idempotencyKey(key)).Err()
}

// GetProduct reads a cached product. A miss returns nil without error.
func (c *Client) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	data, err := c.rdb.Get(ctx, productKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, fmt.Errorf("failed to decode cached product: %w", err)
	}
	return &product, nil
}

// SetProduct caches a product with TTL
func (c *Client) SetProduct(ctx context.Context, product *models.Product, ttl time.Duration) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to encode product: %w", err)
	}
	return c.rdb.Set(ctx, productKey(product.ID), data, ttl).Err()
}

// InvalidateProducts drops cached entries for the given products
func (c *Client) InvalidateProducts(ctx context.Context, productIDs ...int64) error {
	if len(productIDs) == 0 {
		return nil
	}

	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = productKey(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

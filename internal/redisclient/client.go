package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-service/internal/models"

	"github.com/go-redis/redis/v8"
)

const productCacheTTL = 10 * time.Minute

type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis and verifies the connection.
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

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func productKey(id int64) string { return fmt.Sprintf("product:%d", id) }

// CacheProduct stores a product snapshot for fast catalog reads.
func (c *Client) CacheProduct(ctx context.Context, p *models.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	return c.rdb.Set(ctx, productKey(p.ID), data, productCacheTTL).Err()
}

// GetCachedProduct returns the cached product, or nil on a miss.
func (c *Client) GetCachedProduct(ctx context.Context, id int64) (*models.Product, error) {
	data, err := c.rdb.Get(ctx, productKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p models.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached product: %w", err)
	}
	return &p, nil
}

// InvalidateProduct drops a product from the cache after a catalog edit or
// a stock change.
func (c *Client) InvalidateProduct(ctx context.Context, id int64) error {
	return c.rdb.Del(ctx, productKey(id)).Err()
}

// InvalidateProducts drops several products in one round trip.
func (c *Client) InvalidateProducts(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, productKey(id))
	}
	_, err := pipe.Exec(ctx)
	return err
}

// AcquireUserLock takes a short per-user lock so multi-step cart and
// checkout sequences from different instances do not interleave.
func (c *Client) AcquireUserLock(ctx context.Context, userID int64, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:user:%d", userID), "1", ttl).Result()
}

// ReleaseUserLock releases the per-user lock.
func (c *Client) ReleaseUserLock(ctx context.Context, userID int64) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:user:%d", userID)).Err()
}

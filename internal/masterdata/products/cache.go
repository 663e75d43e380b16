package products

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps recently read products in redis for the detail endpoint.
// Every method tolerates a nil receiver so redis stays optional; cache
// errors degrade to misses and never surface to callers.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func (c *Cache) Get(ctx context.Context, id int64) (*Product, bool) {
	if c == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var p Product
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, false
	}
	return &p, true
}

func (c *Cache) Set(ctx context.Context, product *Product) {
	if c == nil || product == nil {
		return
	}
	data, err := json.Marshal(product)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(product.ID), data, c.ttl).Err()
}

func (c *Cache) Invalidate(ctx context.Context, id int64) {
	if c == nil {
		return
	}
	_ = c.client.Del(ctx, cacheKey(id)).Err()
}

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/UnknownOlympus/pathway/internal/models"
	"github.com/valkey-io/valkey-go"
)

// ValkeyCache implements Cache using Valkey (Redis-compatible).
type ValkeyCache struct {
	client valkey.Client
	ttl    time.Duration
}

// NewValkeyCache creates a new Valkey cache client.
func NewValkeyCache(addr string, ttl time.Duration) (*ValkeyCache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}

	return NewValkeyCacheWithClient(client, ttl), nil
}

// NewValkeyCacheWithClient wraps an existing client.
func NewValkeyCacheWithClient(client valkey.Client, ttl time.Duration) *ValkeyCache {
	return &ValkeyCache{client: client, ttl: ttl}
}

// Get retrieves a route by key.
func (c *ValkeyCache) Get(ctx context.Context, key string) (*models.Route, error) {
	value, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached route: %w", err)
	}

	return unmarshalRoute(value)
}

// Set stores a route with the configured TTL.
func (c *ValkeyCache) Set(ctx context.Context, key string, route *models.Route) error {
	cmd := c.client.B().Set().Key(key).Value(marshalRoute(route)).Ex(c.ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to cache route: %w", err)
	}

	return nil
}

// Ping checks the connection to the server.
func (c *ValkeyCache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (c *ValkeyCache) Close() {
	c.client.Close()
}

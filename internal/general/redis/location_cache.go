package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"isuride/internal/domain/chair"
	"isuride/internal/ports"

	goredis "github.com/redis/go-redis/v9"
)

const (
	locationKeyPrefix = "isuride:chair:location:"
	// DefaultLocationTTL bounds how long an idle chair's coordinate is trusted.
	DefaultLocationTTL = 10 * time.Minute
)

// LocationCache stores the latest location per chair as JSON.
type LocationCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewLocationCache returns a ports.LocationCache over client.
func NewLocationCache(client *goredis.Client, ttl time.Duration) ports.LocationCache {
	if ttl <= 0 {
		ttl = DefaultLocationTTL
	}
	return &LocationCache{client: client, ttl: ttl}
}

func locationKey(chairID string) string { return locationKeyPrefix + chairID }

func (cache *LocationCache) Put(ctx context.Context, loc chair.Location) error {
	b, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	if err := cache.client.Set(ctx, locationKey(loc.ChairID), b, cache.ttl).Err(); err != nil {
		return fmt.Errorf("cache location: %w", err)
	}
	return nil
}

func (cache *LocationCache) Get(ctx context.Context, chairID string) (*chair.Location, error) {
	b, err := cache.client.Get(ctx, locationKey(chairID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cached location: %w", err)
	}

	var loc chair.Location
	if err := json.Unmarshal(b, &loc); err != nil {
		return nil, fmt.Errorf("decode cached location: %w", err)
	}
	return &loc, nil
}

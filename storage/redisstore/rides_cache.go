package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"ridebot/pkg/models"
)

type RidesCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRidesCache(client *redis.Client, ttl time.Duration) *RidesCache {
	return &RidesCache{client: client, ttl: ttl}
}

// GetActive returns nil, nil on a cache miss. A cached empty listing comes
// back as an empty non-nil slice.
func (c *RidesCache) GetActive(ctx context.Context) ([]*models.Ride, error) {
	data, err := c.client.Get(ctx, activeRidesKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	rides := []*models.Ride{}
	if err := json.Unmarshal(data, &rides); err != nil {
		return nil, err
	}
	return rides, nil
}

func (c *RidesCache) SetActive(ctx context.Context, rides []*models.Ride) error {
	if rides == nil {
		rides = []*models.Ride{}
	}
	payload, err := json.Marshal(rides)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, activeRidesKey(), payload, c.ttl).Err()
}

func (c *RidesCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, activeRidesKey()).Err()
}

func activeRidesKey() string {
	return "cache:rides:active"
}
